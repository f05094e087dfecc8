package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sozercan/cosilium/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	metrics []events.MetricEvent
	logs    []events.LogEvent
	err     error
	block   chan struct{}
}

func (m *memoryStore) SaveMetric(ctx context.Context, e events.MetricEvent) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.metrics = append(m.metrics, e)
	return nil
}

func (m *memoryStore) SaveLog(ctx context.Context, e events.LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, e)
	return nil
}

func TestRecorderPublishesAndPersists(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe()

	store := &memoryStore{}
	rec := NewRecorder(bus, WithPersister(store))

	rec.RecordMetric(events.NewMetricEvent("s-1", "claude", events.StatusSuccess))
	rec.RecordLog(events.NewLogEvent("s-1", "claude", events.LevelSuccess, "done"))
	rec.Flush()

	assert.Equal(t, events.TypeMetric, (<-ch).EventType())
	assert.Equal(t, events.TypeLog, (<-ch).EventType())
	assert.Len(t, store.metrics, 1)
	assert.Len(t, store.logs, 1)
}

func TestRecorderPublishesBeforePersistenceCompletes(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe()

	store := &memoryStore{block: make(chan struct{})}
	rec := NewRecorder(bus, WithPersister(store))

	done := make(chan struct{})
	go func() {
		rec.RecordMetric(events.NewMetricEvent("s-1", "gemini", events.StatusError))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordMetric blocked on persistence")
	}
	select {
	case ev := <-ch:
		assert.Equal(t, events.TypeMetric, ev.EventType())
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}

	close(store.block)
	rec.Flush()
	assert.Len(t, store.metrics, 1)
}

func TestRecorderSwallowsPersistenceErrors(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	rec := NewRecorder(nil, WithPersister(store))

	require.NotPanics(t, func() {
		rec.RecordMetric(events.NewMetricEvent("", "deepseek", events.StatusSuccess))
		rec.RecordLog(events.NewLogEvent("", "deepseek", events.LevelInfo, "x"))
		rec.Flush()
	})
	assert.Empty(t, store.metrics)
}

func TestRecorderWithoutPersister(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.TypeAnalysisStart)

	rec := NewRecorder(bus)
	rec.RecordAnalysis(events.NewAnalysisEvent(events.TypeAnalysisStart, "s-9", "started"))
	rec.Flush()

	ev := <-ch
	assert.Equal(t, "s-9", ev.Session())
}
