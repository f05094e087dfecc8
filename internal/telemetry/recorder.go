// Package telemetry records provider metrics and log lines. Every record is
// published to the event bus immediately and persisted in the background;
// persistence failures never reach the caller.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sozercan/cosilium/internal/events"
)

const defaultPersistTimeout = 5 * time.Second

// Publisher is the subset of the event bus the recorder needs.
type Publisher interface {
	Publish(events.Event)
}

// Persister stores records durably.
type Persister interface {
	SaveMetric(ctx context.Context, m events.MetricEvent) error
	SaveLog(ctx context.Context, l events.LogEvent) error
}

type Recorder struct {
	bus            Publisher
	store          Persister
	logger         *slog.Logger
	persistTimeout time.Duration

	wg sync.WaitGroup
}

type Option func(*Recorder)

// WithPersister enables background persistence.
func WithPersister(p Persister) Option {
	return func(r *Recorder) { r.store = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithPersistTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// NewRecorder creates a recorder publishing to bus, which may be nil.
func NewRecorder(bus Publisher, opts ...Option) *Recorder {
	r := &Recorder{
		bus:            bus,
		logger:         slog.Default(),
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) RecordMetric(m events.MetricEvent) {
	r.publish(m)
	if r.store == nil {
		return
	}
	r.persist("metric", func(ctx context.Context) error {
		return r.store.SaveMetric(ctx, m)
	})
}

func (r *Recorder) RecordLog(l events.LogEvent) {
	r.publish(l)
	if r.store == nil {
		return
	}
	r.persist("log", func(ctx context.Context) error {
		return r.store.SaveLog(ctx, l)
	})
}

// RecordAnalysis publishes an analysis lifecycle event. These are not persisted.
func (r *Recorder) RecordAnalysis(e events.AnalysisEvent) {
	r.publish(e)
}

// Flush blocks until all pending writes have finished.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

func (r *Recorder) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func (r *Recorder) persist(kind string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// detached from the request so a finished response does not cancel the write
		ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.logger.Debug("telemetry persistence failed", "kind", kind, "error", err)
		}
	}()
}
