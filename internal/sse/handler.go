// Package sse streams bus events to web clients as Server-Sent Events.
//
// Every frame is a single data line holding {"type": ..., "data": ...}.
// A "connected" frame opens the stream and a "heartbeat" frame is sent
// periodically so proxies keep idle connections open.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sozercan/cosilium/internal/events"
)

const defaultHeartbeat = 30 * time.Second

// Subscriber is the subset of the event bus the handler needs.
type Subscriber interface {
	Subscribe(types ...string) <-chan events.Event
	Unsubscribe(ch <-chan events.Event)
}

// Handler streams events from the bus to connected clients.
type Handler struct {
	bus       Subscriber
	heartbeat time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	id     string
	done   chan struct{}
	closed bool
}

type Option func(*Handler)

func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(bus Subscriber, opts ...Option) *Handler {
	h := &Handler{
		bus:       bus,
		heartbeat: defaultHeartbeat,
		logger:    slog.Default(),
		clients:   make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{id: uuid.NewString(), done: make(chan struct{})}
	h.addClient(c)
	defer h.removeClient(c)

	eventCh := h.bus.Subscribe()
	defer h.bus.Unsubscribe(eventCh)

	h.logger.Debug("sse client connected", "client_id", c.id)
	defer h.logger.Debug("sse client disconnected", "client_id", c.id)

	if err := writeFrame(w, flusher, "connected", stamp(map[string]any{"client_id": c.id})); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			if err := writeFrame(w, flusher, "heartbeat", stamp(map[string]any{})); err != nil {
				return
			}
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			payload, err := events.Encode(event)
			if err != nil {
				h.logger.Debug("sse encode failed", "type", event.EventType(), "error", err)
				continue
			}
			if err := writeData(w, flusher, payload); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown disconnects all clients. http.Server.Shutdown does not end
// streaming responses on its own.
func (h *Handler) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
	return nil
}

func (h *Handler) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Handler) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.close()
}

func (c *client) close() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func stamp(data map[string]any) map[string]any {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return data
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	payload, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	if err != nil {
		return err
	}
	return writeData(w, flusher, payload)
}

func writeData(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
