package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a provider's breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Breaker wraps a Provider with a circuit breaker so a failing provider
// is skipped for a cooldown period instead of being called on every analysis.
type Breaker struct {
	Provider
	cb *gobreaker.CircuitBreaker[*Completion]
}

// WithBreaker trips after failures consecutive errors and probes again
// after cooldown.
func WithBreaker(p Provider, failures uint32, cooldown time.Duration, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[*Completion](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{Provider: p, cb: cb}
}

func (b *Breaker) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	resp, err := b.cb.Execute(func() (*Completion, error) {
		return b.Provider.Complete(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrCircuitOpen)
	}
	return resp, err
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
