package llm

import (
	"context"
	"net/http"
	"time"
)

// Provider sends one prompt to a model and returns its normalized reply.
type Provider interface {
	// Complete performs exactly one request against the provider.
	Complete(ctx context.Context, prompt Prompt) (*Completion, error)
	// Name identifies the provider in logs and errors.
	Name() string
	// Model is the configured model identifier.
	Model() string
}

// Prompt is a single-turn conversation.
type Prompt struct {
	System string
	User   string
}

// Completion is a provider reply reduced to the fields the analyzer uses.
type Completion struct {
	Content string
	// Model echoed by the provider, or the configured one when absent.
	Model string
	Usage Usage
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	HTTPClient *http.Client
}

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

func applyOptions(opts []Option) *Options {
	options := &Options{
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
