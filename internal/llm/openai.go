package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/sozercan/cosilium/internal/config"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
// DeepSeek uses the same client with a different base URL.
type OpenAI struct {
	name   string
	client *openai.Client
	cfg    config.ProviderConfig
}

func NewOpenAI(name string, cfg config.ProviderConfig, opts ...Option) *OpenAI {
	options := applyOptions(opts)

	requestOpts := []option.RequestOption{
		option.WithHTTPClient(options.HTTPClient),
		// one attempt per analysis; the breaker handles repeated failures
		option.WithMaxRetries(0),
	}
	switch cfg.Provider {
	case "azure":
		requestOpts = append(requestOpts,
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	default: // "openai"
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &OpenAI{
		name:   name,
		client: openai.NewClient(requestOpts...),
		cfg:    cfg,
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.cfg.Model }

func (o *OpenAI) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.F(o.cfg.Model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		}),
		Temperature: openai.F(o.cfg.Temperature),
	}
	if o.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.F(o.cfg.MaxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			body := apiErr.Message
			if body == "" {
				body = err.Error()
			}
			return nil, newStatusError(o.name, apiErr.StatusCode, []byte(body))
		}
		return nil, fmt.Errorf("%s request: %w", o.name, err)
	}

	return openAICompletion(resp, o.cfg.Model)
}

func openAICompletion(resp *openai.ChatCompletion, model string) (*Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("response contained no choices")
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
