package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sozercan/cosilium/internal/config"
)

// Google calls the Gemini generateContent API. Gemini has no system role
// in this request shape, so the system prompt is prepended to the user text.
type Google struct {
	httpClient *http.Client
	cfg        config.ProviderConfig
}

func NewGoogle(cfg config.ProviderConfig, opts ...Option) *Google {
	options := applyOptions(opts)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &Google{
		httpClient: options.HTTPClient,
		cfg:        cfg,
	}
}

func (g *Google) Name() string  { return "google" }
func (g *Google) Model() string { return g.cfg.Model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int64   `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (r *geminiResponse) completion(model string) (*Completion, error) {
	if len(r.Candidates) == 0 {
		return nil, errors.New("response contained no candidates")
	}
	var text strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if r.ModelVersion != "" {
		model = r.ModelVersion
	}
	return &Completion{
		Content: text.String(),
		Model:   model,
		Usage: Usage{
			PromptTokens:     r.UsageMetadata.PromptTokenCount,
			CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      r.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (g *Google) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	var reqBody geminiRequest
	reqBody.Contents = []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: prompt.System + "\n\n" + prompt.User}},
	}}
	reqBody.GenerationConfig.Temperature = g.cfg.Temperature
	reqBody.GenerationConfig.MaxOutputTokens = g.cfg.MaxTokens

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp geminiResponse
	if err := doJSON(g.httpClient, req, g.Name(), &resp); err != nil {
		return nil, scrubKey(err, g.cfg.APIKey)
	}
	return resp.completion(g.cfg.Model)
}

// scrubKey removes the API key from transport errors, which quote the URL.
func scrubKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
