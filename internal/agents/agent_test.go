package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	resp   *llm.Completion
	err    error
	delay  time.Duration
	prompt llm.Prompt
	calls  int
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "gpt-4o" }
func (f *fakeProvider) Complete(ctx context.Context, p llm.Prompt) (*llm.Completion, error) {
	f.calls++
	f.prompt = p
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

type captureRecorder struct {
	mu      sync.Mutex
	metrics []events.MetricEvent
	logs    []events.LogEvent
}

func (c *captureRecorder) RecordMetric(m events.MetricEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, m)
}

func (c *captureRecorder) RecordLog(l events.LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, l)
}

type mapPrompts map[string]string

type slowPrompts struct{ delay time.Duration }

func (s slowPrompts) GetPrompt(context.Context, string) (string, bool, error) {
	time.Sleep(s.delay)
	return "", false, nil
}

func (m mapPrompts) GetPrompt(_ context.Context, id string) (string, bool, error) {
	if id == "broken" {
		return "", false, errors.New("db gone")
	}
	v, ok := m[id]
	return v, ok, nil
}

func chatgpt(t *testing.T) Profile {
	t.Helper()
	p, ok := LookupProfile(ChatGPT)
	require.True(t, ok)
	return p
}

var openAICfg = config.ProviderConfig{APIKey: "sk", Model: "gpt-4o", Temperature: 0.3}

func TestAnalyzeSuccess(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Completion{
		Content: "Key points:\n- growth is real\n- margins are thin\n\nRisk of churn among early adopters is significant\nWe assume pricing stays the same next year",
		Model:   "gpt-4o-2024-08-06",
		Usage:   llm.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}}
	rec := &captureRecorder{}
	agent := New(chatgpt(t), openAICfg, provider, WithRecorder(rec))

	got := agent.Analyze(context.Background(), Input{Task: "Enter market X?", TaskType: "strategy", SessionID: "s-1"})
	require.NotNil(t, got)

	assert.Equal(t, "ChatGPT", got.AgentName)
	assert.Equal(t, ChatGPT, got.AgentID)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.Equal(t, []string{"growth is real", "margins are thin"}, got.KeyPoints)
	assert.Equal(t, []string{"Risk of churn among early adopters is significant"}, got.Risks)
	assert.Equal(t, []string{"We assume pricing stays the same next year"}, got.Assumptions)
	assert.Equal(t, int64(1500), got.Tokens)
	assert.InDelta(t, 0.0075, got.Cost, 1e-9)
	assert.Equal(t, "gpt-4o-2024-08-06", got.Model)

	require.Len(t, rec.metrics, 1)
	assert.Equal(t, events.StatusSuccess, rec.metrics[0].Status)
	assert.Equal(t, "s-1", rec.metrics[0].SessionID)
	assert.InDelta(t, 0.0075, rec.metrics[0].CostUSD, 1e-9)
	require.Len(t, rec.logs, 1)
	assert.Equal(t, events.LevelSuccess, rec.logs[0].Level)

	assert.Equal(t, chatgpt(t).Persona, provider.prompt.System)
	assert.Equal(t, "Analysis type: strategy\n\nTask:\nEnter market X?\n\nProvide a structured analysis. Highlight key points, risks and assumptions.", provider.prompt.User)
}

func TestAnalyzeDisabledAgent(t *testing.T) {
	rec := &captureRecorder{}
	agent := New(chatgpt(t), config.ProviderConfig{Model: "gpt-4o"}, nil, WithRecorder(rec))

	assert.False(t, agent.Enabled())
	assert.Nil(t, agent.Analyze(context.Background(), Input{Task: "x"}))
	assert.Empty(t, rec.metrics)
	assert.Empty(t, rec.logs)
}

func TestAnalyzeProviderError(t *testing.T) {
	provider := &fakeProvider{err: &llm.StatusError{Provider: "openai", StatusCode: 429, Body: "rate limited"}}
	rec := &captureRecorder{}
	agent := New(chatgpt(t), openAICfg, provider, WithRecorder(rec))

	assert.Nil(t, agent.Analyze(context.Background(), Input{Task: "x", SessionID: "s-2"}))

	require.Len(t, rec.metrics, 1)
	assert.Equal(t, events.StatusError, rec.metrics[0].Status)
	assert.Equal(t, "HTTP 429: rate limited", rec.metrics[0].ErrorMessage)
	assert.Zero(t, rec.metrics[0].TotalTokens)
	require.Len(t, rec.logs, 1)
	assert.Equal(t, events.LevelError, rec.logs[0].Level)
	assert.Contains(t, rec.logs[0].Message, "HTTP 429")
}

func TestAnalyzeTimeout(t *testing.T) {
	provider := &fakeProvider{delay: time.Second, resp: &llm.Completion{Content: "late"}}
	rec := &captureRecorder{}
	agent := New(chatgpt(t), openAICfg, provider, WithRecorder(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Nil(t, agent.Analyze(ctx, Input{Task: "x"}))
	require.Len(t, rec.metrics, 1)
	assert.Equal(t, events.StatusTimeout, rec.metrics[0].Status)
}

type panicProvider struct{ fakeProvider }

func (p *panicProvider) Complete(context.Context, llm.Prompt) (*llm.Completion, error) {
	panic("boom")
}

func TestAnalyzeRecoversPanics(t *testing.T) {
	rec := &captureRecorder{}
	agent := New(chatgpt(t), openAICfg, &panicProvider{}, WithRecorder(rec))

	assert.Nil(t, agent.Analyze(context.Background(), Input{Task: "x"}))
	require.Len(t, rec.metrics, 1)
	assert.Equal(t, "panic: boom", rec.metrics[0].ErrorMessage)
}

func TestAnalyzeEmptyExtractionsAreEmptySlices(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Completion{Content: "ok", Model: "gpt-4o"}}
	got := New(chatgpt(t), openAICfg, provider).Analyze(context.Background(), Input{Task: "x"})
	require.NotNil(t, got)
	assert.NotNil(t, got.KeyPoints)
	assert.NotNil(t, got.Risks)
	assert.NotNil(t, got.Assumptions)
	assert.Zero(t, got.Cost)
}

func TestAnalyzeLatencyExcludesPromptLookup(t *testing.T) {
	provider := &fakeProvider{resp: &llm.Completion{Content: "ok", Usage: llm.Usage{TotalTokens: 1}}}
	rec := &captureRecorder{}
	agent := New(chatgpt(t), openAICfg, provider,
		WithRecorder(rec), WithPromptSource(slowPrompts{delay: 200 * time.Millisecond}))

	got := agent.Analyze(context.Background(), Input{Task: "x"})
	require.NotNil(t, got)
	assert.Less(t, got.Duration, int64(150))
	require.Len(t, rec.metrics, 1)
	assert.Less(t, rec.metrics[0].LatencyMS, int64(150))
}

func TestSystemPromptOverride(t *testing.T) {
	profile := chatgpt(t)

	agent := New(profile, openAICfg, nil, WithPromptSource(mapPrompts{ChatGPT: "Be terse."}))
	prompt, source := agent.SystemPrompt(context.Background())
	assert.Equal(t, "Be terse.", prompt)
	assert.Equal(t, SourceOverride, source)

	agent = New(profile, openAICfg, nil, WithPromptSource(mapPrompts{}))
	prompt, source = agent.SystemPrompt(context.Background())
	assert.Equal(t, profile.Persona, prompt)
	assert.Equal(t, SourceDefault, source)

	broken := profile
	broken.ID = "broken"
	agent = New(broken, openAICfg, nil, WithPromptSource(mapPrompts{}))
	prompt, source = agent.SystemPrompt(context.Background())
	assert.Equal(t, profile.Persona, prompt)
	assert.Equal(t, SourceDefault, source)
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))

	got := FormatContext([]apimodels.ContextItem{
		{Type: "url", Title: "Report", Content: "https://example.com/q3"},
		{Type: "text", Title: "Notes", Content: "Revenue grew 12%"},
	})
	want := "\n\n---\nADDITIONAL CONTEXT:\n" +
		"### Link 1: Report\nhttps://example.com/q3\n\n" +
		"### Data 2: Notes\nRevenue grew 12%" +
		"\n---\n"
	assert.Equal(t, want, got)
}

func TestNewRoster(t *testing.T) {
	cfg := config.Config{
		Providers: config.ProvidersConfig{
			OpenAI:    config.ProviderConfig{APIKey: "sk", Model: "gpt-4o"},
			Anthropic: config.ProviderConfig{Model: "claude-3-5-sonnet-20241022"},
			Google:    config.ProviderConfig{Model: "gemini-2.0-flash"},
			DeepSeek:  config.ProviderConfig{APIKey: "sk-d", Model: "deepseek-chat"},
		},
		Analysis: config.AnalysisConfig{BreakerFailures: 5, BreakerCooldown: time.Second},
	}

	roster := NewRoster(cfg, nil)
	require.Len(t, roster, 4)
	assert.True(t, roster.Live())

	var ids []string
	for _, a := range roster {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{ChatGPT, Claude, Gemini, DeepSeek}, ids)

	claude, ok := roster.Get(Claude)
	require.True(t, ok)
	assert.False(t, claude.Enabled())
	assert.Equal(t, "claude-3-5-sonnet-20241022", claude.Model())

	deepseek, _ := roster.Get(DeepSeek)
	require.True(t, deepseek.Enabled())
	assert.Equal(t, "deepseek", deepseek.Provider().Name())

	_, ok = roster.Get("grok")
	assert.False(t, ok)
}

func TestRosterNotLiveWithoutKeys(t *testing.T) {
	assert.False(t, NewRoster(config.Config{}, nil).Live())
}
