package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/agents"
	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	id         string
	enabled    bool
	confidence float64
	fail       bool
	delay      time.Duration
	calls      atomic.Int32
	lastInput  agents.Input
	deadline   time.Time
	mu         sync.Mutex
}

func (f *fakeAgent) Enabled() bool { return f.enabled }

func (f *fakeAgent) Analyze(ctx context.Context, in agents.Input) *apimodels.AgentAnalysis {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastInput = in
	f.deadline, _ = ctx.Deadline()
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil
		}
	}
	if f.fail {
		return nil
	}
	return &apimodels.AgentAnalysis{
		AgentID:    f.id,
		Confidence: f.confidence,
		Tokens:     100,
		Cost:       0.01,
	}
}

type captureTelemetry struct {
	mu       sync.Mutex
	analysis []events.AnalysisEvent
	logs     []events.LogEvent
}

func (c *captureTelemetry) RecordAnalysis(e events.AnalysisEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysis = append(c.analysis, e)
}

func (c *captureTelemetry) RecordLog(e events.LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, e)
}

type prefixEnricher struct{}

func (prefixEnricher) Enrich(_ context.Context, items []apimodels.ContextItem) []apimodels.ContextItem {
	out := make([]apimodels.ContextItem, len(items))
	for i, it := range items {
		it.Content = "enriched:" + it.Content
		out[i] = it
	}
	return out
}

func fourAgents(enabled bool) []*fakeAgent {
	return []*fakeAgent{
		{id: agents.ChatGPT, enabled: enabled, confidence: 0.85},
		{id: agents.Claude, enabled: enabled, confidence: 0.88},
		{id: agents.Gemini, enabled: enabled, confidence: 0.82},
		{id: agents.DeepSeek, enabled: enabled, confidence: 0.86},
	}
}

func members(fakes []*fakeAgent) []Agent {
	out := make([]Agent, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func TestAnalyzeBlankTask(t *testing.T) {
	fakes := fourAgents(true)
	a := New(members(fakes))

	for _, task := range []string{"", "   ", "\n\t"} {
		_, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: task})
		assert.ErrorIs(t, err, ErrTaskRequired)
	}
	for _, f := range fakes {
		assert.Zero(t, f.calls.Load())
	}
}

func TestAnalyzeLive(t *testing.T) {
	fakes := fourAgents(true)
	fakes[1].fail = true
	tel := &captureTelemetry{}
	a := New(members(fakes), WithTelemetry(tel), WithProviderTimeout(time.Second))
	require.True(t, a.Live())

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{
		Task:          "Should we enter the EU market?",
		TaskType:      "strategy",
		MaxIterations: 2,
		SessionID:     "s-1",
	})
	require.NoError(t, err)

	assert.Equal(t, apimodels.ModeLive, resp.Mode)
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.Analyses, 3)
	assert.Equal(t, agents.ChatGPT, resp.Analyses[0].AgentID)
	assert.Equal(t, agents.Gemini, resp.Analyses[1].AgentID)
	assert.Equal(t, agents.DeepSeek, resp.Analyses[2].AgentID)

	assert.Equal(t, int64(300), resp.Metrics.TotalTokens)
	assert.InDelta(t, 0.03, resp.Metrics.TotalCost, 1e-9)
	assert.Equal(t, 3, resp.Metrics.AgentsSucceeded)
	assert.Equal(t, 1, resp.Metrics.AgentsFailed)
	assert.InDelta(t, (0.85+0.82+0.86)/3, resp.Synthesis.ConsensusLevel, 1e-9)

	require.Len(t, tel.analysis, 2)
	assert.Equal(t, events.TypeAnalysisStart, tel.analysis[0].EventType())
	assert.Equal(t, events.TypeAnalysisComplete, tel.analysis[1].EventType())
	assert.Equal(t, apimodels.ModeLive, tel.analysis[1].Mode)
}

func TestAnalyzeSkipsDisabledAgents(t *testing.T) {
	fakes := fourAgents(false)
	fakes[3].enabled = true
	a := New(members(fakes))

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "x"})
	require.NoError(t, err)
	require.Len(t, resp.Analyses, 1)
	assert.Equal(t, agents.DeepSeek, resp.Analyses[0].AgentID)
	assert.Zero(t, fakes[0].calls.Load())
	assert.Zero(t, resp.Iterations)
	assert.Zero(t, resp.Metrics.AgentsFailed)
}

func TestAnalyzeTotalOutageFallsBackToMocks(t *testing.T) {
	fakes := fourAgents(true)
	for _, f := range fakes {
		f.fail = true
	}
	tel := &captureTelemetry{}
	a := New(members(fakes), WithTelemetry(tel))

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "x", TaskType: "risk"})
	require.NoError(t, err)
	assert.Equal(t, apimodels.ModeDemo, resp.Mode)
	assert.Len(t, resp.Analyses, 4)
	assert.Equal(t, 4, resp.Metrics.AgentsFailed)
	assert.Zero(t, resp.Metrics.AgentsSucceeded)

	require.Len(t, tel.logs, 1)
	assert.Equal(t, events.LevelWarning, tel.logs[0].Level)
}

func TestAnalyzeDemo(t *testing.T) {
	a := New(members(fourAgents(false)), WithDemoDelay(0))
	require.False(t, a.Live())

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{
		Task:          "Should we enter the EU market?",
		TaskType:      "strategy",
		MaxIterations: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, apimodels.ModeDemo, resp.Mode)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Analyses, 4)

	valid := map[string]bool{agents.ChatGPT: true, agents.Claude: true, agents.Gemini: true, agents.DeepSeek: true}
	for _, an := range resp.Analyses {
		assert.True(t, valid[an.AgentID], an.AgentID)
		assert.Contains(t, an.Analysis, "Should we enter the EU market?")
	}
	assert.InDelta(t, 0.0412, resp.Metrics.TotalCost, 1e-9)
	assert.Equal(t, int64(1250+1480+980+850), resp.Metrics.TotalTokens)
	assert.InDelta(t, (0.85+0.88+0.82+0.86)/4, resp.Synthesis.ConsensusLevel, 1e-9)
}

func TestAnalyzeDemoDelayHonoursCancellation(t *testing.T) {
	a := New(members(fourAgents(false)), WithDemoDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Analyze(ctx, apimodels.AnalysisRequest{Task: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyzeSlowAgentIsNotCancelledByFastOnes(t *testing.T) {
	fakes := fourAgents(true)
	fakes[2].delay = 100 * time.Millisecond
	a := New(members(fakes), WithProviderTimeout(time.Second))

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "x"})
	require.NoError(t, err)
	assert.Len(t, resp.Analyses, 4)
}

func TestAnalyzeProviderTimeoutIsPerAgent(t *testing.T) {
	fakes := fourAgents(true)
	fakes[0].delay = time.Hour
	a := New(members(fakes), WithProviderTimeout(50*time.Millisecond))

	start := time.Now()
	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "x"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, resp.Analyses, 3)
	assert.False(t, fakes[1].deadline.IsZero(), "each call carries a deadline")
}

func TestAnalyzeEchoesMaxIterations(t *testing.T) {
	a := New(members(fourAgents(true)))

	for _, n := range []int{-3, 0, 1, 7} {
		resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "x", MaxIterations: n})
		require.NoError(t, err)
		assert.Equal(t, n, resp.Iterations)
	}
}

func TestAnalyzeIgnoresCallerCancellation(t *testing.T) {
	fakes := fourAgents(true)
	for _, f := range fakes {
		f.delay = 50 * time.Millisecond
	}
	a := New(members(fakes), WithProviderTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	resp, err := a.Analyze(ctx, apimodels.AnalysisRequest{Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, apimodels.ModeLive, resp.Mode)
	assert.Len(t, resp.Analyses, 4)
}

func TestAnalyzeEnrichesContext(t *testing.T) {
	fakes := fourAgents(true)
	a := New(members(fakes), WithEnricher(prefixEnricher{}))

	_, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{
		Task:    "x",
		Context: []apimodels.ContextItem{{Type: "url", Title: "t", Content: "https://example.com"}},
	})
	require.NoError(t, err)

	fakes[0].mu.Lock()
	defer fakes[0].mu.Unlock()
	assert.Equal(t, "enriched:https://example.com", fakes[0].lastInput.Context[0].Content)
}

type metricRecorder struct {
	mu      sync.Mutex
	metrics []events.MetricEvent
}

func (m *metricRecorder) RecordMetric(e events.MetricEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, e)
}

func (m *metricRecorder) RecordLog(events.LogEvent) {}

func providerServer(t *testing.T, status int, body string) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

const chatCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Key points:\n- expand carefully"}}],
  "usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
}`

func TestAnalyzeOneProviderRateLimited(t *testing.T) {
	var cfg config.Config
	cfg.Providers.OpenAI = config.ProviderConfig{
		APIKey: "sk-o", Model: "gpt-4o", BaseURL: providerServer(t, http.StatusOK, chatCompletion) + "/",
	}
	cfg.Providers.Anthropic = config.ProviderConfig{
		APIKey: "sk-ant", Model: "claude-3-5-sonnet-20241022",
		BaseURL: providerServer(t, http.StatusTooManyRequests,
			`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`),
	}
	cfg.Providers.Google = config.ProviderConfig{
		APIKey: "g-key", Model: "gemini-2.0-flash",
		BaseURL: providerServer(t, http.StatusOK, `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "Alternative approaches"}]}}],
  "usageMetadata": {"promptTokenCount": 50, "candidatesTokenCount": 70, "totalTokenCount": 120}
}`),
	}
	cfg.Providers.DeepSeek = config.ProviderConfig{
		APIKey: "sk-d", Model: "deepseek-chat", BaseURL: providerServer(t, http.StatusOK, chatCompletion) + "/",
	}
	cfg.Analysis.BreakerFailures = 5
	cfg.Analysis.BreakerCooldown = time.Second

	rec := &metricRecorder{}
	roster := agents.NewRoster(cfg, nil, agents.WithRecorder(rec), agents.WithLogger(logging.NewNop()))
	a := NewFromRoster(roster, WithProviderTimeout(5*time.Second), WithLogger(logging.NewNop()))

	resp, err := a.Analyze(context.Background(), apimodels.AnalysisRequest{Task: "Should we enter the EU market?"})
	require.NoError(t, err)

	assert.Equal(t, apimodels.ModeLive, resp.Mode)
	require.Len(t, resp.Analyses, 3)
	assert.Equal(t, []string{agents.ChatGPT, agents.Gemini, agents.DeepSeek},
		[]string{resp.Analyses[0].AgentID, resp.Analyses[1].AgentID, resp.Analyses[2].AgentID})
	assert.Equal(t, 3, resp.Metrics.AgentsSucceeded)
	assert.Equal(t, 1, resp.Metrics.AgentsFailed)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.metrics, 4)
	var failed []events.MetricEvent
	for _, m := range rec.metrics {
		if m.Status != events.StatusSuccess {
			failed = append(failed, m)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, agents.Claude, failed[0].AgentID)
	assert.Equal(t, events.StatusError, failed[0].Status)
	assert.Contains(t, failed[0].ErrorMessage, "429")
}

func TestConsensusLevel(t *testing.T) {
	all := []apimodels.AgentAnalysis{
		{Confidence: 0.85}, {Confidence: 0.88}, {Confidence: 0.82}, {Confidence: 0.86},
	}
	for n := 1; n <= len(all); n++ {
		var sum float64
		for _, a := range all[:n] {
			sum += a.Confidence
		}
		assert.InDelta(t, sum/float64(n), ConsensusLevel(all[:n]), 1e-12)
	}
	assert.Zero(t, ConsensusLevel(nil))
}

func TestSynthesizeTruncatesTask(t *testing.T) {
	task := "Должны ли мы выходить на рынок ЕС в следующем году, учитывая текущую экономическую ситуацию?"
	s := Synthesize(MockAnalyses(task, "strategy"), task)

	assert.Contains(t, s.Summary, `"`+string([]rune(task)[:50])+`..."`)
	assert.NotContains(t, s.Summary, task)
	assert.Contains(t, s.Summary, "Overall consensus: 85%")
	assert.Len(t, s.Conclusions, 3)
	assert.Len(t, s.Recommendations, 3)
	for _, r := range s.Recommendations {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 10.0)
	}
}

func TestMockAnalysesTruncateTask(t *testing.T) {
	task := "a" + strings.Repeat("b", 149)
	for _, an := range MockAnalyses(task, "risk") {
		assert.Contains(t, an.Analysis, `"`+task[:100]+`..."`)
		assert.NotContains(t, an.Analysis, task)
		assert.Equal(t, an.PromptTokens+an.CompletionTokens, an.Tokens)
	}
}
