// Package agents turns one LLM provider into an analyst with a fixed persona
// whose answers are normalized into apimodels.AgentAnalysis.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/cost"
	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/extract"
	"github.com/sozercan/cosilium/internal/llm"
)

// Prompt sources reported by SystemPrompt.
const (
	SourceDefault  = "default"
	SourceOverride = "override"
)

// Input is everything an agent needs for one analysis.
type Input struct {
	Task      string
	TaskType  string
	Context   []apimodels.ContextItem
	SessionID string
}

// PromptSource resolves operator overrides of the built-in personas.
type PromptSource interface {
	GetPrompt(ctx context.Context, agentID string) (content string, ok bool, err error)
}

// Recorder receives per-call telemetry.
type Recorder interface {
	RecordMetric(events.MetricEvent)
	RecordLog(events.LogEvent)
}

type nopRecorder struct{}

func (nopRecorder) RecordMetric(events.MetricEvent) {}
func (nopRecorder) RecordLog(events.LogEvent)       {}

type Agent struct {
	Profile

	cfg      config.ProviderConfig
	provider llm.Provider
	prompts  PromptSource
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Agent)

func WithPromptSource(p PromptSource) Option {
	return func(a *Agent) { a.prompts = p }
}

func WithRecorder(r Recorder) Option {
	return func(a *Agent) {
		if r != nil {
			a.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an agent. A nil provider yields a disabled agent whose
// Analyze always returns nil.
func New(profile Profile, cfg config.ProviderConfig, provider llm.Provider, opts ...Option) *Agent {
	a := &Agent{
		Profile:  profile,
		cfg:      cfg,
		provider: provider,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Enabled() bool          { return a.provider != nil }
func (a *Agent) Model() string          { return a.cfg.Model }
func (a *Agent) Temperature() float64   { return a.cfg.Temperature }
func (a *Agent) MaxTokens() int64       { return a.cfg.MaxTokens }
func (a *Agent) Provider() llm.Provider { return a.provider }

// SystemPrompt returns the effective persona and where it came from.
// Lookup failures fall back to the built-in persona.
func (a *Agent) SystemPrompt(ctx context.Context) (string, string) {
	if a.prompts == nil {
		return a.Persona, SourceDefault
	}
	content, ok, err := a.prompts.GetPrompt(ctx, a.ID)
	if err != nil {
		a.logger.Warn("prompt override lookup failed, using default", "agent", a.ID, "error", err)
		return a.Persona, SourceDefault
	}
	if !ok || strings.TrimSpace(content) == "" {
		return a.Persona, SourceDefault
	}
	return content, SourceOverride
}

// UserMessage renders the task, its context and the agent's closing instruction.
func (a *Agent) UserMessage(in Input) string {
	return fmt.Sprintf("Analysis type: %s\n\nTask:\n%s%s\n\n%s",
		in.TaskType, in.Task, FormatContext(in.Context), a.Instruction)
}

// FormatContext renders context items as a delimited block, or "" when empty.
func FormatContext(items []apimodels.ContextItem) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, len(items))
	for i, item := range items {
		label := "Data"
		if item.Type == apimodels.ContextURL {
			label = "Link"
		}
		parts[i] = fmt.Sprintf("### %s %d: %s\n%s", label, i+1, item.Title, item.Content)
	}
	return "\n\n---\nADDITIONAL CONTEXT:\n" + strings.Join(parts, "\n\n") + "\n---\n"
}

// Analyze performs one provider call and returns nil on any failure.
// Every attempted call produces exactly one metric and one log record.
func (a *Agent) Analyze(ctx context.Context, in Input) (result *apimodels.AgentAnalysis) {
	if a.provider == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.recordFailure(in.SessionID, start, fmt.Errorf("panic: %v", r), events.StatusError)
			result = nil
		}
	}()

	system, _ := a.SystemPrompt(ctx)
	user := a.UserMessage(in)

	// latency covers the provider call only
	start = time.Now()
	resp, err := a.provider.Complete(ctx, llm.Prompt{System: system, User: user})
	if err != nil {
		status := events.StatusError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = events.StatusTimeout
		}
		a.recordFailure(in.SessionID, start, err, status)
		return nil
	}

	latency := time.Since(start).Milliseconds()
	model := resp.Model
	if model == "" {
		model = a.cfg.Model
	}
	costModel := model
	if _, ok := cost.Lookup(costModel); !ok {
		costModel = a.cfg.Model
	}
	usd := cost.Calculate(costModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	result = &apimodels.AgentAnalysis{
		AgentName:        a.Name,
		AgentID:          a.ID,
		Confidence:       a.Confidence,
		Analysis:         resp.Content,
		KeyPoints:        nonNil(extract.KeyPoints(resp.Content)),
		Risks:            nonNil(extract.Risks(resp.Content)),
		Assumptions:      nonNil(extract.Assumptions(resp.Content)),
		Duration:         latency,
		Tokens:           resp.Usage.TotalTokens,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Cost:             usd,
		Model:            model,
	}

	metric := events.NewMetricEvent(in.SessionID, a.ID, events.StatusSuccess)
	metric.Model = model
	metric.PromptTokens = resp.Usage.PromptTokens
	metric.CompletionTokens = resp.Usage.CompletionTokens
	metric.TotalTokens = resp.Usage.TotalTokens
	metric.CostUSD = usd
	metric.LatencyMS = latency
	a.recorder.RecordMetric(metric)
	a.recorder.RecordLog(events.NewLogEvent(in.SessionID, a.ID, events.LevelSuccess,
		fmt.Sprintf("%s completed analysis in %dms (%d tokens, $%.4f)", a.Name, latency, resp.Usage.TotalTokens, usd)))

	a.logger.Debug("agent analysis completed",
		"agent", a.ID,
		"session_id", in.SessionID,
		"model", model,
		"latency_ms", latency,
		"tokens", resp.Usage.TotalTokens,
	)
	return result
}

func (a *Agent) recordFailure(sessionID string, start time.Time, err error, status string) {
	latency := time.Since(start).Milliseconds()

	metric := events.NewMetricEvent(sessionID, a.ID, status)
	metric.Model = a.cfg.Model
	metric.LatencyMS = latency
	metric.ErrorMessage = err.Error()
	a.recorder.RecordMetric(metric)
	a.recorder.RecordLog(events.NewLogEvent(sessionID, a.ID, events.LevelError,
		fmt.Sprintf("%s failed: %s", a.Name, err.Error())))

	a.logger.Warn("agent analysis failed",
		"agent", a.ID,
		"session_id", sessionID,
		"status", status,
		"latency_ms", latency,
		"error", err,
	)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
