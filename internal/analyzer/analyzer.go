package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/agents"
	"github.com/sozercan/cosilium/internal/events"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProviderTimeout = 60 * time.Second
	defaultDemoDelay       = 2 * time.Second
)

// ErrTaskRequired is returned for a blank task.
var ErrTaskRequired = errors.New("task is required")

// Agent is one analyst. Analyze must not panic and returns nil on failure.
type Agent interface {
	Enabled() bool
	Analyze(ctx context.Context, in agents.Input) *apimodels.AgentAnalysis
}

// Telemetry receives request lifecycle events.
type Telemetry interface {
	RecordAnalysis(events.AnalysisEvent)
	RecordLog(events.LogEvent)
}

// Enricher expands context items before they are sent to the agents.
type Enricher interface {
	Enrich(ctx context.Context, items []apimodels.ContextItem) []apimodels.ContextItem
}

type nopTelemetry struct{}

func (nopTelemetry) RecordAnalysis(events.AnalysisEvent) {}
func (nopTelemetry) RecordLog(events.LogEvent)           {}

type Analyzer struct {
	agents          []Agent
	live            bool
	providerTimeout time.Duration
	demoDelay       time.Duration
	telemetry       Telemetry
	enricher        Enricher
	logger          *slog.Logger
}

type Option func(*Analyzer)

// WithProviderTimeout bounds each agent call independently.
func WithProviderTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.providerTimeout = d
		}
	}
}

// WithDemoDelay sets the simulated latency of the demo path.
func WithDemoDelay(d time.Duration) Option {
	return func(a *Analyzer) {
		if d >= 0 {
			a.demoDelay = d
		}
	}
}

func WithTelemetry(t Telemetry) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.telemetry = t
		}
	}
}

func WithEnricher(e Enricher) Option {
	return func(a *Analyzer) { a.enricher = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an analyzer. It runs in live mode when at least one agent is
// enabled; the decision is made once here.
func New(members []Agent, opts ...Option) *Analyzer {
	a := &Analyzer{
		agents:          members,
		providerTimeout: defaultProviderTimeout,
		demoDelay:       defaultDemoDelay,
		telemetry:       nopTelemetry{},
		logger:          slog.Default(),
	}
	for _, m := range members {
		if m.Enabled() {
			a.live = true
			break
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromRoster creates an analyzer over the configured agents.
func NewFromRoster(roster agents.Roster, opts ...Option) *Analyzer {
	members := make([]Agent, len(roster))
	for i, a := range roster {
		members[i] = a
	}
	return New(members, opts...)
}

// Live reports whether real providers are called.
func (a *Analyzer) Live() bool {
	return a.live
}

// Mode is the response mode when providers behave, "live" or "demo".
func (a *Analyzer) Mode() string {
	if a.live {
		return apimodels.ModeLive
	}
	return apimodels.ModeDemo
}

func (a *Analyzer) Analyze(ctx context.Context, req apimodels.AnalysisRequest) (*apimodels.AnalysisResponse, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrTaskRequired
	}

	startTime := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := a.logger.With("session_id", sessionID)
	logger.Info("Starting analysis", "task_type", req.TaskType, "live", a.live, "context_items", len(req.Context))

	start := events.NewAnalysisEvent(events.TypeAnalysisStart, sessionID, "started")
	start.TaskType = req.TaskType
	start.Agents = len(a.agents)
	a.telemetry.RecordAnalysis(start)

	var (
		analyses []apimodels.AgentAnalysis
		mode     = apimodels.ModeDemo
		enabled  int
	)
	if a.live {
		in := agents.Input{
			Task:      req.Task,
			TaskType:  req.TaskType,
			Context:   req.Context,
			SessionID: sessionID,
		}
		if a.enricher != nil && len(in.Context) > 0 {
			in.Context = a.enricher.Enrich(ctx, in.Context)
		}

		analyses, enabled = a.fanOut(ctx, in)
		if len(analyses) > 0 {
			mode = apimodels.ModeLive
		} else {
			logger.Warn("All providers failed, returning demo analyses", "agents_enabled", enabled)
			a.telemetry.RecordLog(events.NewLogEvent(sessionID, "", events.LevelWarning,
				"All providers failed, falling back to demo analyses"))
			analyses = MockAnalyses(req.Task, req.TaskType)
		}
	} else {
		if err := sleepContext(ctx, a.demoDelay); err != nil {
			return nil, fmt.Errorf("waiting for demo analyses: %w", err)
		}
		analyses = MockAnalyses(req.Task, req.TaskType)
	}

	resp := &apimodels.AnalysisResponse{
		Analyses:   analyses,
		Synthesis:  Synthesize(analyses, req.Task),
		Iterations: req.MaxIterations,
		Mode:       mode,
		SessionID:  sessionID,
	}
	for _, an := range analyses {
		resp.Metrics.TotalTokens += an.Tokens
		resp.Metrics.TotalCost += an.Cost
	}
	if mode == apimodels.ModeLive {
		resp.Metrics.AgentsSucceeded = len(analyses)
		resp.Metrics.AgentsFailed = enabled - len(analyses)
	} else {
		resp.Metrics.AgentsFailed = enabled
	}
	resp.Metrics.DurationMS = time.Since(startTime).Milliseconds()

	complete := events.NewAnalysisEvent(events.TypeAnalysisComplete, sessionID, "completed")
	complete.TaskType = req.TaskType
	complete.Mode = mode
	complete.Agents = len(analyses)
	complete.Tokens = resp.Metrics.TotalTokens
	complete.CostUSD = resp.Metrics.TotalCost
	complete.Duration = resp.Metrics.DurationMS
	a.telemetry.RecordAnalysis(complete)

	logger.Info("Analysis completed",
		"mode", mode,
		"analyses", len(analyses),
		"total_tokens", resp.Metrics.TotalTokens,
		"total_cost", resp.Metrics.TotalCost,
		"duration", time.Since(startTime),
	)
	return resp, nil
}

// fanOut calls every enabled agent concurrently and waits for all of them.
// A fast answer never cancels a slow one; each call has its own deadline.
// Calls are detached from ctx cancellation so a disconnecting client does
// not abort provider calls that are already in flight.
func (a *Analyzer) fanOut(ctx context.Context, in agents.Input) ([]apimodels.AgentAnalysis, int) {
	results := make([]*apimodels.AgentAnalysis, len(a.agents))
	enabled := 0
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, agent := range a.agents {
		if !agent.Enabled() {
			continue
		}
		enabled++
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.providerTimeout)
			defer cancel()
			results[i] = agent.Analyze(callCtx, in)
			return nil
		})
	}
	_ = g.Wait()

	analyses := make([]apimodels.AgentAnalysis, 0, len(results))
	for _, r := range results {
		if r != nil {
			analyses = append(analyses, *r)
		}
	}
	return analyses, enabled
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
