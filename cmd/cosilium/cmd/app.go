package cmd

import (
	"fmt"
	"log/slog"

	"github.com/sozercan/cosilium/internal/agents"
	"github.com/sozercan/cosilium/internal/analyzer"
	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/fetch"
	"github.com/sozercan/cosilium/internal/store"
	"github.com/sozercan/cosilium/internal/telemetry"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *events.Bus
	store    *store.Store
	recorder *telemetry.Recorder
	roster   agents.Roster
	analyzer *analyzer.Analyzer
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(cfg.Telemetry.BusBuffer),
	}

	recorderOpts := []telemetry.Option{telemetry.WithLogger(logger)}
	agentOpts := []agents.Option{agents.WithLogger(logger)}

	if cfg.Telemetry.DBPath != "" {
		st, err := store.Open(cfg.Telemetry.DBPath)
		if err != nil {
			a.bus.Close()
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = st
		recorderOpts = append(recorderOpts, telemetry.WithPersister(st))
		agentOpts = append(agentOpts, agents.WithPromptSource(st))
		logger.Debug("telemetry store opened", "path", cfg.Telemetry.DBPath)
	}

	a.recorder = telemetry.NewRecorder(a.bus, recorderOpts...)
	agentOpts = append(agentOpts, agents.WithRecorder(a.recorder))
	a.roster = agents.NewRoster(*cfg, nil, agentOpts...)

	analyzerOpts := []analyzer.Option{
		analyzer.WithProviderTimeout(cfg.Analysis.ProviderTimeout),
		analyzer.WithDemoDelay(cfg.Analysis.DemoDelay),
		analyzer.WithTelemetry(a.recorder),
		analyzer.WithLogger(logger),
	}
	if cfg.Fetch.Enabled {
		analyzerOpts = append(analyzerOpts, analyzer.WithEnricher(fetch.New(
			cfg.Fetch.Timeout,
			fetch.WithMaxChars(cfg.Fetch.MaxChars),
			fetch.WithAllowPrivate(cfg.Fetch.AllowPrivate),
			fetch.WithLogger(logger),
		)))
	}
	a.analyzer = analyzer.NewFromRoster(a.roster, analyzerOpts...)

	for _, ag := range a.roster {
		logger.Debug("agent configured", "agent", ag.ID, "model", ag.Model(), "enabled", ag.Enabled())
	}
	return a, nil
}

// Close waits for pending telemetry writes, then releases the bus and store.
func (a *app) Close() {
	a.recorder.Flush()
	a.bus.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store failed", "error", err)
		}
	}
}
