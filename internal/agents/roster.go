package agents

import (
	"log/slog"

	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/llm"
)

// Roster is the fixed set of agents in response order.
type Roster []*Agent

// NewRoster builds all four agents from configuration. Providers without an
// API key produce disabled agents; configured ones are wrapped in a breaker.
func NewRoster(cfg config.Config, llmOpts []llm.Option, opts ...Option) Roster {
	logger := slog.Default()
	probe := &Agent{logger: logger}
	for _, opt := range opts {
		opt(probe)
	}

	roster := make(Roster, 0, len(Profiles))
	for _, profile := range Profiles {
		pc := providerConfig(cfg.Providers, profile.ID)

		var provider llm.Provider
		if pc.Configured() {
			provider = llm.WithBreaker(
				newProvider(profile.ID, pc, llmOpts...),
				cfg.Analysis.BreakerFailures,
				cfg.Analysis.BreakerCooldown,
				probe.logger,
			)
		}
		roster = append(roster, New(profile, pc, provider, opts...))
	}
	return roster
}

func providerConfig(p config.ProvidersConfig, agentID string) config.ProviderConfig {
	switch agentID {
	case ChatGPT:
		return p.OpenAI
	case Claude:
		return p.Anthropic
	case Gemini:
		return p.Google
	default:
		return p.DeepSeek
	}
}

func newProvider(agentID string, pc config.ProviderConfig, opts ...llm.Option) llm.Provider {
	switch agentID {
	case ChatGPT:
		return llm.NewOpenAI("openai", pc, opts...)
	case Claude:
		return llm.NewAnthropic(pc, opts...)
	case Gemini:
		return llm.NewGoogle(pc, opts...)
	default:
		return llm.NewOpenAI("deepseek", pc, opts...)
	}
}

// Get returns the agent with id.
func (r Roster) Get(id string) (*Agent, bool) {
	for _, a := range r {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Live reports whether at least one agent can reach its provider.
func (r Roster) Live() bool {
	for _, a := range r {
		if a.Enabled() {
			return true
		}
	}
	return false
}
