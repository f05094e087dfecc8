package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout bounds every non-streaming API request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	StaticDir      string        `mapstructure:"static_dir"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig configures one LLM provider. A provider without an API key
// is disabled.
type ProviderConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	// Provider selects the OpenAI-compatible backend: "openai" or "azure".
	// With "azure", BaseURL is the resource endpoint and Model the deployment.
	Provider   string `mapstructure:"provider"`
	APIVersion string `mapstructure:"api_version"`
}

// Configured reports whether the provider has an API key.
func (c ProviderConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Google    ProviderConfig `mapstructure:"google"`
	DeepSeek  ProviderConfig `mapstructure:"deepseek"`
}

// AnyConfigured reports whether at least one provider has an API key.
func (c ProvidersConfig) AnyConfigured() bool {
	return c.OpenAI.Configured() || c.Anthropic.Configured() ||
		c.Google.Configured() || c.DeepSeek.Configured()
}

type AnalysisConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	DemoDelay       time.Duration `mapstructure:"demo_delay"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type TelemetryConfig struct {
	// DBPath is the sqlite file. Empty disables persistence.
	DBPath    string        `mapstructure:"db_path"`
	BusBuffer int           `mapstructure:"bus_buffer"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type FetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	// AllowPrivate permits loopback, private and link-local targets.
	AllowPrivate bool `mapstructure:"allow_private"`
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Analysis.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("analysis.provider_timeout must be positive"))
	}
	if c.Analysis.DemoDelay < 0 {
		errs = append(errs, errors.New("analysis.demo_delay must not be negative"))
	}
	for name, p := range map[string]ProviderConfig{
		"openai":    c.Providers.OpenAI,
		"anthropic": c.Providers.Anthropic,
		"google":    c.Providers.Google,
		"deepseek":  c.Providers.DeepSeek,
	} {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			errs = append(errs, fmt.Errorf("providers.%s.temperature must be within [0, 2]", name))
		}
	}
	if oa := c.Providers.OpenAI; oa.Provider == "azure" && (oa.BaseURL == "" || oa.APIVersion == "") {
		errs = append(errs, errors.New("providers.openai.base_url and api_version are required for azure"))
	} else if oa.Provider != "" && oa.Provider != "openai" && oa.Provider != "azure" {
		errs = append(errs, fmt.Errorf("providers.openai.provider %q is not supported", oa.Provider))
	}
	return errors.Join(errs...)
}
