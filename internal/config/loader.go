package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "COSILIUM"

// providerKeyEnv maps provider key settings to the variable names the
// provider SDKs use, so existing shells work without the prefix.
var providerKeyEnv = map[string]string{
	"providers.openai.api_key":    "OPENAI_API_KEY",
	"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
	"providers.google.api_key":    "GOOGLE_API_KEY",
	"providers.deepseek.api_key":  "DEEPSEEK_API_KEY",
}

// Load reads configuration from, highest precedence first: flags bound on v,
// COSILIUM_* and provider key environment variables, the config file and
// the defaults. A .env file in the working directory is loaded into the
// environment first; variables already set win over it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	_ = godotenv.Load()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range providerKeyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cosilium")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	slog.Debug("configuration loaded successfully", "file", v.ConfigFileUsed())
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	// SSE streams stay open, so writes are bounded per request instead.
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.static_dir", "web/static")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1/")
	v.SetDefault("providers.openai.model", "gpt-4o")
	v.SetDefault("providers.openai.temperature", 0.3)
	v.SetDefault("providers.openai.max_tokens", 0)
	v.SetDefault("providers.openai.provider", "openai")
	v.SetDefault("providers.openai.api_version", "")

	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("providers.anthropic.temperature", 0)
	v.SetDefault("providers.anthropic.max_tokens", 4096)

	v.SetDefault("providers.google.api_key", "")
	v.SetDefault("providers.google.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.google.model", "gemini-2.0-flash")
	v.SetDefault("providers.google.temperature", 0.5)
	v.SetDefault("providers.google.max_tokens", 0)

	v.SetDefault("providers.deepseek.api_key", "")
	v.SetDefault("providers.deepseek.base_url", "https://api.deepseek.com/")
	v.SetDefault("providers.deepseek.model", "deepseek-chat")
	v.SetDefault("providers.deepseek.temperature", 0.2)
	v.SetDefault("providers.deepseek.max_tokens", 0)

	v.SetDefault("analysis.provider_timeout", "60s")
	v.SetDefault("analysis.demo_delay", "2s")
	v.SetDefault("analysis.breaker_failures", 5)
	v.SetDefault("analysis.breaker_cooldown", "30s")

	v.SetDefault("telemetry.db_path", "cosilium.db")
	v.SetDefault("telemetry.bus_buffer", 256)
	v.SetDefault("telemetry.heartbeat", "30s")

	v.SetDefault("fetch.enabled", false)
	v.SetDefault("fetch.allow_private", false)
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_chars", 8000)
}
