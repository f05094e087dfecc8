package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, env := range providerKeyEnv {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 60*time.Second, cfg.Analysis.ProviderTimeout)
	assert.Equal(t, 2*time.Second, cfg.Analysis.DemoDelay)
	assert.Equal(t, uint32(5), cfg.Analysis.BreakerFailures)
	assert.Equal(t, "gpt-4o", cfg.Providers.OpenAI.Model)
	assert.InDelta(t, 0.3, cfg.Providers.OpenAI.Temperature, 1e-9)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Providers.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Providers.Anthropic.MaxTokens)
	assert.Equal(t, "gemini-2.0-flash", cfg.Providers.Google.Model)
	assert.Equal(t, "deepseek-chat", cfg.Providers.DeepSeek.Model)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.Heartbeat)
	assert.False(t, cfg.Fetch.Enabled)
	assert.False(t, cfg.Fetch.AllowPrivate)
	assert.False(t, cfg.Providers.AnyConfigured())
}

func TestLoadProviderKeysFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("COSILIUM_PROVIDERS_DEEPSEEK_API_KEY", "sk-deep")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, "sk-deep", cfg.Providers.DeepSeek.APIKey)
	assert.False(t, cfg.Providers.OpenAI.Configured())
	assert.True(t, cfg.Providers.AnyConfigured())
}

func TestLoadConfigFile(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "cosilium.yaml")
	content := `
server:
  port: "9090"
providers:
  openai:
    model: gpt-4o-mini
    temperature: 0.7
analysis:
  provider_timeout: 15s
  demo_delay: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("COSILIUM_SERVER_PORT", "7070")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	// env wins over the file
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Providers.OpenAI.Model)
	assert.InDelta(t, 0.7, cfg.Providers.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.Analysis.ProviderTimeout)
	assert.Zero(t, cfg.Analysis.DemoDelay)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearProviderEnv(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	cfg.Analysis.ProviderTimeout = 0
	cfg.Providers.Google.Temperature = 3
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.provider_timeout")
	assert.Contains(t, err.Error(), "providers.google.temperature")
}

func TestValidateAzure(t *testing.T) {
	clearProviderEnv(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Providers.OpenAI.Provider)

	cfg.Providers.OpenAI.Provider = "azure"
	cfg.Providers.OpenAI.APIVersion = ""
	assert.ErrorContains(t, cfg.Validate(), "required for azure")

	cfg.Providers.OpenAI.BaseURL = "https://my-resource.openai.azure.com"
	cfg.Providers.OpenAI.APIVersion = "2024-06-01"
	assert.NoError(t, cfg.Validate())

	cfg.Providers.OpenAI.Provider = "bedrock"
	assert.ErrorContains(t, cfg.Validate(), `"bedrock" is not supported`)
}
