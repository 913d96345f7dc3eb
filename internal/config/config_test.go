package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg, err := NewDefaultConfig()
	require.NoError(t, err)

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	assert.Equal(t, 15, cfg.Agent.MaxIterations)
	assert.Equal(t, 5*time.Minute, cfg.Agent.RunTimeout)
	assert.Equal(t, ProviderOllama, cfg.Agent.LLM.Provider)
	assert.Equal(t, "mistral", cfg.Agent.LLM.Model)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Server.MaxSessions)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.Server.RateLimit.PerMinute)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Empty(t, cfg.Database.URL)
}

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"openai", " OpenAI ", "ANTHROPIC", "ollama", "gemini"} {
		_, err := ParseProvider(name)
		assert.NoError(t, err, "provider %q should parse", name)
	}

	_, err := ParseProvider("bard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown llm provider "bard"`)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := NewDefaultConfig()
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid default config", func(t *testing.T) {
		assert.NoError(t, valid(t).Validate())
	})

	t.Run("iteration budget", func(t *testing.T) {
		cfg := valid(t)
		cfg.Agent.MaxIterations = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent.max_iterations must be at least 1")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid(t)
		cfg.Agent.LLM.Provider = "skynet"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := valid(t)
		cfg.Agent.LLM.Model = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent.llm.model must be set")
	})

	t.Run("viewport bounds", func(t *testing.T) {
		cfg := valid(t)
		cfg.Browser.ViewportHeight = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "viewport dimensions")
	})

	t.Run("rate limit bounds", func(t *testing.T) {
		cfg := valid(t)
		cfg.Server.RateLimit.PerMinute = 0
		assert.Error(t, cfg.Validate())

		cfg.Server.RateLimit.Enabled = false
		assert.NoError(t, cfg.Validate(), "disabled limiter skips the bound check")
	})

	t.Run("cache ttl required when enabled", func(t *testing.T) {
		cfg := valid(t)
		cfg.Cache.RedisURL = "redis://localhost:6379"
		cfg.Cache.TTL = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.ttl")
	})
}

// -- Loading Tests --

func TestNewConfigFromViperYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yaml := []byte(`
agent:
  max_iterations: 25
  llm:
    provider: anthropic
    model: claude-sonnet-4-20250514
browser:
  headless: false
  post_load_wait: 500ms
server:
  addr: ":9000"
`)
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Agent.MaxIterations)
	assert.Equal(t, ProviderAnthropic, cfg.Agent.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Agent.LLM.Model)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.PostLoadWait)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Agent.RunTimeout)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("agent.llm.model", "")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestSecretEnvBinding(t *testing.T) {
	t.Setenv("COMET_AGENT_LLM_API_KEY", "sk-from-env")
	t.Setenv("DATABASE_URL", "postgres://env/db")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Agent.LLM.APIKey)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
}

func TestExpandPaths(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.screenshot_dir", "~/captures")
	v.Set("logger.log_file", "~/logs/comet.log")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.NotContains(t, cfg.Browser.ScreenshotDir, "~")
	assert.NotContains(t, cfg.Logger.LogFile, "~")
	assert.Contains(t, cfg.Browser.ScreenshotDir, "captures")
}
