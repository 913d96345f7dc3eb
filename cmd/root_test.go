package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears the global viper state between tests; cobra and viper
// share one instance across the whole package.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestInitializeConfigDefaults(t *testing.T) {
	resetViper(t)
	cfgFile = ""

	require.NoError(t, initializeConfig())
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Agent.MaxIterations)
	assert.Equal(t, 5*time.Minute, cfg.Agent.RunTimeout)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.True(t, cfg.Browser.Headless)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	resetViper(t)
	cfgFile = ""
	t.Setenv("COMET_AGENT_MAX_ITERATIONS", "7")
	t.Setenv("COMET_LOGGER_LEVEL", "debug")

	require.NoError(t, initializeConfig())
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Agent.MaxIterations)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestInitializeConfigFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  llm:\n    provider: openai\n    model: gpt-4o\n"), 0o600))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	require.NoError(t, initializeConfig())
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", string(cfg.Agent.LLM.Provider))
	assert.Equal(t, "gpt-4o", cfg.Agent.LLM.Model)
}

func TestInitializeConfigRejectsBadFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [not a map\n"), 0o600))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	require.Error(t, initializeConfig())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)
}
