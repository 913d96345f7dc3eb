package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

func TestNewProviderSelection(t *testing.T) {
	logger, _ := setupTestLogger(t)

	tests := []struct {
		provider config.LLMProvider
		wantName string
	}{
		{config.ProviderOpenAI, "openai"},
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderOllama, "ollama"},
		{config.ProviderGemini, "gemini"},
	}
	for _, tc := range tests {
		t.Run(string(tc.provider), func(t *testing.T) {
			p, err := NewProvider(validLLMConfig(tc.provider, "http://localhost:9"), logger)
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, p.Name())
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := validLLMConfig("replicator", "")

	_, err := NewProvider(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestApplyOverrides(t *testing.T) {
	base := validLLMConfig(config.ProviderOllama, "http://localhost:11434")

	out, err := ApplyOverrides(base, Overrides{
		Provider: "OpenAI",
		Model:    "gpt-4o-mini",
		Endpoint: "https://gateway.internal",
	})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOpenAI, out.Provider)
	assert.Equal(t, "gpt-4o-mini", out.Model)
	assert.Equal(t, "https://gateway.internal", out.Endpoint)

	// Empty overrides keep the configured values.
	unchanged, err := ApplyOverrides(base, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, base, unchanged)

	_, err = ApplyOverrides(base, Overrides{Provider: "skynet"})
	assert.Error(t, err)
}
