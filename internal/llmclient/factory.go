package llmclient

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// Overrides carries the per-request provider selection the HTTP service
// accepts. Empty fields keep the configured value.
type Overrides struct {
	Provider string
	Model    string
	Endpoint string
}

// ApplyOverrides returns a copy of cfg with the non-empty override fields
// applied. An unknown provider name is rejected here, before any client is
// constructed.
func ApplyOverrides(cfg config.LLMConfig, o Overrides) (config.LLMConfig, error) {
	if o.Provider != "" {
		provider, err := config.ParseProvider(o.Provider)
		if err != nil {
			return cfg, err
		}
		cfg.Provider = provider
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	return cfg, nil
}

// NewProvider builds the CompletionProvider selected by cfg.Provider.
func NewProvider(cfg config.LLMConfig, logger *zap.Logger) (schemas.CompletionProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg, logger)
	case config.ProviderOllama:
		return NewOllamaProvider(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiProvider(cfg, logger)
	default:
		supported := []string{
			string(config.ProviderOpenAI),
			string(config.ProviderAnthropic),
			string(config.ProviderOllama),
			string(config.ProviderGemini),
		}
		return nil, fmt.Errorf("unknown llm provider %q (supported: %s)",
			cfg.Provider, strings.Join(supported, ", "))
	}
}
