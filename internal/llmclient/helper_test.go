package llmclient

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// setupTestLogger creates an observed zap logger for assertions on output.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// validLLMConfig returns a config pointing at the given endpoint with short
// timeouts suitable for httptest servers.
func validLLMConfig(provider config.LLMProvider, endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    provider,
		Model:       "test-model",
		APIKey:      "test-api-key",
		Endpoint:    endpoint,
		APITimeout:  5 * time.Second,
		Temperature: 0.7,
		MaxTokens:   256,
	}
}

// sampleRequest builds a small transcript exercising every message role.
func sampleRequest() schemas.CompletionRequest {
	inv := &schemas.ToolInvocation{Name: "navigate", Arguments: []byte(`{"url":"https://example.com"}`)}
	return schemas.CompletionRequest{
		Messages: []schemas.Message{
			schemas.NewSystemMessage("You browse the web."),
			schemas.NewUserMessage("Goal: check example.com"),
			schemas.NewAssistantMessage("Opening the page.", inv),
			schemas.NewToolMessage(`{"tool_name":"navigate","success":true}`),
		},
		Tools: []schemas.ToolSpec{
			{
				Name:        "navigate",
				Description: "Navigate to a URL",
				Params: []schemas.ParamSpec{
					{Name: "url", Type: "string", Description: "target", Required: true},
				},
			},
		},
	}
}
