package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

const defaultOllamaBase = "http://localhost:11434"

// OllamaProvider speaks the native ollama chat API. It has no structured
// tool-calling: the tool briefing travels in the system prompt and the agent
// loop extracts the call from the response text.
type OllamaProvider struct {
	cfg        config.LLMConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Ollama wire shapes --

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool  `json:"done"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	TotalDuration   int64 `json:"total_duration"`
}

// NewOllamaProvider initializes the client. No API key is needed for a local
// ollama daemon.
func NewOllamaProvider(cfg config.LLMConfig, logger *zap.Logger) (*OllamaProvider, error) {
	base := cfg.Endpoint
	if base == "" {
		base = defaultOllamaBase
	}
	return &OllamaProvider{
		cfg:        cfg,
		endpoint:   strings.TrimSuffix(base, "/") + "/api/chat",
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llmclient.ollama"),
	}, nil
}

// Name implements schemas.CompletionProvider.
func (p *OllamaProvider) Name() string { return string(config.ProviderOllama) }

// Complete implements schemas.CompletionProvider. The tool specs in req are
// not sent structurally; the loop's system prompt already carries the
// briefing for text-only providers.
func (p *OllamaProvider) Complete(ctx context.Context, req schemas.CompletionRequest) (schemas.CompletionResult, error) {
	payload := ollamaRequest{
		Model:    p.cfg.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   false,
		Options: ollamaOptions{
			NumPredict:  p.cfg.MaxTokens,
			Temperature: p.cfg.Temperature,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("marshaling request: %w", err))
	}

	respBody, err := postJSON(ctx, p.httpClient, p.logger, p.endpoint, nil, body)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), err)
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("decoding response: %w", err))
	}

	p.logger.Info("Completion finished.",
		zap.Int("prompt_eval_count", resp.PromptEvalCount),
		zap.Int("eval_count", resp.EvalCount))

	return schemas.CompletionResult{Text: resp.Message.Content}, nil
}

// toOllamaMessages flattens the transcript into the three roles ollama
// understands. Tool results become user messages so the model sees them as
// turn input rather than an unknown role.
func toOllamaMessages(messages []schemas.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case schemas.RoleTool:
			out = append(out, ollamaMessage{Role: "user", Content: "Tool result: " + m.Content})
		default:
			out = append(out, ollamaMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}
