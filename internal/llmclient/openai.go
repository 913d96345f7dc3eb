package llmclient

import (
	"context"
	encodingjson "encoding/json"
	"fmt"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

const defaultOpenAIBase = "https://api.openai.com"

// OpenAIProvider speaks the OpenAI-compatible chat completions API with
// native tool calling. The same client covers any endpoint implementing the
// protocol (vLLM, LM Studio, OpenRouter) via the configured base URL.
type OpenAIProvider struct {
	cfg        config.LLMConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- OpenAI wire shapes --

type openAIToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                  `json:"name"`
		Description string                  `json:"description"`
		Parameters  encodingjson.RawMessage `json:"parameters"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider initializes the client.
func NewOpenAIProvider(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	base := cfg.Endpoint
	if base == "" {
		base = defaultOpenAIBase
	}
	return &OpenAIProvider{
		cfg:        cfg,
		endpoint:   strings.TrimSuffix(base, "/") + "/v1/chat/completions",
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llmclient.openai"),
	}, nil
}

// Name implements schemas.CompletionProvider.
func (p *OpenAIProvider) Name() string { return string(config.ProviderOpenAI) }

// Complete implements schemas.CompletionProvider.
func (p *OpenAIProvider) Complete(ctx context.Context, req schemas.CompletionRequest) (schemas.CompletionResult, error) {
	payload := openAIRequest{
		Model:       p.cfg.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	for _, spec := range req.Tools {
		var tool openAITool
		tool.Type = "function"
		tool.Function.Name = spec.Name
		tool.Function.Description = spec.Description
		tool.Function.Parameters = spec.ParametersJSON()
		payload.Tools = append(payload.Tools, tool)
	}
	if len(payload.Tools) > 0 {
		payload.ToolChoice = "auto"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("marshaling request: %w", err))
	}

	respBody, err := postJSON(ctx, p.httpClient, p.logger, p.endpoint, map[string]string{
		"Authorization": "Bearer " + p.cfg.APIKey,
	}, body)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("decoding response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("response contained no choices"))
	}

	choice := resp.Choices[0]
	p.logger.Info("Completion finished.",
		zap.String("finish_reason", choice.FinishReason),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	result := schemas.CompletionResult{Text: choice.Message.Content}
	if len(choice.Message.ToolCalls) > 0 {
		call := choice.Message.ToolCalls[0]
		// Arguments stay raw: a malformed payload is the executor's problem,
		// not a transport failure.
		result.Invocation = &schemas.ToolInvocation{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: encodingjson.RawMessage(call.Function.Arguments),
		}
	}
	return result, nil
}

// toOpenAIMessages converts the transcript, reconstructing the tool-call /
// tool-result ID linkage the protocol requires. Tool results always follow
// the assistant message that triggered them, so tracking the last call ID is
// enough.
func toOpenAIMessages(messages []schemas.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	lastCallID := ""
	for i, m := range messages {
		msg := openAIMessage{Role: string(m.Role), Content: m.Content}
		switch {
		case m.Role == schemas.RoleAssistant && m.Invocation != nil:
			callID := m.Invocation.ID
			if callID == "" {
				callID = fmt.Sprintf("call_%d", i)
			}
			var call openAIToolCall
			call.ID = callID
			call.Type = "function"
			call.Function.Name = m.Invocation.Name
			call.Function.Arguments = string(m.Invocation.Arguments)
			msg.ToolCalls = []openAIToolCall{call}
			lastCallID = callID
		case m.Role == schemas.RoleTool:
			msg.ToolCallID = lastCallID
		}
		out = append(out, msg)
	}
	return out
}
