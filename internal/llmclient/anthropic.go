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

const (
	defaultAnthropicBase   = "https://api.anthropic.com"
	anthropicVersion       = "2023-06-01"
	anthropicDefaultTokens = 2000
	emptyArgumentsFallback = "{}"
)

// AnthropicProvider speaks the Claude messages API with native tool use.
type AnthropicProvider struct {
	cfg        config.LLMConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Anthropic wire shapes --

// anthropicBlock is one content block. Exactly one of the variants is
// populated, selected by Type.
type anthropicBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string                  `json:"id,omitempty"`
	Name  string                  `json:"name,omitempty"`
	Input encodingjson.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	InputSchema encodingjson.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider initializes the client.
func NewAnthropicProvider(cfg config.LLMConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	base := cfg.Endpoint
	if base == "" {
		base = defaultAnthropicBase
	}
	return &AnthropicProvider{
		cfg:        cfg,
		endpoint:   strings.TrimSuffix(base, "/") + "/v1/messages",
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llmclient.anthropic"),
	}, nil
}

// Name implements schemas.CompletionProvider.
func (p *AnthropicProvider) Name() string { return string(config.ProviderAnthropic) }

// Complete implements schemas.CompletionProvider.
func (p *AnthropicProvider) Complete(ctx context.Context, req schemas.CompletionRequest) (schemas.CompletionResult, error) {
	maxTokens := p.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultTokens
	}

	system, messages := toAnthropicMessages(req.Messages)
	payload := anthropicRequest{
		Model:       p.cfg.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: p.cfg.Temperature,
	}
	for _, spec := range req.Tools {
		payload.Tools = append(payload.Tools, anthropicTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.ParametersJSON(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("marshaling request: %w", err))
	}

	respBody, err := postJSON(ctx, p.httpClient, p.logger, p.endpoint, map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("decoding response: %w", err))
	}

	p.logger.Info("Completion finished.",
		zap.String("stop_reason", resp.StopReason),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))

	var result schemas.CompletionResult
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			if result.Invocation == nil {
				result.Invocation = &schemas.ToolInvocation{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: block.Input,
				}
			}
		}
	}
	result.Text = strings.Join(texts, "\n")
	return result, nil
}

// toAnthropicMessages splits the transcript into the system field and the
// alternating user/assistant message list the API expects. System messages
// are concatenated; tool results become tool_result blocks on user messages.
func toAnthropicMessages(messages []schemas.Message) (string, []anthropicMessage) {
	var systems []string
	out := make([]anthropicMessage, 0, len(messages))
	lastCallID := ""

	for i, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			systems = append(systems, m.Content)

		case schemas.RoleUser:
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: m.Content}},
			})

		case schemas.RoleAssistant:
			blocks := []anthropicBlock{}
			if m.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			if m.Invocation != nil {
				callID := m.Invocation.ID
				if callID == "" {
					callID = fmt.Sprintf("toolu_%d", i)
				}
				input := m.Invocation.Arguments
				if !json.Valid(input) {
					// Replaying a malformed argument payload would corrupt
					// the request body; the executor already reported it.
					input = encodingjson.RawMessage(emptyArgumentsFallback)
				}
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    callID,
					Name:  m.Invocation.Name,
					Input: input,
				})
				lastCallID = callID
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: ""})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})

		case schemas.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicBlock{{
					Type:      "tool_result",
					ToolUseID: lastCallID,
					Content:   m.Content,
				}},
			})
		}
	}
	return strings.Join(systems, "\n\n"), out
}
