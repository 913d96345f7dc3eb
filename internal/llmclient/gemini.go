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

// GeminiProvider speaks the generateContent REST API. Like ollama it is a
// text-only realization: the system instruction carries the tool briefing
// and the loop parses the reply.
type GeminiProvider struct {
	cfg        config.LLMConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Gemini wire shapes --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	TopP            float32 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiProvider initializes the client.
func NewGeminiProvider(cfg config.LLMConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}
	return &GeminiProvider{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llmclient.gemini"),
	}, nil
}

// Name implements schemas.CompletionProvider.
func (p *GeminiProvider) Name() string { return string(config.ProviderGemini) }

// Complete implements schemas.CompletionProvider.
func (p *GeminiProvider) Complete(ctx context.Context, req schemas.CompletionRequest) (schemas.CompletionResult, error) {
	payload := p.buildRequest(req.Messages)

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("marshaling request: %w", err))
	}

	respBody, err := postJSON(ctx, p.httpClient, p.logger, p.endpoint, map[string]string{
		"x-goog-api-key": p.cfg.APIKey,
	}, body)
	if err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("decoding response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return schemas.CompletionResult{}, newProviderError(p.Name(), fmt.Errorf("response contained no candidates"))
	}

	candidate := resp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return schemas.CompletionResult{}, newProviderError(p.Name(),
			fmt.Errorf("response contained empty content (finish reason: %s)", candidate.FinishReason))
	}

	p.logger.Info("Completion finished.",
		zap.String("finish_reason", candidate.FinishReason),
		zap.Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))

	var texts []string
	for _, part := range candidate.Content.Parts {
		texts = append(texts, part.Text)
	}
	return schemas.CompletionResult{Text: strings.Join(texts, "")}, nil
}

func (p *GeminiProvider) buildRequest(messages []schemas.Message) geminiRequest {
	var systems []string
	var contents []geminiContent

	for _, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			systems = append(systems, m.Content)
		case schemas.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		case schemas.RoleTool:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: "Tool result: " + m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	req := geminiRequest{
		Contents:       contents,
		SafetySettings: defaultSafetySettings(),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     p.cfg.Temperature,
			TopP:            p.cfg.TopP,
			TopK:            p.cfg.TopK,
			MaxOutputTokens: p.cfg.MaxTokens,
		},
	}
	if len(systems) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(systems, "\n\n")}},
		}
	}
	return req
}

// defaultSafetySettings keeps the API's blocking to clearly harmful content
// so ordinary page text does not trip a filter mid-run.
func defaultSafetySettings() []geminiSafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]geminiSafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, geminiSafetySetting{Category: c, Threshold: "BLOCK_ONLY_HIGH"})
	}
	return settings
}
