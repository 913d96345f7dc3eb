package schemas

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpecs() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "navigate",
			Description: "Navigate the browser to a URL",
			Params: []ParamSpec{
				{Name: "url", Type: "string", Description: "The URL to load", Required: true},
			},
		},
		{
			Name:        "read_page",
			Description: "Read text content from the current page",
			Params: []ParamSpec{
				{Name: "selector", Type: "string", Description: "Optional CSS selector", Required: false},
			},
		},
	}
}

func TestToolPrompt(t *testing.T) {
	prompt := ToolPrompt(sampleSpecs())

	assert.Contains(t, prompt, "Available Tools:")
	assert.Contains(t, prompt, "navigate: Navigate the browser to a URL")
	assert.Contains(t, prompt, "- url: The URL to load (required)")
	assert.Contains(t, prompt, "- selector: Optional CSS selector (optional)")
	assert.Contains(t, prompt, `{"tool": "tool_name", "arguments":`)

	// Declared order is the rendered order.
	assert.Less(t, strings.Index(prompt, "navigate:"), strings.Index(prompt, "read_page:"))

	// Two renderings are byte-identical.
	assert.Equal(t, prompt, ToolPrompt(sampleSpecs()))
}

func TestParametersJSON(t *testing.T) {
	raw := sampleSpecs()[0].ParametersJSON()

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.Equal(t, "object", schema.Type)
	require.Contains(t, schema.Properties, "url")
	assert.Equal(t, "string", schema.Properties["url"].Type)
	assert.Equal(t, []string{"url"}, schema.Required)
}

func TestParametersJSONNoParams(t *testing.T) {
	spec := ToolSpec{Name: "complete", Description: "Finish the run"}
	raw := spec.ParametersJSON()

	// "required" must be an empty array, not null; some providers reject null.
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(raw))
}

func TestTranscriptJSONCapsResult(t *testing.T) {
	outcome := ActionOutcome{
		ToolName: "read_page",
		Success:  true,
		Result:   strings.Repeat("x", 5000),
	}

	var decoded ActionOutcome
	require.NoError(t, json.Unmarshal([]byte(outcome.TranscriptJSON()), &decoded))
	assert.Len(t, decoded.Result, 1000)
	assert.True(t, decoded.Success)

	// The original outcome is untouched.
	assert.Len(t, outcome.Result, 5000)
}

func TestTranscriptJSONFailure(t *testing.T) {
	outcome := ActionOutcome{ToolName: "navigate", Success: false, Error: "net::ERR_NAME_NOT_RESOLVED"}

	raw := outcome.TranscriptJSON()
	assert.Contains(t, raw, `"success":false`)
	assert.Contains(t, raw, "ERR_NAME_NOT_RESOLVED")
	assert.NotContains(t, raw, `"result"`)
}

func TestRunStateTerminal(t *testing.T) {
	assert.False(t, RunStateRunning.Terminal())
	assert.True(t, RunStateCompleted.Terminal())
	assert.True(t, RunStateMaxIterations.Terminal())
	assert.True(t, RunStateFailed.Terminal())
}

func TestMessageConstructors(t *testing.T) {
	inv := &ToolInvocation{Name: "navigate", Arguments: json.RawMessage(`{"url":"https://example.com"}`)}

	assert.Equal(t, Message{Role: RoleSystem, Content: "s"}, NewSystemMessage("s"))
	assert.Equal(t, Message{Role: RoleUser, Content: "u"}, NewUserMessage("u"))
	assert.Equal(t, Message{Role: RoleTool, Content: "t"}, NewToolMessage("t"))

	msg := NewAssistantMessage("calling", inv)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Same(t, inv, msg.Invocation)
}

func TestToolInvocationRawArguments(t *testing.T) {
	// Malformed argument payloads must survive the round trip untouched so
	// the executor can report them as structured failures.
	inv := ToolInvocation{Name: "navigate", Arguments: json.RawMessage(`{"url": `)}
	assert.False(t, json.Valid(inv.Arguments))
	assert.Equal(t, `{"url": `, string(inv.Arguments))
}
