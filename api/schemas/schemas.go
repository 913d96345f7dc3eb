package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// -- Conversation Schemas --

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the run transcript. Invocation is populated
// only on assistant messages that triggered a tool call, so providers with
// native tool-calling can replay the call/result linkage on later rounds.
type Message struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Invocation *ToolInvocation `json:"invocation,omitempty"`
}

// NewSystemMessage returns a system-role message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage returns a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns an assistant-role message, optionally carrying
// the tool invocation the assistant resolved to.
func NewAssistantMessage(content string, inv *ToolInvocation) Message {
	return Message{Role: RoleAssistant, Content: content, Invocation: inv}
}

// NewToolMessage returns a tool-role message holding a serialized outcome.
func NewToolMessage(content string) Message {
	return Message{Role: RoleTool, Content: content}
}

// -- Tool Schemas --

// ToolInvocation is a resolved request to run one tool. Arguments are kept
// as raw JSON end to end; parsing them is the executor's responsibility, so
// a model emitting a malformed argument payload surfaces as a structured
// execution failure rather than a transport error.
type ToolInvocation struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // JSON schema primitive, e.g. "string", "boolean"
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolSpec describes one tool: its wire name, the description shown to the
// model, and its parameters in declared order.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// ParametersJSON renders the parameter list as a JSON Schema object for
// providers with native tool-calling support.
func (t ToolSpec) ParametersJSON() json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	schema := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(t.Params)),
		Required:   []string{},
	}
	for _, p := range t.Params {
		schema.Properties[p.Name] = property{Type: p.Type, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// ToolPrompt renders the briefing injected into the conversation when a
// provider lacks native tool-calling. The rendering is deterministic: tools
// and parameters appear in declared order.
func ToolPrompt(specs []ToolSpec) string {
	var b strings.Builder
	b.WriteString("Available Tools:\n")
	for _, t := range specs {
		fmt.Fprintf(&b, "%s: %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			requirement := "optional"
			if p.Required {
				requirement = "required"
			}
			fmt.Fprintf(&b, "  - %s: %s (%s)\n", p.Name, p.Description, requirement)
		}
	}
	b.WriteString("\nTo use a tool, respond with a JSON object in this format:\n")
	b.WriteString(`{"tool": "tool_name", "arguments": {"param1": "value1", "param2": "value2"}}`)
	b.WriteString("\n\nIf you don't need to use a tool, just respond normally.")
	return b.String()
}

// -- Provider Schemas --

// CompletionRequest carries the transcript view and tool specs for one
// reasoning round.
type CompletionRequest struct {
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
}

// CompletionResult is a provider's answer. Invocation is set when the
// provider resolved a native tool call; text-only providers leave it nil and
// the loop falls back to syntactic extraction over Text.
type CompletionResult struct {
	Text       string          `json:"text"`
	Invocation *ToolInvocation `json:"invocation,omitempty"`
}

// -- Run Schemas --

// PerceptionSnapshot captures what the agent can observe of the page before
// a reasoning round. The zero value means no page has been loaded yet.
type PerceptionSnapshot struct {
	CurrentURL string `json:"current_url,omitempty"`
	PageTitle  string `json:"page_title,omitempty"`
	PageReady  bool   `json:"page_ready,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ActionOutcome is the structured result of one tool execution. Failures are
// data: they flow back to the model as tool-result messages and never abort
// the run.
type ActionOutcome struct {
	ToolName string `json:"tool_name"`
	Success  bool   `json:"success"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// outcomeResultCap bounds the result text embedded in transcript tool-result
// messages so large page extractions do not balloon the conversation.
const outcomeResultCap = 1000

// TranscriptJSON serializes the outcome for a tool-result message, capping
// the result text.
func (o ActionOutcome) TranscriptJSON() string {
	capped := o
	if len(capped.Result) > outcomeResultCap {
		capped.Result = capped.Result[:outcomeResultCap]
	}
	raw, _ := json.Marshal(capped)
	return string(raw)
}

// RunState is the lifecycle state of an agent run. Every state except
// RunStateRunning is terminal.
type RunState string

const (
	RunStateRunning       RunState = "RUNNING"
	RunStateCompleted     RunState = "COMPLETED"
	RunStateMaxIterations RunState = "MAX_ITERATIONS_REACHED"
	RunStateFailed        RunState = "FAILED"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s != RunStateRunning
}

// TraceEntryType tags the variants of a trace record.
type TraceEntryType string

const (
	TracePerception TraceEntryType = "perception"
	TraceReasoning  TraceEntryType = "reasoning"
	TraceTool       TraceEntryType = "tool"
	TraceComplete   TraceEntryType = "complete"
)

// TraceEntry is one timestamped record in the run trace. Fields beyond
// Timestamp and Type are populated per variant: perception entries carry the
// snapshot, reasoning entries the decision and model text, tool entries the
// executed tool and its outcome, complete entries the final result.
type TraceEntry struct {
	Timestamp  time.Time           `json:"ts"`
	Type       TraceEntryType      `json:"type"`
	Perception *PerceptionSnapshot `json:"perception,omitempty"`
	Decision   string              `json:"decision,omitempty"`
	Message    string              `json:"message,omitempty"`
	Tool       string              `json:"tool,omitempty"`
	Success    bool                `json:"success,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// RunReport is the complete account of one agent run. It is always produced,
// whatever the outcome; callers inspect FinalState rather than errors.
type RunReport struct {
	RunID       string       `json:"run_id"`
	Goal        string       `json:"goal"`
	Success     bool         `json:"success"`
	FinalState  RunState     `json:"final_state"`
	Result      string       `json:"result"`
	Iterations  int          `json:"iterations"`
	Transcript  []Message    `json:"transcript"`
	Trace       []TraceEntry `json:"trace"`
	Screenshots []string     `json:"screenshots"`
}
