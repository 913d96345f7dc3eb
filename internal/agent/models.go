package agent

import (
	"time"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// Names of the built-in tools.
const (
	ToolNavigate   = "navigate"
	ToolReadPage   = "read_page"
	ToolScreenshot = "screenshot"
	ToolComplete   = "complete"
)

// maxIterationsAdvisory is the result reported when the iteration ceiling
// ends a run before the model declares completion.
const maxIterationsAdvisory = "Maximum iterations reached. Task may not be complete."

// decisionKind tags the outcome of a reasoning round.
type decisionKind int

const (
	decisionTool decisionKind = iota // execute the resolved invocation
	decisionComplete                 // terminal, result carries the answer
	decisionError                    // terminal, provider failed
)

// decision is the resolved outcome of one reasoning round.
type decision struct {
	kind       decisionKind
	result     string // final answer (complete) or failure detail (error)
	reasoning  string // raw model text for the round
	invocation *schemas.ToolInvocation
}

// runState holds everything owned by a single run: the transcript, the
// trace, tool side effects and the lifecycle state. A fresh one is built per
// Run call; nothing here is shared between runs.
type runState struct {
	goal        string
	state       schemas.RunState
	result      string
	iterations  int
	currentURL  string
	transcript  []schemas.Message
	trace       []schemas.TraceEntry
	screenshots []string
}

func newRunState(goal, systemPrompt, userPrompt string) *runState {
	return &runState{
		goal:  goal,
		state: schemas.RunStateRunning,
		transcript: []schemas.Message{
			schemas.NewSystemMessage(systemPrompt),
			schemas.NewUserMessage(userPrompt),
		},
	}
}

// finish moves the run into a terminal state. Once terminal, later
// transitions are ignored.
func (s *runState) finish(state schemas.RunState, result string) {
	if s.state.Terminal() {
		return
	}
	s.state = state
	s.result = result
}

func (s *runState) appendMessage(msg schemas.Message) {
	s.transcript = append(s.transcript, msg)
}

func (s *runState) tracePerception(snap schemas.PerceptionSnapshot) {
	s.trace = append(s.trace, schemas.TraceEntry{
		Timestamp:  time.Now().UTC(),
		Type:       schemas.TracePerception,
		Perception: &snap,
	})
}

func (s *runState) traceReasoning(decision, message, errText string) {
	s.trace = append(s.trace, schemas.TraceEntry{
		Timestamp: time.Now().UTC(),
		Type:      schemas.TraceReasoning,
		Decision:  decision,
		Message:   message,
		Error:     errText,
	})
}

func (s *runState) traceTool(outcome schemas.ActionOutcome) {
	s.trace = append(s.trace, schemas.TraceEntry{
		Timestamp: time.Now().UTC(),
		Type:      schemas.TraceTool,
		Tool:      outcome.ToolName,
		Success:   outcome.Success,
		Detail:    outcome.Result,
		Error:     outcome.Error,
	})
}

func (s *runState) traceComplete(result string) {
	s.trace = append(s.trace, schemas.TraceEntry{
		Timestamp: time.Now().UTC(),
		Type:      schemas.TraceComplete,
		Detail:    result,
	})
}

// report freezes the run state into the outward-facing report.
func (s *runState) report(runID string) *schemas.RunReport {
	return &schemas.RunReport{
		RunID:       runID,
		Goal:        s.goal,
		Success:     s.state == schemas.RunStateCompleted,
		FinalState:  s.state,
		Result:      s.result,
		Iterations:  s.iterations,
		Transcript:  s.transcript,
		Trace:       s.trace,
		Screenshots: s.screenshots,
	}
}
