package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

func newTestLoop(t *testing.T, cfg config.AgentConfig, provider schemas.CompletionProvider, page schemas.PageController) *Loop {
	t.Helper()
	logger, _ := setupTestLogger(t)
	return NewLoop(cfg, provider, page, logger)
}

func TestRunStopsAtIterationCeiling(t *testing.T) {
	// A provider that always navigates and never completes must be stopped
	// by the ceiling, in exactly max_iterations rounds.
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Navigating.", ToolNavigate, `{"url": "https://example.com"}`),
	}}
	page := &fakePage{}
	loop := newTestLoop(t, testAgentConfig(3), provider, page)

	report := loop.Run(context.Background(), "browse forever")

	assert.Equal(t, schemas.RunStateMaxIterations, report.FinalState)
	assert.False(t, report.Success)
	assert.Equal(t, 3, report.Iterations)
	assert.Equal(t, maxIterationsAdvisory, report.Result)
	assert.Equal(t, 3, page.navigations)
}

func TestRunCompleteAnswerPropagates(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Opening the page.", ToolNavigate, `{"url": "https://example.com"}`),
		toolStep("Done.", ToolComplete, `{"answer": "X"}`),
	}}
	loop := newTestLoop(t, testAgentConfig(10), provider, &fakePage{})

	report := loop.Run(context.Background(), "find X")

	assert.True(t, report.Success)
	assert.Equal(t, schemas.RunStateCompleted, report.FinalState)
	assert.Equal(t, "X", report.Result)
	assert.Equal(t, 2, report.Iterations)
}

func TestRunCompleteFallsBackToText(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("All wrapped up here.", ToolComplete, `{}`),
	}}
	loop := newTestLoop(t, testAgentConfig(5), provider, &fakePage{})

	report := loop.Run(context.Background(), "quick check of something")

	assert.True(t, report.Success)
	assert.Equal(t, "All wrapped up here.", report.Result)
}

func TestRunScriptedScenario(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Opening example.com.", ToolNavigate, `{"url": "https://example.com"}`),
		toolStep("Reading the page.", ToolReadPage, `{}`),
		toolStep("Reporting.", ToolComplete, `{"answer": "The title is Example Domain"}`),
	}}
	page := &fakePage{}
	loop := newTestLoop(t, testAgentConfig(15), provider, page)

	report := loop.Run(context.Background(), "go to example.com and report the title")

	assert.True(t, report.Success)
	assert.Equal(t, schemas.RunStateCompleted, report.FinalState)
	assert.Equal(t, "The title is Example Domain", report.Result)
	assert.Equal(t, 3, report.Iterations)

	var toolEntries, completeEntries int
	for _, entry := range report.Trace {
		switch entry.Type {
		case schemas.TraceTool:
			toolEntries++
		case schemas.TraceComplete:
			completeEntries++
		}
	}
	assert.Equal(t, 2, toolEntries, "navigate and read_page each leave a tool entry")
	assert.Equal(t, 1, completeEntries)

	// Transcript: system, user, then assistant/tool pairs for two actions.
	require.Len(t, report.Transcript, 6)
	assert.Equal(t, schemas.RoleSystem, report.Transcript[0].Role)
	assert.Equal(t, schemas.RoleUser, report.Transcript[1].Role)
	assert.Equal(t, schemas.RoleAssistant, report.Transcript[2].Role)
	require.NotNil(t, report.Transcript[2].Invocation)
	assert.Equal(t, ToolNavigate, report.Transcript[2].Invocation.Name)
	assert.Equal(t, schemas.RoleTool, report.Transcript[3].Role)
}

func TestRunProviderFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		errorStep("connection refused"),
	}}
	loop := newTestLoop(t, testAgentConfig(10), provider, &fakePage{})

	report := loop.Run(context.Background(), "anything at all here")

	assert.False(t, report.Success)
	assert.Equal(t, schemas.RunStateFailed, report.FinalState)
	assert.Equal(t, 1, report.Iterations)
	assert.Contains(t, report.Result, "connection refused")

	var sawReasoningError bool
	for _, entry := range report.Trace {
		if entry.Type == schemas.TraceTool {
			t.Fatalf("no tool entries expected, got %+v", entry)
		}
		if entry.Type == schemas.TraceReasoning && entry.Error != "" {
			sawReasoningError = true
		}
	}
	assert.True(t, sawReasoningError)
}

func TestRunInvalidArgumentsContinues(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Navigating.", ToolNavigate, `{"url": `),
		toolStep("Retrying properly.", ToolNavigate, `{"url": "https://example.com"}`),
		toolStep("Done.", ToolComplete, `{"answer": "recovered"}`),
	}}
	loop := newTestLoop(t, testAgentConfig(10), provider, &fakePage{})

	report := loop.Run(context.Background(), "survive a malformed call")

	assert.True(t, report.Success)
	assert.Equal(t, "recovered", report.Result)
	assert.Equal(t, 3, report.Iterations)

	// Round 1 failure reached the transcript as a tool-result failure.
	require.GreaterOrEqual(t, len(report.Transcript), 4)
	assert.Contains(t, report.Transcript[3].Content, "invalid arguments")
}

func TestRunImplicitCompletion(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		textStep("The page shows a plain example domain notice."),
	}}
	loop := newTestLoop(t, testAgentConfig(5), provider, &fakePage{})

	report := loop.Run(context.Background(), "describe what you can see")

	assert.True(t, report.Success)
	assert.Equal(t, schemas.RunStateCompleted, report.FinalState)
	assert.Equal(t, "The page shows a plain example domain notice.", report.Result)
	assert.Equal(t, 1, report.Iterations)
}

func TestRunExtractsToolFromText(t *testing.T) {
	// A text-only provider returns prose with an embedded call; the loop's
	// extractor must resolve it.
	provider := &scriptedProvider{steps: []scriptedStep{
		textStep(`I'll open the page first. {"tool": "navigate", "arguments": {"url": "https://example.com"}}`),
		textStep(`{"tool": "complete", "arguments": {"answer": "opened"}}`),
	}}
	page := &fakePage{}
	loop := newTestLoop(t, testAgentConfig(5), provider, page)

	report := loop.Run(context.Background(), "open the example page")

	assert.True(t, report.Success)
	assert.Equal(t, "opened", report.Result)
	assert.Equal(t, 1, page.navigations)
}

func TestRunTimeout(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Navigating.", ToolNavigate, `{"url": "https://example.com"}`),
	}}
	page := &fakePage{
		navigateFn: func(ctx context.Context, url string) (schemas.NavigationResult, error) {
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			return schemas.NavigationResult{URL: url, Success: true}, nil
		},
	}
	cfg := testAgentConfig(10)
	cfg.RunTimeout = 50 * time.Millisecond
	loop := newTestLoop(t, cfg, provider, page)

	report := loop.Run(context.Background(), "run straight into the timeout")

	assert.False(t, report.Success)
	assert.Equal(t, schemas.RunStateFailed, report.FinalState)
	assert.Contains(t, report.Result, "timed out")
}

func TestRunPerceptionMessageIsEphemeral(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Opening.", ToolNavigate, `{"url": "https://example.com"}`),
		toolStep("Done.", ToolComplete, `{"answer": "ok"}`),
	}}
	loop := newTestLoop(t, testAgentConfig(5), provider, &fakePage{})

	report := loop.Run(context.Background(), "check perception handling")

	for _, msg := range report.Transcript {
		assert.NotContains(t, msg.Content, "Current state:",
			"the perception message must never be persisted")
	}

	// But every provider call saw exactly one perception message, last.
	require.Len(t, provider.requests, 2)
	for _, req := range provider.requests {
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, schemas.RoleSystem, last.Role)
		assert.Contains(t, last.Content, "Current state:")
	}

	// Round 1 perceives no page; round 2 sees the navigated URL.
	assert.Contains(t, provider.requests[0].Messages[len(provider.requests[0].Messages)-1].Content, "No page loaded yet")
	assert.Contains(t, provider.requests[1].Messages[len(provider.requests[1].Messages)-1].Content, "https://example.com")
}

func TestRunPerceptionErrorIsNonFatal(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Opening.", ToolNavigate, `{"url": "https://example.com"}`),
		toolStep("Done.", ToolComplete, `{"answer": "ok"}`),
	}}
	page := &fakePage{
		pageInfoFn: func(ctx context.Context) (schemas.PageInfo, error) {
			return schemas.PageInfo{}, context.DeadlineExceeded
		},
	}
	loop := newTestLoop(t, testAgentConfig(5), provider, page)

	report := loop.Run(context.Background(), "tolerate perception failure")

	assert.True(t, report.Success)

	var snapshots int
	for _, entry := range report.Trace {
		if entry.Type == schemas.TracePerception {
			snapshots++
			if entry.Perception.CurrentURL != "" {
				assert.NotEmpty(t, entry.Perception.Error)
			}
		}
	}
	assert.Equal(t, 2, snapshots, "one perception entry per round")
}

func TestRunFreshStatePerRun(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptedStep{
		toolStep("Done immediately.", ToolComplete, `{"answer": "first"}`),
	}}
	loop := newTestLoop(t, testAgentConfig(5), provider, &fakePage{})

	first := loop.Run(context.Background(), "run number one")
	second := loop.Run(context.Background(), "run number two")

	assert.Equal(t, 1, first.Iterations)
	assert.Equal(t, 1, second.Iterations, "state must reset between runs")
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, "run number two", second.Goal)
}
