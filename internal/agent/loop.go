// Package agent implements the perception-reasoning-action loop that drives
// a browser toward a natural-language goal. The loop owns all per-run state;
// the browser and the language model are reached only through the
// PageController and CompletionProvider interfaces.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// uuidNewString is an indirection over uuid.NewString so tests can pin run
// IDs.
var uuidNewString = uuid.NewString

// systemPrompt is the fixed operating instruction seeded as the first
// transcript message. The tool briefing is appended so text-only providers
// know the call convention; schema-aware providers simply ignore the JSON
// instruction and use their native tool channel.
const systemPrompt = `You are an autonomous web browsing agent. You accomplish goals by using the available browser tools, one action at a time.

Work methodically: navigate to a page before trying to read or capture it, read the page to learn what is on it, and call complete with your final answer once the goal is satisfied.`

// Loop is the agent control state machine. One Loop drives one run at a
// time; concurrent Run calls are serialized. Run state is created fresh per
// call, so a Loop may be reused for consecutive runs.
type Loop struct {
	cfg       config.AgentConfig
	logger    *zap.Logger
	provider  schemas.CompletionProvider
	catalog   *Catalog
	extractor *Extractor
	executor  *Executor

	runMu sync.Mutex
}

// NewLoop assembles a loop from its collaborators using the default tool
// catalog.
func NewLoop(cfg config.AgentConfig, provider schemas.CompletionProvider, page schemas.PageController, logger *zap.Logger) *Loop {
	catalog := DefaultCatalog()
	log := logger.Named("agent")
	return &Loop{
		cfg:       cfg,
		logger:    log,
		provider:  provider,
		catalog:   catalog,
		extractor: NewExtractor(catalog, log),
		executor:  NewExecutor(page, log),
	}
}

// Run executes the loop for one goal and always returns a report, whatever
// happened. Tool failures are fed back to the model as data; only provider
// failures during reasoning and budget exhaustion end the run.
func (l *Loop) Run(ctx context.Context, goal string) *schemas.RunReport {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	runID := uuidNewString()
	log := l.logger.With(zap.String("run_id", runID))
	log.Info("Starting agent run.",
		zap.String("goal", goal),
		zap.String("provider", l.provider.Name()),
		zap.Int("max_iterations", l.cfg.MaxIterations))

	if l.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.RunTimeout)
		defer cancel()
	}

	state := newRunState(goal, systemPrompt+"\n\n"+l.catalog.PromptDescription(), userPrompt(goal))

	for !state.state.Terminal() && state.iterations < l.cfg.MaxIterations {
		state.iterations++
		log.Debug("Starting round.", zap.Int("iteration", state.iterations))

		snap := l.perceive(ctx, state)
		state.tracePerception(snap)

		dec := l.reason(ctx, state, snap)
		switch dec.kind {
		case decisionError:
			state.traceReasoning("error", dec.reasoning, dec.result)
			state.finish(schemas.RunStateFailed, dec.result)

		case decisionComplete:
			state.traceReasoning("complete", dec.reasoning, "")
			state.traceComplete(dec.result)
			state.finish(schemas.RunStateCompleted, dec.result)

		case decisionTool:
			state.traceReasoning("tool", dec.reasoning, "")
			state.appendMessage(schemas.NewAssistantMessage(dec.reasoning, dec.invocation))
			l.act(ctx, state, *dec.invocation)
		}
	}

	if !state.state.Terminal() {
		log.Warn("Iteration ceiling reached before completion.",
			zap.Int("iterations", state.iterations))
		state.finish(schemas.RunStateMaxIterations, maxIterationsAdvisory)
	}

	log.Info("Agent run finished.",
		zap.String("final_state", string(state.state)),
		zap.Int("iterations", state.iterations))
	return state.report(runID)
}

// userPrompt phrases the goal as the opening user message.
func userPrompt(goal string) string {
	return fmt.Sprintf("Goal: %s\n\nPlease accomplish this goal by using the available tools. Think step by step and explain your reasoning before each action.", goal)
}

// perceive observes the current page. Before the first successful navigation
// there is nothing to query; afterwards a failing page-info call is recorded
// in the snapshot rather than aborting the round.
func (l *Loop) perceive(ctx context.Context, state *runState) schemas.PerceptionSnapshot {
	if state.currentURL == "" {
		return schemas.PerceptionSnapshot{}
	}

	snap := schemas.PerceptionSnapshot{CurrentURL: state.currentURL}
	info, err := l.executor.page.PageInfo(ctx)
	if err != nil {
		l.logger.Debug("Perception query failed.", zap.Error(err))
		snap.Error = err.Error()
		return snap
	}

	snap.PageTitle = info.Title
	snap.PageReady = info.Ready
	if info.URL != "" {
		snap.CurrentURL = info.URL
	}
	return snap
}

// perceptionMessage renders the snapshot as the ephemeral system message
// appended to the provider's view of the transcript. It is never persisted.
func perceptionMessage(snap schemas.PerceptionSnapshot) string {
	if snap.CurrentURL == "" {
		return "Current state: No page loaded yet. You should navigate to a URL first."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current state: On page '%s' at %s", snap.PageTitle, snap.CurrentURL)
	if !snap.PageReady && snap.Error == "" {
		b.WriteString(" (still loading)")
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, "\nWarning: %s", snap.Error)
	}
	return b.String()
}

// reason runs one completion over the transcript plus the perception message
// and resolves the model's answer into a decision. A provider failure here is
// the one collaborator failure that ends the run: without a model response
// there is nothing to act on.
func (l *Loop) reason(ctx context.Context, state *runState, snap schemas.PerceptionSnapshot) decision {
	view := make([]schemas.Message, 0, len(state.transcript)+1)
	view = append(view, state.transcript...)
	view = append(view, schemas.NewSystemMessage(perceptionMessage(snap)))

	res, err := l.provider.Complete(ctx, schemas.CompletionRequest{
		Messages: view,
		Tools:    l.catalog.Specs(),
	})
	if err != nil {
		l.logger.Error("Completion provider failed during reasoning.", zap.Error(err))
		return decision{kind: decisionError, result: failureText(ctx, err, l.cfg.RunTimeout)}
	}

	inv := res.Invocation
	if inv == nil {
		inv = l.extractor.Extract(res.Text)
	}

	if inv == nil {
		// No directive at all. The model answered in prose, so the prose is
		// the answer (see DESIGN.md on this deliberate ambiguity).
		l.logger.Info("Response carried no tool call; treating it as the final answer.")
		return decision{kind: decisionComplete, result: res.Text, reasoning: res.Text}
	}

	if inv.Name == ToolComplete {
		return decision{kind: decisionComplete, result: completionAnswer(*inv, res.Text), reasoning: res.Text}
	}

	return decision{kind: decisionTool, reasoning: res.Text, invocation: inv}
}

// act executes a resolved tool and folds the outcome back into the
// transcript as a tool-result message.
func (l *Loop) act(ctx context.Context, state *runState, inv schemas.ToolInvocation) {
	outcome := l.executor.Execute(ctx, inv, state)
	state.appendMessage(schemas.NewToolMessage(outcome.TranscriptJSON()))
	state.traceTool(outcome)
}

// completionAnswer pulls the answer argument off a complete invocation,
// falling back to the raw response text when it is absent or unparsable.
func completionAnswer(inv schemas.ToolInvocation, fallback string) string {
	var args struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(inv.Arguments, &args); err == nil && args.Answer != "" {
		return args.Answer
	}
	return fallback
}

// failureText distinguishes a fired run timeout from other provider
// failures so callers can tell budget exhaustion apart from transport
// errors.
func failureText(ctx context.Context, err error, timeout time.Duration) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("run timed out after %s", timeout)
	}
	if ctx.Err() != nil {
		return fmt.Sprintf("run canceled: %v", ctx.Err())
	}
	return err.Error()
}
