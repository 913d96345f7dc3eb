package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// setupTestLogger returns a logger backed by an observer so tests can assert
// on emitted entries when they need to.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// testAgentConfig bounds runs tightly so a misbehaving loop cannot hang a
// test.
func testAgentConfig(maxIterations int) config.AgentConfig {
	return config.AgentConfig{
		MaxIterations: maxIterations,
		RunTimeout:    30 * time.Second,
	}
}

// fakePage is a scriptable PageController. Unset hooks fall back to benign
// defaults.
type fakePage struct {
	navigateFn   func(ctx context.Context, url string) (schemas.NavigationResult, error)
	getContentFn func(ctx context.Context, selector string) (schemas.PageContent, error)
	screenshotFn func(ctx context.Context, opts schemas.ScreenshotOptions) (string, error)
	pageInfoFn   func(ctx context.Context) (schemas.PageInfo, error)

	navigations int
	reads       int
	screenshots int
}

func (f *fakePage) Navigate(ctx context.Context, url string) (schemas.NavigationResult, error) {
	f.navigations++
	if f.navigateFn != nil {
		return f.navigateFn(ctx, url)
	}
	return schemas.NavigationResult{URL: url, Status: 200, Success: true}, nil
}

func (f *fakePage) GetContent(ctx context.Context, selector string) (schemas.PageContent, error) {
	f.reads++
	if f.getContentFn != nil {
		return f.getContentFn(ctx, selector)
	}
	return schemas.PageContent{Title: "Example Domain", Content: "Example body text", URL: "https://example.com", Length: 17}, nil
}

func (f *fakePage) Screenshot(ctx context.Context, opts schemas.ScreenshotOptions) (string, error) {
	f.screenshots++
	if f.screenshotFn != nil {
		return f.screenshotFn(ctx, opts)
	}
	return "screenshots/" + opts.Filename, nil
}

func (f *fakePage) PageInfo(ctx context.Context) (schemas.PageInfo, error) {
	if f.pageInfoFn != nil {
		return f.pageInfoFn(ctx)
	}
	return schemas.PageInfo{Title: "Example Domain", URL: "https://example.com", Ready: true, ReadyState: "complete"}, nil
}

func (f *fakePage) Close(ctx context.Context) error { return nil }

// scriptedProvider replays a fixed sequence of completion results. Once the
// script is exhausted it keeps returning the last step, so ceiling tests can
// run an arbitrary number of rounds.
type scriptedProvider struct {
	steps []scriptedStep
	calls int

	// requests records each request so tests can inspect the transcript view
	// the loop presented.
	requests []schemas.CompletionRequest
}

type scriptedStep struct {
	result schemas.CompletionResult
	err    error
}

func textStep(text string) scriptedStep {
	return scriptedStep{result: schemas.CompletionResult{Text: text}}
}

func toolStep(text, tool, arguments string) scriptedStep {
	return scriptedStep{result: schemas.CompletionResult{
		Text:       text,
		Invocation: &schemas.ToolInvocation{Name: tool, Arguments: []byte(arguments)},
	}}
}

func errorStep(msg string) scriptedStep {
	return scriptedStep{err: errors.New(msg)}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req schemas.CompletionRequest) (schemas.CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return schemas.CompletionResult{}, fmt.Errorf("completion aborted: %w", err)
	}
	p.requests = append(p.requests, req)
	idx := p.calls
	p.calls++
	if idx >= len(p.steps) {
		idx = len(p.steps) - 1
	}
	step := p.steps[idx]
	return step.result, step.err
}
