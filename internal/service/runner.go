package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/agent"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/browser"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/llmclient"
)

// Runner executes one browse request end to end. The HTTP handlers depend on
// this interface so tests can substitute a scripted implementation.
type Runner interface {
	Run(ctx context.Context, req schemas.BrowseRequest) (*schemas.RunReport, error)
}

// agentRunner is the production Runner: a fresh browser session per request,
// a provider built from the configured LLM settings plus the request's
// overrides, and the agent loop tying them together. A weighted semaphore
// caps concurrent browser sessions.
type agentRunner struct {
	cfg      *config.Config
	manager  *browser.Manager
	sessions *semaphore.Weighted
	log      *zap.Logger
}

// NewRunner builds the production Runner on top of a shared browser manager.
func NewRunner(cfg *config.Config, manager *browser.Manager, logger *zap.Logger) Runner {
	return &agentRunner{
		cfg:      cfg,
		manager:  manager,
		sessions: semaphore.NewWeighted(int64(cfg.Server.MaxSessions)),
		log:      logger.Named("runner"),
	}
}

// Run implements Runner. The returned error covers setup failures only; once
// the loop starts, every outcome arrives as a RunReport.
func (r *agentRunner) Run(ctx context.Context, req schemas.BrowseRequest) (*schemas.RunReport, error) {
	if err := r.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a browser session slot: %w", err)
	}
	defer r.sessions.Release(1)

	llmCfg, err := llmclient.ApplyOverrides(r.cfg.Agent.LLM, llmclient.Overrides{
		Provider: req.LLMProvider,
		Model:    req.LLMModel,
		Endpoint: req.LLMEndpoint,
	})
	if err != nil {
		return nil, err
	}
	provider, err := llmclient.NewProvider(llmCfg, r.log)
	if err != nil {
		return nil, err
	}

	session, err := r.manager.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting browser session: %w", err)
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("Browser session close failed.", zap.Error(err))
		}
	}()

	agentCfg := r.cfg.Agent
	agentCfg.LLM = llmCfg
	agentCfg.MaxIterations = req.MaxIterations
	agentCfg.RunTimeout = req.Timeout()

	loop := agent.NewLoop(agentCfg, provider, session, r.log)
	return loop.Run(ctx, req.Goal), nil
}
