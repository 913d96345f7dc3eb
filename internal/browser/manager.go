// Package browser implements the chromedp-backed PageController. A Manager
// owns one Chromium process allocator; each Session is an isolated browser
// context (tab) minted from it.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// Manager owns the Chromium exec allocator shared by all sessions.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	shutdown bool
}

// NewManager starts the allocator. The browser process itself launches
// lazily with the first session.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execAllocatorOptions(cfg)...)
	return &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// execAllocatorOptions translates the browser config into chromedp allocator
// options.
func execAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required for stability in containers and headless environments.
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, arg := range cfg.Args {
		key, value, hasValue := splitBrowserArg(arg)
		if key == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// splitBrowserArg normalizes one config-supplied Chromium argument into a
// flag name and optional value, tolerating a missing "--" prefix.
func splitBrowserArg(arg string) (key, value string, hasValue bool) {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimPrefix(arg, "--")
	if arg == "" {
		return "", "", false
	}
	if k, v, ok := strings.Cut(arg, "="); ok {
		return k, v, true
	}
	return arg, "", false
}

// NewSession mints an isolated browser context. Sessions are independent:
// closing one never touches another, and concurrent agent runs each get
// their own.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.mu.Unlock()

	sessionCtx, sessionCancel := chromedp.NewContext(m.allocCtx)

	// Connect the target now so a broken Chromium install fails here rather
	// than on the first navigation.
	if err := chromedp.Run(sessionCtx); err != nil {
		sessionCancel()
		return nil, fmt.Errorf("starting browser session: %w", err)
	}

	s := newSession(sessionCtx, sessionCancel, m.cfg, m.logger)
	m.logger.Info("Browser session started.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown releases the allocator and with it every remaining session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}
	m.shutdown = true
	m.allocCancel()
	m.logger.Info("Browser manager shut down.")
}
