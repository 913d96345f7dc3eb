package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// pageTextScript extracts the page's visible text. The body is cloned so
// stripping script, style and noscript nodes never mutates the live page.
const pageTextScript = `(() => {
	const clone = document.body ? document.body.cloneNode(true) : null;
	if (!clone) { return ""; }
	clone.querySelectorAll("script, style, noscript").forEach(el => el.remove());
	return (clone.innerText || clone.textContent || "").trim();
})()`

// selectorTextScriptf scopes extraction to a CSS selector; matched elements'
// text joined with blank lines. The selector is injected as a JSON string
// literal.
const selectorTextScriptf = `(() => {
	const nodes = document.querySelectorAll(%s);
	return Array.from(nodes).map(el => (el.innerText || el.textContent || "").trim()).filter(t => t.length > 0).join("\n\n");
})()`

// Session is one isolated browser context implementing
// schemas.PageController.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ schemas.PageController = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.With(zap.String("session_id", id)),
	}
	s.dismissDialogs()
	return s
}

// dismissDialogs auto-declines JavaScript dialogs. An unattended alert or
// confirm would otherwise block every later CDP command on the page.
func (s *Session) dismissDialogs() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if dialog, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			s.logger.Debug("Dismissing JavaScript dialog.",
				zap.String("type", string(dialog.Type)),
				zap.String("message", dialog.Message))
			go func() {
				if err := chromedp.Run(s.ctx, page.HandleJavaScriptDialog(false)); err != nil {
					s.logger.Debug("Dialog dismissal failed.", zap.Error(err))
				}
			}()
		}
	})
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// opContext combines the session context with the caller's and applies the
// given timeout; the earliest cancellation wins.
func (s *Session) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	combined, combinedCancel := CombineContext(s.ctx, ctx)
	if timeout <= 0 {
		return combined, combinedCancel
	}
	timed, timedCancel := context.WithTimeout(combined, timeout)
	return timed, func() {
		timedCancel()
		combinedCancel()
	}
}

// Navigate loads url and waits for the page to settle. Failures come back as
// a structured result so the agent can reason about them; the error return
// is reserved for a session that is no longer usable.
func (s *Session) Navigate(ctx context.Context, url string) (schemas.NavigationResult, error) {
	s.logger.Debug("Navigating.", zap.String("url", url))

	navCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		result := schemas.NavigationResult{URL: url, Success: false}
		switch {
		case errors.Is(navCtx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Sprintf("navigation timed out after %s", s.cfg.NavigationTimeout)
		case ctx.Err() != nil:
			result.Error = fmt.Sprintf("navigation canceled: %v", ctx.Err())
		default:
			result.Error = err.Error()
		}
		s.logger.Warn("Navigation failed.", zap.String("url", url), zap.String("error", result.Error))
		return result, nil
	}

	result := schemas.NavigationResult{URL: url, Success: true}
	// RunResponse returns a nil response for same-document and about:blank
	// navigations.
	if resp != nil {
		result.Status = resp.Status
	}

	s.stabilize(ctx)

	// Report the post-redirect URL.
	var finalURL string
	locCtx, locCancel := s.opContext(ctx, s.cfg.OperationTimeout)
	defer locCancel()
	if err := chromedp.Run(locCtx, chromedp.Location(&finalURL)); err == nil && finalURL != "" {
		result.URL = finalURL
	}

	s.logger.Info("Navigation complete.",
		zap.String("url", result.URL),
		zap.Int64("status", result.Status))
	return result, nil
}

// stabilize waits for the DOM to be ready plus a short quiet period for
// late-loading content. Best effort: a slow page is reported by later reads,
// not here.
func (s *Session) stabilize(ctx context.Context) {
	waitCtx, cancel := s.opContext(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
		return
	}
	if s.cfg.PostLoadWait > 0 {
		select {
		case <-time.After(s.cfg.PostLoadWait):
		case <-waitCtx.Done():
		}
	}
}

// GetContent extracts the page title and visible text, optionally scoped to
// a CSS selector.
func (s *Session) GetContent(ctx context.Context, selector string) (schemas.PageContent, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.OperationTimeout)
	defer cancel()

	script := pageTextScript
	if selector != "" {
		quoted, err := json.Marshal(selector)
		if err != nil {
			return schemas.PageContent{}, fmt.Errorf("encoding selector: %w", err)
		}
		script = fmt.Sprintf(selectorTextScriptf, string(quoted))
	}

	var title, location, content string
	err := chromedp.Run(opCtx,
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.Evaluate(script, &content),
	)
	if err != nil {
		return schemas.PageContent{}, fmt.Errorf("extracting page content: %w", err)
	}

	return schemas.PageContent{
		Title:   title,
		Content: content,
		URL:     location,
		Length:  len(content),
	}, nil
}

// Screenshot captures the viewport, the full scrollable page, or a single
// element, and writes the PNG under the configured screenshot directory.
func (s *Session) Screenshot(ctx context.Context, opts schemas.ScreenshotOptions) (string, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.OperationTimeout)
	defer cancel()

	var buf []byte
	var action chromedp.Action
	switch {
	case opts.Selector != "":
		action = chromedp.Screenshot(opts.Selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)
	case opts.FullPage:
		action = chromedp.FullScreenshot(&buf, 90)
	default:
		action = chromedp.CaptureScreenshot(&buf)
	}

	if err := chromedp.Run(opCtx, action); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	path := filepath.Join(s.cfg.ScreenshotDir, ensurePNGSuffix(opts.Filename))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}

	s.logger.Info("Screenshot saved.", zap.String("path", path), zap.Int("bytes", len(buf)))
	return path, nil
}

// ensurePNGSuffix normalizes a screenshot filename to a .png extension.
func ensurePNGSuffix(filename string) string {
	if filename == "" {
		return "screenshot.png"
	}
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return filename
	}
	return filename + ".png"
}

// PageInfo reports the current page's title, URL and readiness.
func (s *Session) PageInfo(ctx context.Context) (schemas.PageInfo, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.OperationTimeout)
	defer cancel()

	var title, location, readyState string
	err := chromedp.Run(opCtx,
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.Evaluate("document.readyState", &readyState),
	)
	if err != nil {
		return schemas.PageInfo{}, fmt.Errorf("querying page info: %w", err)
	}

	return schemas.PageInfo{
		Title:      title,
		URL:        location,
		Ready:      readyState == "complete",
		ReadyState: readyState,
	}, nil
}

// Close tears down the browser context. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Session teardown reported an error.", zap.Error(err))
		return fmt.Errorf("closing browser session: %w", err)
	}
	s.logger.Debug("Session closed.")
	return nil
}
