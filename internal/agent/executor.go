package agent

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

const (
	// maxContentLength caps page text handed back from read_page. Anything
	// longer is cut and marked so the model knows it saw a prefix.
	maxContentLength = 3000
	truncationMarker = "\n\n... (content truncated)"

	// defaultScreenshotName is used when the model omits the filename.
	defaultScreenshotName = "screenshot.png"
)

// toolHandler executes one tool against the page and returns the success
// result text. State mutations (current URL, screenshot paths) happen here
// and nowhere else.
type toolHandler func(ctx context.Context, args encodingjson.RawMessage, state *runState) (string, error)

// Executor dispatches resolved invocations to their handlers, folding every
// failure, including a panic from a misbehaving controller, into a
// structured ActionOutcome. It never aborts a run.
type Executor struct {
	logger   *zap.Logger
	page     schemas.PageController
	handlers map[string]toolHandler
}

// NewExecutor builds an executor bound to a page controller.
func NewExecutor(page schemas.PageController, logger *zap.Logger) *Executor {
	e := &Executor{
		logger: logger.Named("executor"),
		page:   page,
	}
	e.registerHandlers()
	return e
}

// registerHandlers wires the dispatch table. The complete tool is absent on
// purpose: the loop resolves it before execution ever starts.
func (e *Executor) registerHandlers() {
	e.handlers = map[string]toolHandler{
		ToolNavigate:   e.execNavigate,
		ToolReadPage:   e.execReadPage,
		ToolScreenshot: e.execScreenshot,
	}
}

// Execute runs a single invocation and reports the outcome as data.
func (e *Executor) Execute(ctx context.Context, inv schemas.ToolInvocation, state *runState) (outcome schemas.ActionOutcome) {
	outcome = schemas.ActionOutcome{ToolName: inv.Name}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from panic during tool execution.",
				zap.String("tool", inv.Name),
				zap.Any("panic", r))
			outcome.Success = false
			outcome.Result = ""
			outcome.Error = fmt.Sprintf("tool %s panicked: %v", inv.Name, r)
		}
	}()

	handler, ok := e.handlers[inv.Name]
	if !ok {
		outcome.Error = fmt.Sprintf("Unknown tool: %s", inv.Name)
		return outcome
	}

	result, err := handler(ctx, inv.Arguments, state)
	if err != nil {
		e.logger.Warn("Tool execution failed.",
			zap.String("tool", inv.Name),
			zap.Error(err))
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.Result = result
	return outcome
}

// unmarshalArgs parses raw tool arguments, normalizing the failure message
// the model sees when it emitted malformed JSON.
func unmarshalArgs(raw encodingjson.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %s", strings.TrimSpace(string(raw)))
	}
	return nil
}

type navigateArgs struct {
	URL string `json:"url"`
}

func (e *Executor) execNavigate(ctx context.Context, args encodingjson.RawMessage, state *runState) (string, error) {
	var params navigateArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return "", err
	}
	if strings.TrimSpace(params.URL) == "" {
		return "", errors.New("URL is required")
	}

	url := params.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	res, err := e.page.Navigate(ctx, url)
	if err != nil {
		return "", fmt.Errorf("Navigation failed: %w", err)
	}
	if !res.Success {
		return "", fmt.Errorf("Navigation failed: %s", res.Error)
	}

	finalURL := res.URL
	if finalURL == "" {
		finalURL = url
	}
	state.currentURL = finalURL
	e.logger.Info("Navigation succeeded.",
		zap.String("url", finalURL),
		zap.Int64("status", res.Status))
	return fmt.Sprintf("Successfully navigated to %s", finalURL), nil
}

type readPageArgs struct {
	Selector string `json:"selector"`
}

func (e *Executor) execReadPage(ctx context.Context, args encodingjson.RawMessage, state *runState) (string, error) {
	var params readPageArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return "", err
	}
	if state.currentURL == "" {
		return "", errors.New("No page loaded. Navigate to a URL first.")
	}

	content, err := e.page.GetContent(ctx, params.Selector)
	if err != nil {
		return "", fmt.Errorf("reading page failed: %w", err)
	}
	if len(content.Content) > maxContentLength {
		content.Content = content.Content[:maxContentLength] + truncationMarker
	}

	payload, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("serializing page content: %w", err)
	}
	return string(payload), nil
}

type screenshotArgs struct {
	Filename string `json:"filename"`
	Selector string `json:"selector"`
	FullPage bool   `json:"full_page"`
}

func (e *Executor) execScreenshot(ctx context.Context, args encodingjson.RawMessage, state *runState) (string, error) {
	var params screenshotArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return "", err
	}
	if state.currentURL == "" {
		return "", errors.New("No page loaded. Navigate to a URL first.")
	}
	if params.Filename == "" {
		params.Filename = defaultScreenshotName
	}

	path, err := e.page.Screenshot(ctx, schemas.ScreenshotOptions{
		Filename: params.Filename,
		Selector: params.Selector,
		FullPage: params.FullPage,
	})
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	state.screenshots = append(state.screenshots, path)
	e.logger.Info("Screenshot captured.", zap.String("path", path))
	return fmt.Sprintf("Screenshot saved to %s", path), nil
}
