package schemas

import (
	"context"
)

// -- Agent Collaborator Interfaces --

// PageController abstracts the browser for the agent loop. Implementations
// drive a single page; navigation failures come back as structured results
// so the loop can feed them to the model instead of aborting.
type PageController interface {
	// Navigate loads the given URL and waits for the page to settle. The
	// result reports the final URL (after redirects), the HTTP status and,
	// on failure, the reason.
	Navigate(ctx context.Context, url string) (NavigationResult, error)
	// GetContent extracts text content from the current page. An empty
	// selector reads the whole page with script and style text stripped; a
	// CSS selector scopes extraction to the matched elements.
	GetContent(ctx context.Context, selector string) (PageContent, error)
	// Screenshot captures the page or an element and writes a PNG, returning
	// the saved path.
	Screenshot(ctx context.Context, opts ScreenshotOptions) (string, error)
	// PageInfo reports title, URL and readiness of the current page.
	PageInfo(ctx context.Context) (PageInfo, error)
	// Close releases the underlying page and its browser context.
	Close(ctx context.Context) error
}

// CompletionProvider abstracts the language model behind the reasoning step.
// Providers with native tool-calling populate CompletionResult.Invocation;
// text-only providers return prose for the loop to parse.
type CompletionProvider interface {
	// Name identifies the provider for logs and reports.
	Name() string
	// Complete runs one completion over the given transcript view.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// -- Service Interfaces --

// TaskStore persists browse tasks for the HTTP service. Implementations must
// be safe for concurrent use.
type TaskStore interface {
	// Create inserts a new task.
	Create(ctx context.Context, task Task) error
	// Get returns the task with the given ID, or ErrTaskNotFound.
	Get(ctx context.Context, id string) (Task, error)
	// Update replaces the stored task with the same ID.
	Update(ctx context.Context, task Task) error
	// Delete removes the task with the given ID, or ErrTaskNotFound.
	Delete(ctx context.Context, id string) error
	// List returns tasks newest first, filtered and paged.
	List(ctx context.Context, filter TaskFilter) (TaskList, error)
	// Close releases the store's resources.
	Close(ctx context.Context) error
}
