package schemas

// -- Browser Schemas --

// NavigationResult reports the outcome of a page navigation. Failures are
// carried in the result (Success false plus Error) rather than as errors, so
// the executor can hand them back to the model as data.
type NavigationResult struct {
	URL     string `json:"url"`
	Status  int64  `json:"status,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PageContent is the text extracted from the current page.
type PageContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Length  int    `json:"length"`
}

// PageInfo is the lightweight page snapshot used for perception.
type PageInfo struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Ready      bool   `json:"ready"`
	ReadyState string `json:"ready_state,omitempty"`
}

// ScreenshotOptions selects what to capture and where to save it. An empty
// Selector captures the page; FullPage captures the full scrollable height
// instead of the viewport.
type ScreenshotOptions struct {
	Filename string `json:"filename"`
	Selector string `json:"selector,omitempty"`
	FullPage bool   `json:"full_page,omitempty"`
}
