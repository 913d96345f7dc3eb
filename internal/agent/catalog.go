package agent

import (
	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// Catalog is the fixed set of tools the agent may call. Contents are set at
// construction; lookups and renderings are read-only and deterministic.
type Catalog struct {
	specs []schemas.ToolSpec
	index map[string]schemas.ToolSpec
}

// NewCatalog builds a catalog from the given specs, preserving their order.
func NewCatalog(specs ...schemas.ToolSpec) *Catalog {
	c := &Catalog{
		specs: append([]schemas.ToolSpec(nil), specs...),
		index: make(map[string]schemas.ToolSpec, len(specs)),
	}
	for _, s := range c.specs {
		c.index[s.Name] = s
	}
	return c
}

// DefaultCatalog returns the four built-in browsing tools.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		schemas.ToolSpec{
			Name:        ToolNavigate,
			Description: "Navigate to a specific URL in the browser. Always include the full URL with protocol (https://)",
			Params: []schemas.ParamSpec{
				{
					Name:        "url",
					Type:        "string",
					Description: "The URL to navigate to (must include protocol, e.g., https://)",
					Required:    true,
				},
			},
		},
		schemas.ToolSpec{
			Name:        ToolReadPage,
			Description: "Extract and read the text content from the current page. Returns the page title and main text content. Use this to understand what's on the page.",
			Params: []schemas.ParamSpec{
				{
					Name:        "selector",
					Type:        "string",
					Description: "Optional CSS selector to read specific elements. If not provided, reads the entire page.",
				},
			},
		},
		schemas.ToolSpec{
			Name:        ToolScreenshot,
			Description: "Take a screenshot of the current page or a specific element and save it to a file",
			Params: []schemas.ParamSpec{
				{
					Name:        "filename",
					Type:        "string",
					Description: "Filename to save the screenshot (e.g., 'screenshot.png')",
					Required:    true,
				},
				{
					Name:        "selector",
					Type:        "string",
					Description: "Optional CSS selector to screenshot a specific element. If not provided, screenshots the entire page.",
				},
				{
					Name:        "full_page",
					Type:        "boolean",
					Description: "Whether to capture the full scrollable page (default: False)",
				},
			},
		},
		schemas.ToolSpec{
			Name:        ToolComplete,
			Description: "Mark the task as complete and provide the final answer or summary",
			Params: []schemas.ParamSpec{
				{
					Name:        "answer",
					Type:        "string",
					Description: "The final answer or summary of what was accomplished",
					Required:    true,
				},
			},
		},
	)
}

// Specs returns the catalog contents in declared order.
func (c *Catalog) Specs() []schemas.ToolSpec {
	return append([]schemas.ToolSpec(nil), c.specs...)
}

// Lookup resolves a tool by name.
func (c *Catalog) Lookup(name string) (schemas.ToolSpec, bool) {
	spec, ok := c.index[name]
	return spec, ok
}

// PromptDescription renders the text briefing for providers without native
// tool-calling.
func (c *Catalog) PromptDescription() string {
	return schemas.ToolPrompt(c.specs)
}
