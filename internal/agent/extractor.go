package agent

import (
	encodingjson "encoding/json"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// Extractor resolves tool invocations from free-form model output. It is a
// purely syntactic filter: it locates the first JSON object carrying a
// "tool" key, checks the name against the catalog, and leaves argument
// validation entirely to the executor.
type Extractor struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewExtractor builds an extractor bound to a catalog.
func NewExtractor(catalog *Catalog, logger *zap.Logger) *Extractor {
	return &Extractor{
		catalog: catalog,
		logger:  logger.Named("extractor"),
	}
}

// toolCallCandidate is the wire shape the model is instructed to emit. Tool
// is a pointer so an object without the key is distinguishable from one with
// an empty name.
type toolCallCandidate struct {
	Tool      *string                 `json:"tool"`
	Arguments encodingjson.RawMessage `json:"arguments"`
}

// Extract returns the first valid tool invocation found in raw, or nil when
// none resolves. Surrounding prose, markdown fences and nested argument
// objects are all tolerated. The first syntactically valid candidate decides
// the outcome: an unknown tool name there yields nil rather than a scan for
// a later candidate.
func (e *Extractor) Extract(raw string) *schemas.ToolInvocation {
	offset := 0
	for {
		rel := strings.IndexByte(raw[offset:], '{')
		if rel < 0 {
			return nil
		}
		start := offset + rel
		offset = start + 1

		var cand toolCallCandidate
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		if err := dec.Decode(&cand); err != nil || cand.Tool == nil {
			continue
		}

		name := *cand.Tool
		if _, ok := e.catalog.Lookup(name); !ok {
			e.logger.Debug("Model referenced a tool outside the catalog.",
				zap.String("tool", name))
			return nil
		}

		args := encodingjson.RawMessage(`{}`)
		if len(cand.Arguments) > 0 {
			args = cand.Arguments
		}
		return &schemas.ToolInvocation{Name: name, Arguments: args}
	}
}
