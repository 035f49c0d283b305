package core

import (
	"context"
	"log"

	"github.com/pooriaast/sleuth/internal/agent/telemetry"
)

// Tool names exposed by the gateway.
const (
	ToolSearchDocs = "search_docs"
	ToolWebSearch  = "web_search"
)

// Searcher is one retrieval backend behind the gateway. Backends may fail;
// the gateway is what turns failures into in-band records.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Evidence, error)
}

// Gateway is the uniform tool capability the act step calls. It never
// returns an error to the loop: unknown tools, backend failures and
// filtered-to-empty results all come back as single-record slices.
type Gateway struct {
	Docs         Searcher
	Web          Searcher // nil unless online mode
	MinRelevance float64
	MaxResults   int
	Logger       *log.Logger
	Tele         *telemetry.Telemetry
}

// NewGateway builds a gateway with the configured relevance floor and
// result cap. web may be nil (offline mode).
func NewGateway(docs, web Searcher, minRelevance float64, maxResults int, tele *telemetry.Telemetry) *Gateway {
	return &Gateway{
		Docs:         docs,
		Web:          web,
		MinRelevance: minRelevance,
		MaxResults:   maxResults,
		Logger:       log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags),
		Tele:         tele,
	}
}

// Definitions lists the tools available to the model: the documentation
// index always, web search only when an online backend is wired.
func (g *Gateway) Definitions() []ToolDefinition {
	defs := []ToolDefinition{{
		Name: ToolSearchDocs,
		Description: "Search the local documentation index. Best for core concepts, " +
			"API references and foundational knowledge.",
		Parameters: queryParameters("The search query"),
	}}
	if g.Web != nil {
		defs = append(defs, ToolDefinition{
			Name: ToolWebSearch,
			Description: "Search the web. Best for latest updates, real-world examples, " +
				"tutorials and troubleshooting. Combine with search_docs for comprehensive answers.",
			Parameters: queryParameters("The search query"),
		})
	}
	return defs
}

// Search runs one named tool. The result is never empty: failures produce
// an error record, an empty result set produces a note record.
func (g *Gateway) Search(ctx context.Context, tool, query string) []Evidence {
	g.Tele.ToolCall(tool)

	var backend Searcher
	switch tool {
	case ToolSearchDocs:
		backend = g.Docs
	case ToolWebSearch:
		if g.Web == nil {
			g.Tele.ToolError(tool)
			return ErrorEvidence("web search is not available in offline mode")
		}
		backend = g.Web
	default:
		g.Tele.ToolError(tool)
		return ErrorEvidence("unknown tool: %s", tool)
	}

	results, err := backend.Search(ctx, query, g.MaxResults)
	if err != nil {
		g.Logger.Printf("%s failed: %v", tool, err)
		g.Tele.ToolError(tool)
		return ErrorEvidence("%s failed: %v", tool, err)
	}

	kept := results[:0:0]
	filtered := 0
	for _, ev := range results {
		if ev.RelevanceScore < g.MinRelevance {
			filtered++
			continue
		}
		kept = append(kept, ev)
		if len(kept) >= g.MaxResults {
			break
		}
	}
	if filtered > 0 {
		g.Logger.Printf("%s: filtered %d low-relevance results (< %.2f)", tool, filtered, g.MinRelevance)
	}
	if len(kept) == 0 {
		return []Evidence{{Note: "No relevant results found. Try rephrasing your query."}}
	}
	return kept
}

func queryParameters(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": desc},
		},
		"required": []string{"query"},
	}
}
