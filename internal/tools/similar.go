package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/query"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// SimilarTool handles the analysis_similar MCP tool.
type SimilarTool struct {
	facade *query.Facade
}

// NewSimilarTool creates a SimilarTool.
func NewSimilarTool(facade *query.Facade) *SimilarTool {
	return &SimilarTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_similar.
func (t *SimilarTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_similar",
		mcp.WithDescription(
			"Find projected analyses whose content is closest to the given text. "+
				"Only analyses already processed by the similarity sink are searched.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to compare against"),
		),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 5)")),
	)
}

// Handle processes the analysis_similar tool call.
func (t *SimilarTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	matches, err := t.facade.Similar(ctx, text, intArg(req, "limit", 5))
	if errors.Is(err, vectorindex.ErrUnsupported) {
		return mcp.NewToolResultError("similarity search is not available: the similarity sink is disabled or its backend cannot be queried"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("similarity search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No similar analyses found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Similar analyses (%d):\n\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. `%s` **%s** score=%.3f thread=%s\n", i+1, m.AnalysisID, m.Payload.TaskName, m.Score, m.Payload.ThreadID)
		if m.Payload.Excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", firstLine(m.Payload.Excerpt, 160))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

// ─── GraphTool ───────────────────────────────────────────────────────────────

// GraphTool handles the analysis_graph MCP tool.
type GraphTool struct {
	facade *query.Facade
}

// NewGraphTool creates a GraphTool.
func NewGraphTool(facade *query.Facade) *GraphTool {
	return &GraphTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_graph.
func (t *GraphTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_graph",
		mcp.WithDescription(
			"Show the knowledge-graph fragment projected for an analysis: its nodes and labelled edges.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis id"),
		),
		mcp.WithString("format",
			mcp.Description("'text' (default) or 'json'"),
			mcp.Enum("text", "json"),
		),
	)
}

// Handle processes the analysis_graph tool call.
func (t *GraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	frag, err := t.facade.Graph(ctx, id)
	if errors.Is(err, graphstore.ErrUnsupported) {
		return mcp.NewToolResultError("graph reads are not available: the graph sink is disabled or its backend cannot be read"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph lookup failed: %v", err)), nil
	}
	if len(frag.Nodes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No graph stored for analysis %s.", id)), nil
	}
	if req.GetString("format", "text") == "json" {
		return jsonResult(frag), nil
	}

	names := map[string]string{graph.RootID(id): "analysis " + id}
	for _, n := range frag.Nodes {
		names[n.ID] = fmt.Sprintf("(%s %q)", n.Type, n.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Graph for %s: %d nodes, %d edges\n\n", id, len(frag.Nodes), len(frag.Edges))
	for _, e := range frag.Edges {
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", names[e.From], e.Relationship, names[e.To])
	}
	return mcp.NewToolResultText(b.String()), nil
}
