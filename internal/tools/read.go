package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/query"
)

// GetTool handles the analysis_get MCP tool.
type GetTool struct {
	facade *query.Facade
}

// NewGetTool creates a GetTool.
func NewGetTool(facade *query.Facade) *GetTool {
	return &GetTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_get",
		mcp.WithDescription("Get one captured analysis by id, with its full input, output and raw response."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis id"),
		),
	)
}

// Handle processes the analysis_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, found, err := t.facade.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %s not found", id)), nil
	}
	return jsonResult(a), nil
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

// SearchTool handles the analysis_search MCP tool.
type SearchTool struct {
	facade *query.Facade
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(facade *query.Facade) *SearchTool {
	return &SearchTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_search",
		mcp.WithDescription(
			"Search captured analyses. Every filter given must match; results are most recent first.",
		),
		mcp.WithString("thread_id", mcp.Description("Exact thread id")),
		mcp.WithString("session_id", mcp.Description("Exact session id")),
		mcp.WithString("process_instance_id", mcp.Description("Exact process instance id")),
		mcp.WithString("task_name", mcp.Description("Substring of the task name")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("tag_mode",
			mcp.Description("How tags combine: 'any' (default) or 'all'"),
			mcp.Enum("any", "all"),
		),
		mcp.WithString("status",
			mcp.Description("Analysis status"),
			mcp.Enum("CREATED", "PROCESSING", "COMPLETED", "FAILED", "ARCHIVED"),
		),
		mcp.WithString("source_service", mcp.Description("Producer service name")),
		mcp.WithString("created_after", mcp.Description("RFC 3339 time or YYYY-MM-DD")),
		mcp.WithString("created_before", mcp.Description("RFC 3339 time or YYYY-MM-DD")),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 100)")),
	)
}

// Handle processes the analysis_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := searchOptions(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.facade.Search(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No analyses match the given filters."), nil
	}
	return mcp.NewToolResultText(listAnalyses("Found analyses", results)), nil
}

// searchOptions reads the shared filter arguments of search and export.
func searchOptions(req mcp.CallToolRequest) (capture.SearchOptions, error) {
	opts := capture.SearchOptions{
		ThreadID:          req.GetString("thread_id", ""),
		SessionID:         req.GetString("session_id", ""),
		ProcessInstanceID: req.GetString("process_instance_id", ""),
		TaskNamePattern:   req.GetString("task_name", ""),
		Tags:              listArg(req, "tags"),
		SourceService:     req.GetString("source_service", ""),
		Limit:             intArg(req, "limit", 0),
	}
	switch mode := strings.ToLower(req.GetString("tag_mode", "")); mode {
	case "", string(capture.TagMatchAny):
		opts.TagMode = capture.TagMatchAny
	case string(capture.TagMatchAll):
		opts.TagMode = capture.TagMatchAll
	default:
		return opts, fmt.Errorf("'tag_mode' must be 'any' or 'all', got %q", mode)
	}
	if s := req.GetString("status", ""); s != "" {
		st, err := capture.ParseStatus(s)
		if err != nil {
			return opts, err
		}
		opts.Status = st
	}
	var err error
	if opts.CreatedAfter, err = timeArg(req, "created_after"); err != nil {
		return opts, err
	}
	if opts.CreatedBefore, err = timeArg(req, "created_before"); err != nil {
		return opts, err
	}
	return opts, nil
}

// ─── ThreadTool ──────────────────────────────────────────────────────────────

// ThreadTool handles the analysis_thread MCP tool.
type ThreadTool struct {
	facade *query.Facade
}

// NewThreadTool creates a ThreadTool.
func NewThreadTool(facade *query.Facade) *ThreadTool {
	return &ThreadTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_thread.
func (t *ThreadTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_thread",
		mcp.WithDescription("List the analyses of one thread or one session, most recent first."),
		mcp.WithString("thread_id", mcp.Description("Thread id (one of thread_id or session_id is required)")),
		mcp.WithString("session_id", mcp.Description("Session id")),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 50)")),
	)
}

// Handle processes the analysis_thread tool call.
func (t *ThreadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID := req.GetString("thread_id", "")
	sessionID := req.GetString("session_id", "")
	limit := intArg(req, "limit", capture.DefaultThreadLimit)

	var (
		results []capture.Analysis
		header  string
		err     error
	)
	switch {
	case threadID != "":
		results, err = t.facade.Thread(ctx, threadID, limit)
		header = "Thread " + threadID
	case sessionID != "":
		results, err = t.facade.Session(ctx, sessionID, limit)
		header = "Session " + sessionID
	default:
		return mcp.NewToolResultError("one of 'thread_id' or 'session_id' is required"), nil
	}
	if err != nil {
		if errors.Is(err, capture.ErrInvalidParams) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(header + " has no analyses."), nil
	}
	return mcp.NewToolResultText(listAnalyses(header, results)), nil
}

// ─── ThreadsTool ─────────────────────────────────────────────────────────────

// ThreadsTool handles the analysis_threads MCP tool.
type ThreadsTool struct {
	facade *query.Facade
}

// NewThreadsTool creates a ThreadsTool.
func NewThreadsTool(facade *query.Facade) *ThreadsTool {
	return &ThreadsTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_threads.
func (t *ThreadsTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_threads",
		mcp.WithDescription("List the most recently active threads with their analysis counts."),
		mcp.WithNumber("limit", mcp.Description("Max threads (default: 20)")),
	)
}

// Handle processes the analysis_threads tool call.
func (t *ThreadsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threads, err := t.facade.Threads(ctx, intArg(req, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing threads failed: %v", err)), nil
	}
	if len(threads) == 0 {
		return mcp.NewToolResultText("No threads captured yet."), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent threads (%d):\n\n", len(threads))
	for i, th := range threads {
		fmt.Fprintf(&b, "%d. **%s** %d analyses, last %s\n", i+1, th.ThreadID, th.AnalysisCount, th.LastCapturedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}
