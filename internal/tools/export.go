package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/query"
)

// ExportTool handles the analysis_export MCP tool.
type ExportTool struct {
	facade *query.Facade
}

// NewExportTool creates an ExportTool.
func NewExportTool(facade *query.Facade) *ExportTool {
	return &ExportTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_export",
		mcp.WithDescription(
			"Export analyses with their processing tasks as JSON or JSON Lines. "+
				"Accepts the same filters as analysis_search. At most 1000 analyses per call.",
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: json)"),
			mcp.Enum("json", "jsonl"),
		),
		mcp.WithString("thread_id", mcp.Description("Exact thread id")),
		mcp.WithString("session_id", mcp.Description("Exact session id")),
		mcp.WithString("process_instance_id", mcp.Description("Exact process instance id")),
		mcp.WithString("task_name", mcp.Description("Substring of the task name")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("tag_mode", mcp.Enum("any", "all")),
		mcp.WithString("status", mcp.Description("Analysis status")),
		mcp.WithString("source_service", mcp.Description("Producer service name")),
		mcp.WithString("created_after", mcp.Description("RFC 3339 time or YYYY-MM-DD")),
		mcp.WithString("created_before", mcp.Description("RFC 3339 time or YYYY-MM-DD")),
		mcp.WithNumber("limit", mcp.Description("Max analyses (default and max: 1000)")),
	)
}

// Handle processes the analysis_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := query.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := searchOptions(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	if _, err := t.facade.Export(ctx, opts, &b, format); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
