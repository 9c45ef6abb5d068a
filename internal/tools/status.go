package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/query"
)

// StatusTool handles the analysis_status MCP tool.
type StatusTool struct {
	facade *query.Facade
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(facade *query.Facade) *StatusTool {
	return &StatusTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_status",
		mcp.WithDescription(
			"Show the projection status of an analysis: every processing task with its sink, "+
				"status, timestamps and error message.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis id"),
		),
	)
}

// Handle processes the analysis_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	report, found, err := t.facade.Status(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %s not found", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Analysis %s\n\n**Status:** %s\n\n", report.AnalysisID, report.Status)
	if len(report.Tasks) == 0 {
		b.WriteString("No processing tasks.\n")
		return mcp.NewToolResultText(b.String()), nil
	}
	b.WriteString("| Sink | Status | Created | Completed | Error |\n")
	b.WriteString("|------|--------|---------|-----------|-------|\n")
	for _, task := range report.Tasks {
		completed := "-"
		if task.CompletedAt != nil {
			completed = task.CompletedAt.Format(time.RFC3339)
		}
		errMsg := task.ErrorMessage
		if errMsg == "" {
			errMsg = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			task.SinkType, task.Status, task.CreatedAt.Format(time.RFC3339), completed, errMsg)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── StatsTool ───────────────────────────────────────────────────────────────

// StatsTool handles the analysis_stats MCP tool.
type StatsTool struct {
	facade *query.Facade
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(facade *query.Facade) *StatsTool {
	return &StatsTool{facade: facade}
}

// Definition returns the MCP tool definition for analysis_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_stats",
		mcp.WithDescription(
			"Aggregate statistics: total analyses, counts per status, busiest threads, "+
				"task counts per sink and which sinks are enabled.",
		),
		mcp.WithNumber("top_threads", mcp.Description("How many busiest threads to list (default: 10)")),
	)
}

// Handle processes the analysis_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.facade.Stats(ctx, intArg(req, "top_threads", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(st), nil
}
