package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/query"
)

// ─── ArchiveTool ─────────────────────────────────────────────────────────────

// ArchiveTool handles the analysis_archive MCP tool.
type ArchiveTool struct {
	pipe *pipeline.Pipeline
}

// NewArchiveTool creates an ArchiveTool.
func NewArchiveTool(pipe *pipeline.Pipeline) *ArchiveTool {
	return &ArchiveTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_archive.
func (t *ArchiveTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_archive",
		mcp.WithDescription(
			"Archive an analysis. Nothing is deleted: the record and its task history stay queryable, "+
				"and later processing no longer changes its status.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis id"),
		),
	)
}

// Handle processes the analysis_archive tool call.
func (t *ArchiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	found, err := t.pipe.Archive(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("archive failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %s not found", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Analysis %s archived.", id)), nil
}

// ─── ImportTool ──────────────────────────────────────────────────────────────

// ImportTool handles the analysis_import MCP tool.
type ImportTool struct {
	pipe *pipeline.Pipeline
}

// NewImportTool creates an ImportTool.
func NewImportTool(pipe *pipeline.Pipeline) *ImportTool {
	return &ImportTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_import.
func (t *ImportTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_import",
		mcp.WithDescription(
			"Import analyses produced by analysis_export. Ids that already exist are skipped. "+
				"Each imported analysis is queued for every enabled sink.",
		),
		mcp.WithString("data",
			mcp.Required(),
			mcp.Description("The export document"),
		),
		mcp.WithString("format",
			mcp.Description("Encoding of 'data' (default: json)"),
			mcp.Enum("json", "jsonl"),
		),
	)
}

// Handle processes the analysis_import tool call.
func (t *ImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data := req.GetString("data", "")
	if strings.TrimSpace(data) == "" {
		return mcp.NewToolResultError("'data' is required"), nil
	}
	format, err := query.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	export, err := query.ReadExport(strings.NewReader(data), format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.pipe.Import(ctx, export)
	if err != nil {
		if errors.Is(err, capture.ErrInvalidParams) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid export: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}
	return mcp.NewToolResultText(FormatImport(res)), nil
}

// FormatImport renders the counts of an import.
func FormatImport(res *capture.ImportResult) string {
	return fmt.Sprintf("Imported: %d\nSkipped: %d\nQueued tasks: %d\n",
		res.AnalysesImported, res.AnalysesSkipped, res.TasksQueued)
}
