package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
)

// ProcessTool handles the analysis_process MCP tool.
type ProcessTool struct {
	pipe *pipeline.Pipeline
}

// NewProcessTool creates a ProcessTool.
func NewProcessTool(pipe *pipeline.Pipeline) *ProcessTool {
	return &ProcessTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_process.
func (t *ProcessTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_process",
		mcp.WithDescription(
			"Run pending projection tasks now. With an id, runs every pending task of that analysis; "+
				"otherwise claims up to 'limit' of the oldest pending tasks. A failing task never stops the batch.",
		),
		mcp.WithString("id", mcp.Description("Process only this analysis")),
		mcp.WithString("sink", mcp.Description("Process only tasks of this sink (e.g. 'similarity', 'graph')")),
		mcp.WithNumber("limit", mcp.Description("Max tasks (default: the configured batch limit)")),
	)
}

// Handle processes the analysis_process tool call.
func (t *ProcessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		res pipeline.BatchResult
		err error
	)
	if id := strings.TrimSpace(req.GetString("id", "")); id != "" {
		res, err = t.pipe.ProcessAnalysis(ctx, id)
	} else {
		sinkType := capture.SinkType(strings.ToLower(req.GetString("sink", "")))
		res, err = t.pipe.ProcessPending(ctx, sinkType, intArg(req, "limit", 0))
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing stopped: %v\n\n%s", err, FormatBatch(res))), nil
	}
	return mcp.NewToolResultText(FormatBatch(res)), nil
}

// FormatBatch renders processed and failed counts followed by the error
// message of each failed task.
func FormatBatch(res pipeline.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed: %d\nFailed: %d\n", res.Processed, res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintf(&b, "- %s [%s] task %s: %s\n", e.AnalysisID, e.SinkType, e.TaskID, e.Message)
	}
	return b.String()
}

// NothingQueued explains why a reprocess request queued no task.
func NothingQueued(requested []capture.SinkType) string {
	if len(requested) == 0 {
		return "nothing queued: no sinks are enabled"
	}
	names := make([]string, len(requested))
	for i, t := range requested {
		names[i] = string(t)
	}
	return "nothing queued: no enabled sink among " + strings.Join(names, ", ")
}

// ─── ReprocessTool ───────────────────────────────────────────────────────────

// ReprocessTool handles the analysis_reprocess MCP tool.
type ReprocessTool struct {
	pipe *pipeline.Pipeline
}

// NewReprocessTool creates a ReprocessTool.
func NewReprocessTool(pipe *pipeline.Pipeline) *ReprocessTool {
	return &ReprocessTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_reprocess.
func (t *ReprocessTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_reprocess",
		mcp.WithDescription(
			"Queue fresh projection tasks for an existing analysis. Earlier tasks are kept as history. "+
				"Set 'run' to process the new tasks immediately.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The analysis id"),
		),
		mcp.WithString("sinks", mcp.Description("Comma-separated sinks (default: every enabled sink)")),
		mcp.WithBoolean("run", mcp.Description("Process the queued tasks before returning (default: false)")),
	)
}

// Handle processes the analysis_reprocess tool call.
func (t *ReprocessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	requested := sinkList(listArg(req, "sinks"))
	queued, found, err := t.pipe.Reprocess(ctx, id, requested)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reprocess failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %s not found", id)), nil
	}
	if queued == 0 {
		return mcp.NewToolResultError(NothingQueued(requested)), nil
	}
	msg := fmt.Sprintf("Analysis %s requeued (%d task(s)).", id, queued)
	if !boolArg(req, "run", false) {
		return mcp.NewToolResultText(msg), nil
	}
	res, err := t.pipe.ProcessAnalysis(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s Processing stopped: %v", msg, err)), nil
	}
	return mcp.NewToolResultText(msg + "\n\n" + FormatBatch(res)), nil
}
