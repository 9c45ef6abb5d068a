package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/value"
)

// CaptureTool handles the analysis_capture MCP tool.
type CaptureTool struct {
	pipe *pipeline.Pipeline
}

// NewCaptureTool creates a CaptureTool.
func NewCaptureTool(pipe *pipeline.Pipeline) *CaptureTool {
	return &CaptureTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_capture.
func (t *CaptureTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_capture",
		mcp.WithDescription(
			"Capture one analysis event: the input given to a task and what it produced. "+
				"The record is stored durably and queued for projection into every enabled sink.",
		),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Conversation or workflow thread the analysis belongs to"),
		),
		mcp.WithString("task_name",
			mcp.Required(),
			mcp.Description("Name of the task that ran (e.g. 'vendor_selection')"),
		),
		mcp.WithString("input_data",
			mcp.Description("Task input as JSON (object, array or scalar). Defaults to {}"),
		),
		mcp.WithString("output_data",
			mcp.Description("Structured task output as JSON"),
		),
		mcp.WithString("raw_response",
			mcp.Description("Unstructured response text, e.g. the model's prose answer"),
		),
		mcp.WithString("session_id", mcp.Description("Session identifier")),
		mcp.WithString("process_instance_id", mcp.Description("Workflow process instance identifier")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("source_service", mcp.Description("Producer service name (default: hoofprint)")),
	)
}

// Handle processes the analysis_capture tool call.
func (t *CaptureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID := req.GetString("thread_id", "")
	taskName := req.GetString("task_name", "")
	if threadID == "" {
		return mcp.NewToolResultError("'thread_id' is required"), nil
	}
	if taskName == "" {
		return mcp.NewToolResultError("'task_name' is required"), nil
	}

	input, err := valueArg(req, "input_data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if input.IsNull() {
		input = value.Object()
	}
	output, err := valueArg(req, "output_data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := t.pipe.Capture(ctx, capture.CaptureParams{
		ThreadID:          threadID,
		TaskName:          taskName,
		InputData:         input,
		OutputData:        output,
		RawResponse:       req.GetString("raw_response", ""),
		SessionID:         req.GetString("session_id", ""),
		ProcessInstanceID: req.GetString("process_instance_id", ""),
		Tags:              listArg(req, "tags"),
		SourceService:     req.GetString("source_service", ""),
	})
	if err != nil {
		return captureError(err), nil
	}
	return mcp.NewToolResultText(captureResponse(id, t.pipe)), nil
}

// ─── CaptureResultTool ───────────────────────────────────────────────────────

// CaptureResultTool handles the analysis_capture_result MCP tool.
type CaptureResultTool struct {
	pipe *pipeline.Pipeline
}

// NewCaptureResultTool creates a CaptureResultTool.
func NewCaptureResultTool(pipe *pipeline.Pipeline) *CaptureResultTool {
	return &CaptureResultTool{pipe: pipe}
}

// Definition returns the MCP tool definition for analysis_capture_result.
func (t *CaptureResultTool) Definition() mcp.Tool {
	return mcp.NewTool("analysis_capture_result",
		mcp.WithDescription(
			"Capture a finished task result in one call. The recommendation may be JSON text "+
				"(stored as structured output) or prose (stored as the raw response).",
		),
		mcp.WithString("task_name", mcp.Required(), mcp.Description("Name of the task that ran")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread the result belongs to")),
		mcp.WithString("recommendation", mcp.Required(), mcp.Description("The task's recommendation, JSON or prose")),
		mcp.WithString("process_instance_id", mcp.Description("Workflow process instance identifier")),
		mcp.WithString("session_id", mcp.Description("Session identifier")),
		mcp.WithString("input_data", mcp.Description("Task input as JSON. Defaults to {}")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	)
}

// Handle processes the analysis_capture_result tool call.
func (t *CaptureResultTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskName := req.GetString("task_name", "")
	threadID := req.GetString("thread_id", "")
	recommendation := req.GetString("recommendation", "")
	if taskName == "" || threadID == "" {
		return mcp.NewToolResultError("'task_name' and 'thread_id' are required"), nil
	}
	if strings.TrimSpace(recommendation) == "" {
		return mcp.NewToolResultError("'recommendation' is required"), nil
	}
	input, err := valueArg(req, "input_data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := t.pipe.CaptureTaskResult(ctx, pipeline.TaskResult{
		TaskName:          taskName,
		ThreadID:          threadID,
		Recommendation:    recommendation,
		ProcessInstanceID: req.GetString("process_instance_id", ""),
		SessionID:         req.GetString("session_id", ""),
		InputData:         input,
		Tags:              listArg(req, "tags"),
	})
	if err != nil {
		return captureError(err), nil
	}
	return mcp.NewToolResultText(captureResponse(id, t.pipe)), nil
}

func captureError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, capture.ErrInvalidParams):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, capture.ErrStorageUnavailable):
		return mcp.NewToolResultError(fmt.Sprintf("storage unavailable, nothing was captured: %v", err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("capture failed: %v", err))
}

func captureResponse(id string, pipe *pipeline.Pipeline) string {
	sinks := pipe.Sinks().Enabled()
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, string(s))
	}
	queued := "none (no sinks enabled)"
	if len(names) > 0 {
		queued = strings.Join(names, ", ")
	}
	return fmt.Sprintf("Analysis captured.\nID: %s\nQueued sinks: %s", id, queued)
}
