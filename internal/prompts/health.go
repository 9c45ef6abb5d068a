package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// HealthPrompt handles the analysis-health MCP prompt.
// It asks the AI to check the projection queue and fix what it can.
type HealthPrompt struct{}

// NewHealthPrompt creates a HealthPrompt.
func NewHealthPrompt() *HealthPrompt {
	return &HealthPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *HealthPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("analysis-health",
		mcp.WithPromptDescription(
			"Check projection health: enabled sinks, pending and failed tasks, "+
				"and what to run to catch up.",
		),
	)
}

// Handle processes the analysis-health prompt request.
func (p *HealthPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Hoofprint projection health",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `analysis_stats` and check how projection is doing.\n\n" +
						"Then:\n" +
						"1. Tell me which sinks are enabled\n" +
						"2. Show the pending and failed task counts per sink\n" +
						"3. If tasks are pending, run `analysis_process` and report processed and failed counts\n" +
						"4. For failed tasks, show the error messages and suggest whether `analysis_reprocess` would help",
				),
			},
		},
	}, nil
}
