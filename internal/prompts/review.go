// Package prompts implements MCP prompt handlers for Hoofprint.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the analysis-review MCP prompt.
// It asks the AI to walk through everything captured for one thread.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("analysis-review",
		mcp.WithPromptDescription(
			"Review the analyses captured for a thread: what each task concluded, "+
				"how the conclusions relate, and what similar past work exists.",
		),
		mcp.WithArgument("thread_id",
			mcp.ArgumentDescription("Thread to review"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the analysis-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	threadID := strings.TrimSpace(req.Params.Arguments["thread_id"])
	if threadID == "" {
		return nil, fmt.Errorf("thread_id is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review thread %s", threadID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please review the analyses of thread '%s'.\n\n"+
						"1. Run `analysis_thread` with thread_id='%s'\n"+
						"2. For each analysis, run `analysis_get` and summarize the task's conclusion in one line\n"+
						"3. Run `analysis_graph` on the most recent analysis and list its key entities\n"+
						"4. Run `analysis_similar` with the latest task's conclusion to find comparable past work\n"+
						"5. Point out any analysis whose projection failed (see `analysis_status`)",
					threadID, threadID,
				)),
			},
		},
	}, nil
}
