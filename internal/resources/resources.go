// Package resources implements MCP resource handlers for Hoofprint.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (hoofprint://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/query"
)

// StatsURI addresses the statistics resource.
const StatsURI = "hoofprint://stats"

// Handler serves resources backed by the query facade.
type Handler struct {
	facade *query.Facade
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(facade *query.Facade) *Handler {
	return &Handler{facade: facade}
}

// StatsResource returns the MCP resource definition for capture statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Hoofprint Statistics",
		mcp.WithResourceDescription("Analysis counts by status, busiest threads, task counts per sink and enabled sinks"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := h.facade.Stats(ctx, 10)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
