// Package tools implements the MCP tool handlers for Hoofprint.
//
// Each tool follows the same shape:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() validates arguments, calls the pipeline or query facade and
//   renders a text result
//
// Argument problems and backend failures are returned as tool errors
// (mcp.NewToolResultError), never as Go errors, so the host sees them.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/value"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg accepts either a JSON array of strings or a comma-separated
// string.
func listArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// valueArg reads a structured payload. Strings holding JSON are parsed,
// other strings stay strings; objects and arrays arrive already decoded
// and lose their key order. A missing key is Null.
func valueArg(req mcp.CallToolRequest, key string) (value.Value, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return value.Null(), nil
	}
	if s, ok := raw.(string); ok {
		if v, err := value.ParseString(strings.TrimSpace(s)); err == nil {
			return v, nil
		}
		return value.String(s), nil
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return value.Null(), fmt.Errorf("'%s': %w", key, err)
	}
	return v, nil
}

// timeArg parses an RFC 3339 timestamp or a bare date.
func timeArg(req mcp.CallToolRequest, key string) (time.Time, error) {
	s := strings.TrimSpace(req.GetString(key, ""))
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("'%s' must be RFC 3339 or YYYY-MM-DD, got %q", key, s)
}

func sinkList(names []string) []capture.SinkType {
	out := make([]capture.SinkType, 0, len(names))
	for _, n := range names {
		out = append(out, capture.SinkType(strings.ToLower(n)))
	}
	return out
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// analysisLine is the one-line summary used in listings.
func analysisLine(a capture.Analysis) string {
	line := fmt.Sprintf("`%s` **%s** [%s] thread=%s", a.ID, a.TaskName, a.Status, a.ThreadID)
	if a.SessionID != "" {
		line += " session=" + a.SessionID
	}
	if len(a.Tags) > 0 {
		line += " tags=" + strings.Join(a.Tags, ",")
	}
	return line + " " + a.CreatedAt.Format(time.RFC3339)
}

func listAnalyses(header string, results []capture.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n\n", header, len(results))
	for i, a := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, analysisLine(a))
	}
	return b.String()
}
