package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/embed"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/query"
	"github.com/HendryAvila/hoofprint/internal/sink"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

type env struct {
	pipe   *pipeline.Pipeline
	facade *query.Facade
}

// newEnv wires a pipeline and facade over temp-dir SQLite backends.
func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	cfg := capture.DefaultConfig()
	cfg.DataDir = dir
	store, err := capture.New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	idx, err := vectorindex.OpenSQLite(dir)
	if err != nil {
		t.Fatalf("failed to open vector index: %v", err)
	}
	gdb, err := graphstore.OpenSQLite(dir)
	if err != nil {
		t.Fatalf("failed to open graph store: %v", err)
	}
	reg := sink.NewRegistry(sink.NewSimilarity(embed.NewHash(64), idx), sink.NewGraph(nil, gdb))
	pipe := pipeline.New(store, reg, pipeline.Config{})
	t.Cleanup(func() { _ = pipe.Close(context.Background()) })
	return env{pipe: pipe, facade: query.New(store, reg)}
}

// newBareEnv wires a pipeline with every sink disabled.
func newBareEnv(t *testing.T) env {
	t.Helper()
	cfg := capture.DefaultConfig()
	cfg.DataDir = t.TempDir()
	store, err := capture.New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	reg := sink.NewRegistry(
		sink.Disabled(capture.SinkSimilarity, "off"),
		sink.Disabled(capture.SinkGraph, "off"),
	)
	pipe := pipeline.New(store, reg, pipeline.Config{})
	t.Cleanup(func() { _ = pipe.Close(context.Background()) })
	return env{pipe: pipe, facade: query.New(store, reg)}
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// captureID runs analysis_capture and returns the new id.
func captureID(t *testing.T, e env, args map[string]interface{}) string {
	t.Helper()
	res, err := NewCaptureTool(e.pipe).Handle(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("capture failed: %s", resultText(res))
	}
	for _, line := range strings.Split(resultText(res), "\n") {
		if id, ok := strings.CutPrefix(line, "ID: "); ok {
			return id
		}
	}
	t.Fatalf("no id in %q", resultText(res))
	return ""
}

func hasRequired(def mcp.Tool, name string) bool {
	for _, r := range def.InputSchema.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions(t *testing.T) {
	e := newBareEnv(t)
	cases := []struct {
		def      mcp.Tool
		name     string
		required []string
	}{
		{NewCaptureTool(e.pipe).Definition(), "analysis_capture", []string{"thread_id", "task_name"}},
		{NewCaptureResultTool(e.pipe).Definition(), "analysis_capture_result", []string{"task_name", "thread_id", "recommendation"}},
		{NewGetTool(e.facade).Definition(), "analysis_get", []string{"id"}},
		{NewSearchTool(e.facade).Definition(), "analysis_search", nil},
		{NewThreadTool(e.facade).Definition(), "analysis_thread", nil},
		{NewThreadsTool(e.facade).Definition(), "analysis_threads", nil},
		{NewStatusTool(e.facade).Definition(), "analysis_status", []string{"id"}},
		{NewStatsTool(e.facade).Definition(), "analysis_stats", nil},
		{NewExportTool(e.facade).Definition(), "analysis_export", nil},
		{NewReprocessTool(e.pipe).Definition(), "analysis_reprocess", []string{"id"}},
		{NewProcessTool(e.pipe).Definition(), "analysis_process", nil},
		{NewSimilarTool(e.facade).Definition(), "analysis_similar", []string{"text"}},
		{NewGraphTool(e.facade).Definition(), "analysis_graph", []string{"id"}},
		{NewArchiveTool(e.pipe).Definition(), "analysis_archive", []string{"id"}},
		{NewImportTool(e.pipe).Definition(), "analysis_import", []string{"data"}},
	}
	for _, c := range cases {
		if c.def.Name != c.name {
			t.Errorf("tool name = %q, want %q", c.def.Name, c.name)
		}
		for _, r := range c.required {
			if _, ok := c.def.InputSchema.Properties[r]; !ok {
				t.Errorf("%s: missing %q parameter", c.name, r)
			}
			if !hasRequired(c.def, r) {
				t.Errorf("%s: %q should be required", c.name, r)
			}
		}
	}
}

// ─── Capture ─────────────────────────────────────────────────────────────────

func TestCaptureTool_RequiresThreadAndTask(t *testing.T) {
	e := newBareEnv(t)
	tool := NewCaptureTool(e.pipe)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"task_name": "x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Error("missing thread_id should be a tool error")
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"thread_id": "t"}))
	if !res.IsError {
		t.Error("missing task_name should be a tool error")
	}
}

func TestCaptureTool_StoresPayloads(t *testing.T) {
	e := newEnv(t)
	id := captureID(t, e, map[string]interface{}{
		"thread_id":    "t1",
		"task_name":    "vendor_selection",
		"input_data":   `{"budget":50000,"region":"EU"}`,
		"output_data":  map[string]interface{}{"winner": "Acme"},
		"raw_response": "Pick Acme.",
		"tags":         "crm, q3",
	})

	a, found, err := e.facade.Get(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got := a.InputData.JSON(); got != `{"budget":50000,"region":"EU"}` {
		t.Errorf("input_data = %s, key order should be kept for JSON strings", got)
	}
	if got := a.OutputData.JSON(); got != `{"winner":"Acme"}` {
		t.Errorf("output_data = %s", got)
	}
	if a.RawResponse != "Pick Acme." {
		t.Errorf("raw_response = %q", a.RawResponse)
	}
	if strings.Join(a.Tags, ",") != "crm,q3" {
		t.Errorf("tags = %v", a.Tags)
	}
	if a.SourceService != pipeline.DefaultSourceService {
		t.Errorf("source_service = %q", a.SourceService)
	}

	report, _, _ := e.facade.Status(context.Background(), id)
	if len(report.Tasks) != 2 {
		t.Errorf("tasks = %d, want one per enabled sink", len(report.Tasks))
	}
}

func TestCaptureTool_DefaultsInputToEmptyObject(t *testing.T) {
	e := newBareEnv(t)
	id := captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "x"})
	a, _, _ := e.facade.Get(context.Background(), id)
	if a.InputData.JSON() != "{}" {
		t.Errorf("input_data = %s, want {}", a.InputData.JSON())
	}
	if !a.OutputData.IsNull() {
		t.Errorf("output_data = %s, want null", a.OutputData.JSON())
	}
}

func TestCaptureTool_NoSinksQueuesNothing(t *testing.T) {
	e := newBareEnv(t)
	res, _ := NewCaptureTool(e.pipe).Handle(context.Background(), makeReq(map[string]interface{}{
		"thread_id": "t", "task_name": "x",
	}))
	if !strings.Contains(resultText(res), "none (no sinks enabled)") {
		t.Errorf("unexpected text: %s", resultText(res))
	}
}

func TestCaptureResultTool_JSONAndProse(t *testing.T) {
	e := newBareEnv(t)
	tool := NewCaptureResultTool(e.pipe)
	ctx := context.Background()

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{
		"task_name":      "vendor_selection",
		"thread_id":      "t1",
		"recommendation": `{"choice":"Acme"}`,
	}))
	if res.IsError {
		t.Fatalf("capture failed: %s", resultText(res))
	}
	res2, _ := tool.Handle(ctx, makeReq(map[string]interface{}{
		"task_name":      "vendor_selection",
		"thread_id":      "t1",
		"recommendation": "Go with Acme.",
	}))
	if res2.IsError {
		t.Fatalf("capture failed: %s", resultText(res2))
	}

	thread, _ := e.facade.Thread(ctx, "t1", 0)
	if len(thread) != 2 {
		t.Fatalf("thread has %d analyses, want 2", len(thread))
	}
	prose, structured := thread[0], thread[1]
	if prose.RawResponse != "Go with Acme." || !prose.OutputData.IsNull() {
		t.Errorf("prose stored as output=%s raw=%q", prose.OutputData.JSON(), prose.RawResponse)
	}
	if structured.OutputData.JSON() != `{"choice":"Acme"}` || structured.RawResponse != "" {
		t.Errorf("json stored as output=%s raw=%q", structured.OutputData.JSON(), structured.RawResponse)
	}

	res3, _ := tool.Handle(ctx, makeReq(map[string]interface{}{
		"task_name": "x", "thread_id": "t1", "recommendation": "  ",
	}))
	if !res3.IsError {
		t.Error("blank recommendation should be rejected")
	}
}

// ─── Read paths ──────────────────────────────────────────────────────────────

func TestGetTool_NotFound(t *testing.T) {
	e := newBareEnv(t)
	res, _ := NewGetTool(e.facade).Handle(context.Background(), makeReq(map[string]interface{}{"id": "nope"}))
	if !res.IsError || !strings.Contains(resultText(res), "not found") {
		t.Errorf("expected not found error, got %q", resultText(res))
	}
}

func TestGetTool_ReturnsJSON(t *testing.T) {
	e := newBareEnv(t)
	id := captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "x", "input_data": `{"a":1}`})

	res, _ := NewGetTool(e.facade).Handle(context.Background(), makeReq(map[string]interface{}{"id": id}))
	var a capture.Analysis
	if err := json.Unmarshal([]byte(resultText(res)), &a); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if a.ID != id || a.InputData.JSON() != `{"a":1}` {
		t.Errorf("unexpected analysis: %+v", a)
	}
}

func TestSearchTool_Filters(t *testing.T) {
	e := newBareEnv(t)
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "task_name": "vendor_selection", "tags": "crm"})
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "task_name": "budget_review", "tags": []interface{}{"crm", "finance"}})
	captureID(t, e, map[string]interface{}{"thread_id": "t2", "task_name": "vendor_selection"})

	tool := NewSearchTool(e.facade)
	ctx := context.Background()

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"thread_id": "t1", "task_name": "vendor"}))
	if !strings.Contains(resultText(res), "Found analyses (1)") {
		t.Errorf("conjunctive filter: %s", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"tags": "crm,finance", "tag_mode": "all"}))
	if !strings.Contains(resultText(res), "Found analyses (1)") || !strings.Contains(resultText(res), "budget_review") {
		t.Errorf("all-tag filter: %s", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"tags": "crm,finance"}))
	if !strings.Contains(resultText(res), "Found analyses (2)") {
		t.Errorf("any-tag filter: %s", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"thread_id": "t9"}))
	if res.IsError || !strings.Contains(resultText(res), "No analyses") {
		t.Errorf("empty result: %s", resultText(res))
	}
}

func TestSearchTool_BadArguments(t *testing.T) {
	e := newBareEnv(t)
	tool := NewSearchTool(e.facade)
	for name, args := range map[string]map[string]interface{}{
		"tag mode": {"tag_mode": "some"},
		"status":   {"status": "DONE"},
		"time":     {"created_after": "yesterday"},
	} {
		res, err := tool.Handle(context.Background(), makeReq(args))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !res.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
}

func TestThreadTool_ThreadAndSession(t *testing.T) {
	e := newBareEnv(t)
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "session_id": "s1", "task_name": "a"})
	captureID(t, e, map[string]interface{}{"thread_id": "t2", "session_id": "s1", "task_name": "b"})
	tool := NewThreadTool(e.facade)
	ctx := context.Background()

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"thread_id": "t1"}))
	if !strings.Contains(resultText(res), "Thread t1 (1)") {
		t.Errorf("thread: %s", resultText(res))
	}
	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"session_id": "s1"}))
	if !strings.Contains(resultText(res), "Session s1 (2)") {
		t.Errorf("session: %s", resultText(res))
	}
	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{}))
	if !res.IsError {
		t.Error("no id should be a tool error")
	}
}

func TestThreadsTool(t *testing.T) {
	e := newBareEnv(t)
	tool := NewThreadsTool(e.facade)
	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !strings.Contains(resultText(res), "No threads") {
		t.Errorf("empty: %s", resultText(res))
	}
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "task_name": "a"})
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "task_name": "b"})
	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !strings.Contains(resultText(res), "**t1** 2 analyses") {
		t.Errorf("threads: %s", resultText(res))
	}
}

// ─── Processing ──────────────────────────────────────────────────────────────

func TestProcessAndStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := captureID(t, e, map[string]interface{}{
		"thread_id":   "t1",
		"task_name":   "vendor_selection",
		"output_data": `{"stakeholders":[{"name":"CFO"}]}`,
	})

	status := NewStatusTool(e.facade)
	res, _ := status.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if !strings.Contains(resultText(res), "**Status:** CREATED") {
		t.Errorf("before processing: %s", resultText(res))
	}

	res, _ = NewProcessTool(e.pipe).Handle(ctx, makeReq(map[string]interface{}{}))
	if res.IsError || !strings.Contains(resultText(res), "Processed: 2\nFailed: 0") {
		t.Errorf("process: %s", resultText(res))
	}

	res, _ = status.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	text := resultText(res)
	if !strings.Contains(text, "**Status:** COMPLETED") {
		t.Errorf("after processing: %s", text)
	}
	if !strings.Contains(text, "| similarity | COMPLETED") || !strings.Contains(text, "| graph | COMPLETED") {
		t.Errorf("task rows missing: %s", text)
	}
}

func TestProcessTool_SinkFilterAndLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "a"})
	captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "b"})

	res, _ := NewProcessTool(e.pipe).Handle(ctx, makeReq(map[string]interface{}{"sink": "graph", "limit": float64(1)}))
	if !strings.Contains(resultText(res), "Processed: 1\n") {
		t.Errorf("limited batch: %s", resultText(res))
	}
}

func TestReprocessTool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "a", "output_data": `{"x":1}`})
	if _, err := e.pipe.ProcessAnalysis(ctx, id); err != nil {
		t.Fatalf("process: %v", err)
	}

	tool := NewReprocessTool(e.pipe)
	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"id": "missing"}))
	if !res.IsError {
		t.Error("unknown analysis should be a tool error")
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"id": id, "sinks": "grpah"}))
	if !res.IsError || !strings.Contains(resultText(res), "no enabled sink among grpah") {
		t.Errorf("unknown sink should queue nothing: %s", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"id": id, "sinks": "graph", "run": true}))
	if res.IsError || !strings.Contains(resultText(res), "Processed: 1\nFailed: 0") {
		t.Errorf("reprocess: %s", resultText(res))
	}

	report, _, _ := e.facade.Status(ctx, id)
	if len(report.Tasks) != 3 {
		t.Errorf("tasks = %d, want history kept plus one new", len(report.Tasks))
	}
}

func TestReprocessTool_NoSinksEnabled(t *testing.T) {
	e := newBareEnv(t)
	ctx := context.Background()
	id := captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "a"})

	res, _ := NewReprocessTool(e.pipe).Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if !res.IsError || !strings.Contains(resultText(res), "no sinks are enabled") {
		t.Errorf("got %s", resultText(res))
	}
}

func TestArchiveTool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "a"})
	tool := NewArchiveTool(e.pipe)

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"id": "missing"}))
	if !res.IsError {
		t.Error("unknown analysis should be a tool error")
	}
	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if res.IsError {
		t.Fatalf("archive: %s", resultText(res))
	}
	report, _, _ := e.facade.Status(ctx, id)
	if report.Status != capture.StatusArchived {
		t.Errorf("status = %s, want ARCHIVED", report.Status)
	}
}

func TestImportTool(t *testing.T) {
	src := newEnv(t)
	ctx := context.Background()
	captureID(t, src, map[string]interface{}{"thread_id": "t", "task_name": "a", "output_data": `{"x":1}`})
	exported, _ := NewExportTool(src.facade).Handle(ctx, makeReq(map[string]interface{}{"format": "jsonl"}))
	if exported.IsError {
		t.Fatalf("export: %s", resultText(exported))
	}

	dst := newEnv(t)
	tool := NewImportTool(dst.pipe)
	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"data": resultText(exported), "format": "jsonl"}))
	if res.IsError || !strings.Contains(resultText(res), "Imported: 1\nSkipped: 0\nQueued tasks: 2") {
		t.Errorf("import: %s", resultText(res))
	}

	tests := map[string]map[string]interface{}{
		"missing data": {},
		"bad format":   {"data": "{}", "format": "xml"},
		"bad json":     {"data": "{nope"},
		"missing ids":  {"data": `{"analyses":[{"task_name":"a"}]}`},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			res, _ := tool.Handle(ctx, makeReq(args))
			if !res.IsError {
				t.Errorf("expected a tool error, got %s", resultText(res))
			}
		})
	}
}

func TestFormatBatch_ListsErrors(t *testing.T) {
	out := FormatBatch(pipeline.BatchResult{
		Processed: 1,
		Failed:    1,
		Errors: []pipeline.TaskError{
			{TaskID: "t1", AnalysisID: "a1", SinkType: capture.SinkGraph, Message: "boom"},
		},
	})
	if !strings.Contains(out, "Processed: 1\nFailed: 1") || !strings.Contains(out, "a1 [graph] task t1: boom") {
		t.Errorf("unexpected: %q", out)
	}
}

// ─── Stats and export ────────────────────────────────────────────────────────

func TestStatsTool(t *testing.T) {
	e := newBareEnv(t)
	captureID(t, e, map[string]interface{}{"thread_id": "t", "task_name": "a"})
	res, _ := NewStatsTool(e.facade).Handle(context.Background(), makeReq(map[string]interface{}{}))
	text := resultText(res)
	if !strings.Contains(text, `"total_analyses": 1`) || !strings.Contains(text, `"sinks_enabled"`) {
		t.Errorf("stats: %s", text)
	}
}

func TestExportTool(t *testing.T) {
	e := newBareEnv(t)
	captureID(t, e, map[string]interface{}{"thread_id": "t1", "task_name": "a"})
	captureID(t, e, map[string]interface{}{"thread_id": "t2", "task_name": "b"})
	tool := NewExportTool(e.facade)
	ctx := context.Background()

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{"format": "jsonl", "thread_id": "t1"}))
	lines := strings.Split(strings.TrimSpace(resultText(res)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"task_name":"a"`) {
		t.Errorf("jsonl export: %q", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{}))
	var data capture.ExportData
	if err := json.Unmarshal([]byte(resultText(res)), &data); err != nil {
		t.Fatalf("json export is not JSON: %v", err)
	}
	if len(data.Analyses) != 2 {
		t.Errorf("exported %d analyses, want 2", len(data.Analyses))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"format": "csv"}))
	if !res.IsError {
		t.Error("unknown format should be a tool error")
	}
}

// ─── Similarity and graph ────────────────────────────────────────────────────

func TestSimilarAndGraphTools(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := captureID(t, e, map[string]interface{}{
		"thread_id":   "t1",
		"task_name":   "vendor_selection",
		"output_data": `{"stakeholders":[{"name":"CFO"}]}`,
	})
	if _, err := e.pipe.ProcessAnalysis(ctx, id); err != nil {
		t.Fatalf("process: %v", err)
	}

	res, _ := NewSimilarTool(e.facade).Handle(ctx, makeReq(map[string]interface{}{"text": "vendor selection stakeholders"}))
	if res.IsError || !strings.Contains(resultText(res), id) {
		t.Errorf("similar: %s", resultText(res))
	}

	res, _ = NewGraphTool(e.facade).Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if res.IsError || !strings.Contains(resultText(res), "CFO") {
		t.Errorf("graph: %s", resultText(res))
	}

	res, _ = NewGraphTool(e.facade).Handle(ctx, makeReq(map[string]interface{}{"id": "unknown"}))
	if !strings.Contains(resultText(res), "No graph stored") {
		t.Errorf("graph for unknown id: %s", resultText(res))
	}
}

func TestSimilarAndGraphTools_Disabled(t *testing.T) {
	e := newBareEnv(t)
	ctx := context.Background()
	res, _ := NewSimilarTool(e.facade).Handle(ctx, makeReq(map[string]interface{}{"text": "x"}))
	if !res.IsError || !strings.Contains(resultText(res), "not available") {
		t.Errorf("similar disabled: %s", resultText(res))
	}
	res, _ = NewGraphTool(e.facade).Handle(ctx, makeReq(map[string]interface{}{"id": "x"}))
	if !res.IsError || !strings.Contains(resultText(res), "not available") {
		t.Errorf("graph disabled: %s", resultText(res))
	}
}
