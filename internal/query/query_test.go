package query

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/embed"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/sink"
	"github.com/HendryAvila/hoofprint/internal/value"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

func newStore(t *testing.T) *capture.Store {
	t.Helper()
	cfg := capture.DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := capture.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func save(t *testing.T, s *capture.Store, thread, session, task string, sinks ...capture.SinkType) string {
	t.Helper()
	id, err := s.Save(context.Background(), capture.CaptureParams{
		ThreadID:   thread,
		SessionID:  session,
		TaskName:   task,
		InputData:  value.MustParse(`{"q":"` + task + `"}`),
		OutputData: value.MustParse(`{"stakeholders":[{"name":"CFO"}]}`),
	}, sinks)
	require.NoError(t, err)
	return id
}

func TestFacade_ReadPaths(t *testing.T) {
	store := newStore(t)
	f := New(store, sink.NewRegistry())
	ctx := context.Background()

	a := save(t, store, "t1", "s1", "first", capture.SinkGraph)
	b := save(t, store, "t1", "s2", "second")
	save(t, store, "t2", "s1", "third")

	got, found, err := f.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", got.TaskName)

	thread, err := f.Thread(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, b, thread[0].ID, "newest first")

	session, err := f.Session(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, session, 2)

	_, err = f.Session(ctx, "", 0)
	assert.ErrorIs(t, err, capture.ErrInvalidParams)

	threads, err := f.Threads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "t2", threads[0].ThreadID)

	report, found, err := f.Status(ctx, a)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, capture.SinkGraph, report.Tasks[0].SinkType)
	assert.Equal(t, capture.StatusCreated, report.Status)

	_, found, err = f.Status(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFacade_StatsIncludesSinkFlags(t *testing.T) {
	store := newStore(t)
	reg := sink.NewRegistry(sink.Disabled(capture.SinkSimilarity, "off"), sink.Disabled(capture.SinkGraph, "off"))
	f := New(store, reg)
	save(t, store, "t1", "", "x")

	st, err := f.Stats(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalAnalyses)
	assert.Equal(t, map[capture.SinkType]bool{capture.SinkSimilarity: false, capture.SinkGraph: false}, st.Sinks)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_analyses":1`)
	assert.Contains(t, string(raw), `"sinks_enabled"`)
}

func TestFacade_ExportJSONAndJSONL(t *testing.T) {
	store := newStore(t)
	f := New(store, sink.NewRegistry())
	ctx := context.Background()
	for i := range 3 {
		save(t, store, "t1", "", fmt.Sprintf("task-%d", i), capture.SinkGraph)
	}

	var buf bytes.Buffer
	n, err := f.Export(ctx, capture.SearchOptions{ThreadID: "t1"}, &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	var data capture.ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Len(t, data.Analyses, 3)
	assert.Len(t, data.Tasks, 3)
	assert.Equal(t, capture.ExportVersion, data.Version)

	buf.Reset()
	n, err = f.Export(ctx, capture.SearchOptions{Limit: 2}, &buf, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var lines int
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec exportRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.Len(t, rec.Tasks, 1)
		assert.Equal(t, `{"stakeholders":[{"name":"CFO"}]}`, rec.Analysis.OutputData.JSON())
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestReadExport_RoundTrip(t *testing.T) {
	store := newStore(t)
	f := New(store, sink.NewRegistry())
	ctx := context.Background()
	ids := map[string]bool{}
	for i := range 2 {
		ids[save(t, store, "t1", "", fmt.Sprintf("task-%d", i), capture.SinkGraph)] = true
	}

	for _, format := range []Format{FormatJSON, FormatJSONL} {
		var buf bytes.Buffer
		_, err := f.Export(ctx, capture.SearchOptions{}, &buf, format)
		require.NoError(t, err)

		data, err := ReadExport(&buf, format)
		require.NoError(t, err, format)
		require.Len(t, data.Analyses, 2, format)
		assert.Len(t, data.Tasks, 2, format)
		for _, a := range data.Analyses {
			assert.True(t, ids[a.ID], format)
			assert.Equal(t, `{"stakeholders":[{"name":"CFO"}]}`, a.OutputData.JSON())
		}
	}

	_, err := ReadExport(bytes.NewBufferString("{not json"), FormatJSONL)
	assert.ErrorContains(t, err, "record 1")
	_, err = ReadExport(bytes.NewBufferString("{}"), "xml")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestFacade_SimilarAndGraphUnsupported(t *testing.T) {
	f := New(newStore(t), sink.NewRegistry(sink.Disabled(capture.SinkSimilarity, "off")))
	_, err := f.Similar(context.Background(), "x", 5)
	assert.ErrorIs(t, err, vectorindex.ErrUnsupported)
	_, err = f.Graph(context.Background(), "x")
	assert.ErrorIs(t, err, graphstore.ErrUnsupported)
}

func TestFacade_SimilarAndGraph(t *testing.T) {
	store := newStore(t)
	idx, err := vectorindex.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	gdb, err := graphstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	sim := sink.NewSimilarity(embed.NewHash(64), idx)
	gr := sink.NewGraph(nil, gdb)
	t.Cleanup(func() {
		_ = sim.Close(context.Background())
		_ = gr.Close(context.Background())
	})
	f := New(store, sink.NewRegistry(sim, gr))
	ctx := context.Background()

	id := save(t, store, "t1", "", "vendor_selection")
	a, _, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, sim.Process(ctx, a))
	require.NoError(t, gr.Process(ctx, a))

	matches, err := f.Similar(ctx, "vendor selection", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].AnalysisID)

	frag, err := f.Graph(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, frag.Nodes)
}
