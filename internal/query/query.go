// Package query is the read side: a thin facade over the capture store,
// the queue and whichever sink backends can answer questions.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/sink"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// Export limits. A bulk export never returns more than MaxExportLimit
// analyses.
const (
	DefaultExportLimit = 1000
	MaxExportLimit     = 1000
)

// Format is an export encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts "json" and "jsonl" in any case. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or jsonl)", s)
	}
}

// similarityQuerier is implemented by sink.Similarity.
type similarityQuerier interface {
	Query(ctx context.Context, text string, limit int) ([]vectorindex.Match, error)
}

// fragmentReader is implemented by sink.Graph.
type fragmentReader interface {
	Fragment(ctx context.Context, analysisID string) (*graph.Fragment, error)
}

// Facade answers read requests. It never writes.
type Facade struct {
	store *capture.Store
	sinks *sink.Registry
}

// New returns a facade over store and the sinks in reg.
func New(store *capture.Store, reg *sink.Registry) *Facade {
	return &Facade{store: store, sinks: reg}
}

// Get returns one analysis; found is false when the id is unknown.
func (f *Facade) Get(ctx context.Context, id string) (*capture.Analysis, bool, error) {
	return f.store.Get(ctx, id)
}

// Search runs a conjunctive search.
func (f *Facade) Search(ctx context.Context, opts capture.SearchOptions) ([]capture.Analysis, error) {
	return f.store.Search(ctx, opts)
}

// Thread returns the analyses of a thread, newest first.
func (f *Facade) Thread(ctx context.Context, threadID string, limit int) ([]capture.Analysis, error) {
	return f.store.GetByThread(ctx, threadID, limit)
}

// Session returns the analyses of a session, newest first.
func (f *Facade) Session(ctx context.Context, sessionID string, limit int) ([]capture.Analysis, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", capture.ErrInvalidParams)
	}
	return f.store.Search(ctx, capture.SearchOptions{SessionID: sessionID, Limit: limit})
}

// Threads lists the most recently active threads.
func (f *Facade) Threads(ctx context.Context, limit int) ([]capture.ThreadSummary, error) {
	return f.store.RecentThreads(ctx, limit)
}

// StatusReport is the task history of one analysis.
type StatusReport struct {
	AnalysisID string                   `json:"analysis_id"`
	Status     capture.Status           `json:"status"`
	Tasks      []capture.ProcessingTask `json:"tasks"`
}

// Status returns the task history of an analysis in creation order.
func (f *Facade) Status(ctx context.Context, analysisID string) (*StatusReport, bool, error) {
	a, found, err := f.store.Get(ctx, analysisID)
	if err != nil || !found {
		return nil, found, err
	}
	tasks, err := f.store.TaskStatus(ctx, analysisID)
	if err != nil {
		return nil, true, err
	}
	return &StatusReport{AnalysisID: analysisID, Status: a.Status, Tasks: tasks}, true, nil
}

// Stats is the store statistics plus sink availability.
type Stats struct {
	*capture.Stats
	Sinks map[capture.SinkType]bool `json:"sinks_enabled"`
}

// Stats returns aggregate counts and which sinks are enabled.
func (f *Facade) Stats(ctx context.Context, topThreads int) (*Stats, error) {
	st, err := f.store.Stats(ctx, topThreads)
	if err != nil {
		return nil, err
	}
	return &Stats{Stats: st, Sinks: f.sinks.Flags()}, nil
}

// exportRecord is one line of a jsonl export.
type exportRecord struct {
	Analysis capture.Analysis         `json:"analysis"`
	Tasks    []capture.ProcessingTask `json:"tasks"`
}

// Export writes the analyses matching opts to w and returns how many were
// written. The limit defaults to and is capped at MaxExportLimit.
func (f *Facade) Export(ctx context.Context, opts capture.SearchOptions, w io.Writer, format Format) (int, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultExportLimit
	}
	if opts.Limit > MaxExportLimit {
		opts.Limit = MaxExportLimit
	}
	data, err := f.store.Export(ctx, opts)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatJSONL:
		byAnalysis := map[string][]capture.ProcessingTask{}
		for _, t := range data.Tasks {
			byAnalysis[t.AnalysisID] = append(byAnalysis[t.AnalysisID], t)
		}
		enc := json.NewEncoder(w)
		for _, a := range data.Analyses {
			tasks := byAnalysis[a.ID]
			if tasks == nil {
				tasks = []capture.ProcessingTask{}
			}
			if err := enc.Encode(exportRecord{Analysis: a, Tasks: tasks}); err != nil {
				return 0, fmt.Errorf("export: %w", err)
			}
		}
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return 0, fmt.Errorf("export: %w", err)
		}
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
	return len(data.Analyses), nil
}

// ReadExport decodes what Export wrote in format. Task history in the
// input is returned but import does not replay it.
func ReadExport(r io.Reader, format Format) (*capture.ExportData, error) {
	switch format {
	case FormatJSONL:
		data := &capture.ExportData{}
		dec := json.NewDecoder(r)
		for line := 1; ; line++ {
			var rec exportRecord
			if err := dec.Decode(&rec); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("read export: record %d: %w", line, err)
			}
			data.Analyses = append(data.Analyses, rec.Analysis)
			data.Tasks = append(data.Tasks, rec.Tasks...)
		}
		return data, nil
	case FormatJSON, "":
		var data capture.ExportData
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return nil, fmt.Errorf("read export: %w", err)
		}
		return &data, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// Similar returns analyses whose text is closest to text. It returns
// vectorindex.ErrUnsupported when no queryable similarity sink is
// enabled.
func (f *Facade) Similar(ctx context.Context, text string, limit int) ([]vectorindex.Match, error) {
	proc, ok := f.sinks.Get(capture.SinkSimilarity)
	if !ok || !proc.Available() {
		return nil, vectorindex.ErrUnsupported
	}
	q, ok := proc.(similarityQuerier)
	if !ok {
		return nil, vectorindex.ErrUnsupported
	}
	return q.Query(ctx, text, limit)
}

// Graph returns the stored fragment of an analysis. It returns
// graphstore.ErrUnsupported when no readable graph sink is enabled.
func (f *Facade) Graph(ctx context.Context, analysisID string) (*graph.Fragment, error) {
	proc, ok := f.sinks.Get(capture.SinkGraph)
	if !ok || !proc.Available() {
		return nil, graphstore.ErrUnsupported
	}
	r, ok := proc.(fragmentReader)
	if !ok {
		return nil, graphstore.ErrUnsupported
	}
	return r.Fragment(ctx, analysisID)
}
