package sink

import (
	"context"
	"fmt"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/value"
)

// Graph expands an analysis into a fragment and replaces whatever the
// backend held for it.
type Graph struct {
	expander *graph.Expander
	backend  graphstore.Backend
}

// NewGraph wires an expander to a backend. A nil expander uses the
// default rules.
func NewGraph(e *graph.Expander, backend graphstore.Backend) *Graph {
	if e == nil {
		e = graph.NewExpander(nil)
	}
	return &Graph{expander: e, backend: backend}
}

// Type implements Processor.
func (g *Graph) Type() capture.SinkType { return capture.SinkGraph }

// Available implements Processor.
func (g *Graph) Available() bool { return g.backend != nil }

// Process implements Processor.
func (g *Graph) Process(ctx context.Context, a *capture.Analysis) error {
	f, err := g.Build(a)
	if err != nil {
		return err
	}
	return g.backend.ReplaceFragment(ctx, f)
}

// Build returns the fragment for a without writing it.
func (g *Graph) Build(a *capture.Analysis) (*graph.Fragment, error) {
	f := graph.NewFragment(a.ID)
	if err := g.expandRole(f, a.ID, graph.RoleInput, a.InputData); err != nil {
		return nil, err
	}
	if err := g.expandRole(f, a.ID, graph.RoleOutput, a.OutputData); err != nil {
		return nil, err
	}
	if recommendationDiffers(a) {
		if err := g.expander.ExpandText(f, a.RawResponse, a.ID, graph.RoleRecommendation); err != nil {
			return nil, fmt.Errorf("expand %s: %w", graph.RoleRecommendation, err)
		}
	}
	return f, nil
}

// Fragment reads back the stored fragment when the backend supports it.
func (g *Graph) Fragment(ctx context.Context, analysisID string) (*graph.Fragment, error) {
	r, ok := g.backend.(graphstore.Reader)
	if !ok {
		return nil, graphstore.ErrUnsupported
	}
	return r.Fragment(ctx, analysisID)
}

// Close implements Processor.
func (g *Graph) Close(ctx context.Context) error {
	return g.backend.Close(ctx)
}

// String payloads go through the free-text extractor.
func (g *Graph) expandRole(f *graph.Fragment, analysisID string, role graph.Role, v value.Value) error {
	var err error
	if s, ok := v.AsString(); ok {
		err = g.expander.ExpandText(f, s, analysisID, role)
	} else {
		err = g.expander.Expand(f, v, analysisID, role, "", graph.RootKey)
	}
	if err != nil {
		return fmt.Errorf("expand %s: %w", role, err)
	}
	return nil
}

// recommendationDiffers reports whether the raw response adds anything
// beyond the structured output.
func recommendationDiffers(a *capture.Analysis) bool {
	if a.RawResponse == "" {
		return false
	}
	if a.OutputData.IsNull() {
		return true
	}
	if a.RawResponse == a.OutputData.JSON() {
		return false
	}
	if s, ok := a.OutputData.AsString(); ok && s == a.RawResponse {
		return false
	}
	if parsed, err := value.ParseString(a.RawResponse); err == nil && parsed.Equal(a.OutputData) {
		return false
	}
	return true
}
