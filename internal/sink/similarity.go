package sink

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/embed"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// DefaultExcerptLength bounds the excerpt stored with each vector, in runes.
const DefaultExcerptLength = 1000

// Similarity embeds the analysis text and upserts it into a vector index.
type Similarity struct {
	embedder embed.Embedder
	index    vectorindex.Index

	// ExcerptLength bounds Payload.Excerpt in runes.
	ExcerptLength int
}

// NewSimilarity wires an embedder to an index.
func NewSimilarity(e embed.Embedder, idx vectorindex.Index) *Similarity {
	return &Similarity{embedder: e, index: idx, ExcerptLength: DefaultExcerptLength}
}

// Type implements Processor.
func (s *Similarity) Type() capture.SinkType { return capture.SinkSimilarity }

// Available implements Processor.
func (s *Similarity) Available() bool { return s.embedder != nil && s.index != nil }

// Process implements Processor.
func (s *Similarity) Process(ctx context.Context, a *capture.Analysis) error {
	text := DocumentText(a)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", a.ID, err)
	}
	return s.index.Upsert(ctx, vectorindex.Document{
		AnalysisID: a.ID,
		Vector:     vec,
		Payload: vectorindex.Payload{
			ThreadID:  a.ThreadID,
			SessionID: a.SessionID,
			TaskName:  a.TaskName,
			CreatedAt: a.CreatedAt,
			Tags:      a.Tags,
			Excerpt:   excerpt(text, s.ExcerptLength),
		},
	})
}

// Query embeds text and returns the closest analyses. It returns
// vectorindex.ErrUnsupported when the index cannot be queried.
func (s *Similarity) Query(ctx context.Context, text string, limit int) ([]vectorindex.Match, error) {
	q, ok := s.index.(vectorindex.Querier)
	if !ok {
		return nil, vectorindex.ErrUnsupported
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return q.Query(ctx, vec, limit)
}

// Close implements Processor.
func (s *Similarity) Close(ctx context.Context) error {
	return s.index.Close(ctx)
}

// DocumentText is the text embedded for an analysis: task name, input
// JSON, output JSON and raw response, one per line, empty parts skipped.
func DocumentText(a *capture.Analysis) string {
	parts := []string{a.TaskName}
	if !a.InputData.IsNull() {
		parts = append(parts, a.InputData.JSON())
	}
	if !a.OutputData.IsNull() {
		parts = append(parts, a.OutputData.JSON())
	}
	if a.RawResponse != "" {
		parts = append(parts, a.RawResponse)
	}
	return strings.Join(parts, "\n")
}

func excerpt(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + capture.TruncationMarker
}
