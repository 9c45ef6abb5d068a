// Package vectorindex stores one embedding per analysis together with a
// small payload, and optionally answers nearest-neighbour queries.
package vectorindex

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrUnsupported is returned by indexes that cannot serve an operation.
var ErrUnsupported = errors.New("vectorindex: operation not supported")

// Payload is the metadata stored next to a vector.
type Payload struct {
	ThreadID  string    `json:"thread_id"`
	SessionID string    `json:"session_id,omitempty"`
	TaskName  string    `json:"task_name"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
	Excerpt   string    `json:"excerpt"`
}

// Document is the unit written to an index. AnalysisID is the key.
type Document struct {
	AnalysisID string
	Vector     []float32
	Payload    Payload
}

// Match is one query hit. Higher Score is closer.
type Match struct {
	AnalysisID string  `json:"analysis_id"`
	Score      float64 `json:"score"`
	Payload    Payload `json:"payload"`
}

// Index stores documents. Upsert replaces any document with the same
// AnalysisID.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Close(ctx context.Context) error
}

// Querier is implemented by indexes that support similarity search.
type Querier interface {
	Query(ctx context.Context, vector []float32, limit int) ([]Match, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
