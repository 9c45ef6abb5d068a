// Package graphstore persists graph fragments keyed by analysis id.
package graphstore

import (
	"context"
	"errors"

	"github.com/HendryAvila/hoofprint/internal/graph"
)

// ErrUnsupported is returned by backends that cannot serve an operation.
var ErrUnsupported = errors.New("graphstore: operation not supported")

// Backend stores fragments. ReplaceFragment must drop whatever was stored
// for the fragment's analysis before writing the new one, so writing the
// same fragment twice leaves one copy.
type Backend interface {
	ReplaceFragment(ctx context.Context, f *graph.Fragment) error
	Close(ctx context.Context) error
}

// Reader is implemented by backends that can return a stored fragment.
type Reader interface {
	Fragment(ctx context.Context, analysisID string) (*graph.Fragment, error)
}
