// Package sink defines the projection contract shared by every backend
// and the registry that decides which backends receive tasks.
package sink

import (
	"context"
	"sort"

	"github.com/HendryAvila/hoofprint/internal/capture"
)

// Processor projects one analysis into a backend. Process must be
// idempotent per analysis ID: running it twice leaves the backend as
// running it once.
type Processor interface {
	Type() capture.SinkType
	Available() bool
	Process(ctx context.Context, a *capture.Analysis) error
	Close(ctx context.Context) error
}

// ─── Disabled ────────────────────────────────────────────────────────────────

// disabled stands in for a backend that is unconfigured or unreachable.
type disabled struct {
	sinkType capture.SinkType
	reason   string
}

// Disabled returns a Processor that is never available. reason explains
// why, for logs and stats.
func Disabled(t capture.SinkType, reason string) Processor {
	return &disabled{sinkType: t, reason: reason}
}

func (d *disabled) Type() capture.SinkType { return d.sinkType }
func (d *disabled) Available() bool        { return false }
func (d *disabled) Close(context.Context) error {
	return nil
}

func (d *disabled) Process(context.Context, *capture.Analysis) error {
	return &UnavailableError{Sink: d.sinkType, Reason: d.reason}
}

// UnavailableError is returned when a task reaches a disabled sink.
type UnavailableError struct {
	Sink   capture.SinkType
	Reason string
}

func (e *UnavailableError) Error() string {
	return "sink " + string(e.Sink) + " unavailable: " + e.Reason
}

// Reason reports why p is unavailable, or "" when it is a live sink.
func Reason(p Processor) string {
	if d, ok := p.(*disabled); ok {
		return d.reason
	}
	return ""
}

// ─── Registry ────────────────────────────────────────────────────────────────

// Registry holds one Processor per sink type in registration order.
type Registry struct {
	order []capture.SinkType
	procs map[capture.SinkType]Processor
}

// NewRegistry registers procs in order.
func NewRegistry(procs ...Processor) *Registry {
	r := &Registry{procs: map[capture.SinkType]Processor{}}
	for _, p := range procs {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any processor of the same type in place.
func (r *Registry) Register(p Processor) {
	if _, ok := r.procs[p.Type()]; !ok {
		r.order = append(r.order, p.Type())
	}
	r.procs[p.Type()] = p
}

// Get returns the processor for t.
func (r *Registry) Get(t capture.SinkType) (Processor, bool) {
	p, ok := r.procs[t]
	return p, ok
}

// All returns every registered processor, available or not.
func (r *Registry) All() []Processor {
	out := make([]Processor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.procs[t])
	}
	return out
}

// Enabled returns the available sink types in registration order. These
// are the sinks new analyses fan out to.
func (r *Registry) Enabled() []capture.SinkType {
	var out []capture.SinkType
	for _, t := range r.order {
		if r.procs[t].Available() {
			out = append(out, t)
		}
	}
	return out
}

// Flags maps every registered sink type to its availability.
func (r *Registry) Flags() map[capture.SinkType]bool {
	flags := make(map[capture.SinkType]bool, len(r.procs))
	for t, p := range r.procs {
		flags[t] = p.Available()
	}
	return flags
}

// Resolve filters requested to enabled sinks, keeping registration order.
// An empty request means every enabled sink.
func (r *Registry) Resolve(requested []capture.SinkType) []capture.SinkType {
	enabled := r.Enabled()
	if len(requested) == 0 {
		return enabled
	}
	want := map[capture.SinkType]bool{}
	for _, t := range requested {
		want[t] = true
	}
	var out []capture.SinkType
	for _, t := range enabled {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

// Names returns every registered sink type, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.procs))
	for t := range r.procs {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
