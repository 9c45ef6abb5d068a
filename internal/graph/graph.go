// Package graph turns captured payloads into typed, named trees of nodes
// and relationships.
//
// Expansion is pure: it only talks to a Writer. Persisting a fragment is
// the job of internal/graphstore.
package graph

import (
	"github.com/google/uuid"
)

// Role names the phase of an analysis a subtree was produced from.
type Role string

const (
	RoleInput          Role = "INPUT"
	RoleOutput         Role = "OUTPUT"
	RoleRecommendation Role = "RECOMMENDATION"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInput, RoleOutput, RoleRecommendation:
		return true
	}
	return false
}

// RootKey is the key used for the top-level value of an expansion.
const RootKey = "$root"

// TypeValue is the node type of every leaf.
const TypeValue = "Value"

// Node is one vertex of a fragment. Value and ValueType are only set on
// leaves.
type Node struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	AnalysisID string `json:"analysis_id"`
	Role       Role   `json:"role"`
	Key        string `json:"key"`
	Value      string `json:"value,omitempty"`
	ValueType  string `json:"value_type,omitempty"`
	Leaf       bool   `json:"leaf"`
}

// Edge is a directed, typed connection from a parent (or the analysis
// root) to a child node.
type Edge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
	AnalysisID   string `json:"analysis_id"`
	Role         Role   `json:"role"`
}

// Writer receives nodes and edges as they are produced. A node is always
// written before the edge that points at it.
type Writer interface {
	WriteNode(Node) error
	WriteEdge(Edge) error
}

// Fragment is an in-memory Writer holding everything produced for one
// analysis.
type Fragment struct {
	AnalysisID string `json:"analysis_id"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}

// NewFragment returns an empty fragment for analysisID.
func NewFragment(analysisID string) *Fragment {
	return &Fragment{AnalysisID: analysisID, Nodes: []Node{}, Edges: []Edge{}}
}

func (f *Fragment) WriteNode(n Node) error {
	f.Nodes = append(f.Nodes, n)
	return nil
}

func (f *Fragment) WriteEdge(e Edge) error {
	f.Edges = append(f.Edges, e)
	return nil
}

// Leaves returns the leaf nodes in emission order.
func (f *Fragment) Leaves() []Node {
	var out []Node
	for _, n := range f.Nodes {
		if n.Leaf {
			out = append(out, n)
		}
	}
	return out
}

// Containers returns the non-leaf nodes in emission order.
func (f *Fragment) Containers() []Node {
	var out []Node
	for _, n := range f.Nodes {
		if !n.Leaf {
			out = append(out, n)
		}
	}
	return out
}

// EdgeTo returns the single incoming edge of node id.
func (f *Fragment) EdgeTo(id string) (Edge, bool) {
	for _, e := range f.Edges {
		if e.To == id {
			return e, true
		}
	}
	return Edge{}, false
}

// RootID is the identity the root edges of an analysis originate from.
func RootID(analysisID string) string {
	return "analysis:" + analysisID
}

var nodeNamespace = uuid.MustParse("6f1c2b0e-4d6a-5b8e-9f3a-2c7d1e0b5a94")

// nodeID is stable across runs so that re-projecting an analysis replaces
// its nodes instead of adding new ones.
func nodeID(analysisID string, role Role, parentID, seed string) string {
	name := analysisID + "\x00" + string(role) + "\x00" + parentID + "\x00" + seed
	return uuid.NewSHA1(nodeNamespace, []byte(name)).String()
}
