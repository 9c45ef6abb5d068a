package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/value"
)

const aid = "a-1"

func expand(t *testing.T, e *graph.Expander, v value.Value, role graph.Role) *graph.Fragment {
	t.Helper()
	f := graph.NewFragment(aid)
	require.NoError(t, e.Expand(f, v, aid, role, "", ""))
	return f
}

// assertTree checks that every node has exactly one incoming edge, that
// edges only point at known nodes, and that root edges carry the role.
func assertTree(t *testing.T, f *graph.Fragment) {
	t.Helper()
	ids := map[string]bool{}
	for _, n := range f.Nodes {
		require.False(t, ids[n.ID], "duplicate node id %s", n.ID)
		ids[n.ID] = true
	}
	incoming := map[string]int{}
	for _, e := range f.Edges {
		incoming[e.To]++
		if e.From == graph.RootID(aid) {
			assert.Equal(t, string(e.Role), e.Relationship)
		} else {
			assert.True(t, ids[e.From], "edge from unknown node %s", e.From)
		}
	}
	for id := range ids {
		assert.Equal(t, 1, incoming[id], "node %s", id)
	}
}

func TestExpand_StakeholderArray(t *testing.T) {
	v := value.MustParse(`{"stakeholders":[{"name":"CEO"},{"name":"CTO"}]}`)
	f := expand(t, graph.NewExpander(nil), v, graph.RoleOutput)
	assertTree(t, f)

	containers := f.Containers()
	require.Len(t, containers, 3)

	anchor := containers[0]
	rootEdge, ok := f.EdgeTo(anchor.ID)
	require.True(t, ok)
	assert.Equal(t, graph.RootID(aid), rootEdge.From)
	assert.Equal(t, "OUTPUT", rootEdge.Relationship)
	assert.Equal(t, graph.RootKey, anchor.Key)

	for i, want := range []string{"CEO", "CTO"} {
		c := containers[i+1]
		assert.Equal(t, "Stakeholder", c.Type)
		assert.Equal(t, want, c.Name)

		e, ok := f.EdgeTo(c.ID)
		require.True(t, ok)
		assert.Equal(t, anchor.ID, e.From, "siblings share the same parent")
		assert.Equal(t, "HAS_STAKEHOLDER", e.Relationship)
	}

	leaves := f.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, "Name: CEO", leaves[0].Name)
	assert.Equal(t, "Name: CTO", leaves[1].Name)
	for i, leaf := range leaves {
		assert.Equal(t, graph.TypeValue, leaf.Type)
		assert.Equal(t, "string", leaf.ValueType)
		e, ok := f.EdgeTo(leaf.ID)
		require.True(t, ok)
		assert.Equal(t, containers[i+1].ID, e.From)
	}
}

func TestExpand_EmptyObject(t *testing.T) {
	f := expand(t, graph.NewExpander(nil), value.MustParse(`{}`), graph.RoleInput)
	assertTree(t, f)
	assert.Len(t, f.Containers(), 1)
	assert.Empty(t, f.Leaves())
	assert.Equal(t, "Input", f.Nodes[0].Name)
}

func TestExpand_NestedEmptyObjectIsKept(t *testing.T) {
	f := expand(t, graph.NewExpander(nil), value.MustParse(`{"constraints":{},"x":null}`), graph.RoleInput)
	assertTree(t, f)
	require.Len(t, f.Containers(), 2)
	assert.Equal(t, "Constraint", f.Containers()[1].Type)
	assert.Empty(t, f.Leaves(), "null produces no node")
}

func TestExpand_LeafTypesAndNames(t *testing.T) {
	v := value.MustParse(`{"total_cost":1200.5,"approved":false,"owner":"ops"}`)
	f := expand(t, graph.NewExpander(nil), v, graph.RoleOutput)
	assertTree(t, f)

	leaves := f.Leaves()
	require.Len(t, leaves, 3)
	assert.Equal(t, "Total Cost: 1200.5", leaves[0].Name)
	assert.Equal(t, "number", leaves[0].ValueType)
	assert.Equal(t, "1200.5", leaves[0].Value)
	assert.Equal(t, "boolean", leaves[1].ValueType)
	assert.Equal(t, "Approved: false", leaves[1].Name)

	e, _ := f.EdgeTo(leaves[0].ID)
	assert.Equal(t, "HAS_BUDGET", e.Relationship)
	e, _ = f.EdgeTo(leaves[2].ID)
	assert.Equal(t, graph.DefaultRelationship, e.Relationship)
}

func TestExpand_ScalarArrayElementsAreSiblings(t *testing.T) {
	f := expand(t, graph.NewExpander(nil), value.MustParse(`{"risks":["delay","churn"]}`), graph.RoleOutput)
	assertTree(t, f)
	leaves := f.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, "Risks #1: delay", leaves[0].Name)
	assert.Equal(t, "risks[1]", leaves[1].Key)
	e0, _ := f.EdgeTo(leaves[0].ID)
	e1, _ := f.EdgeTo(leaves[1].ID)
	assert.Equal(t, e0.From, e1.From)
	assert.Equal(t, "HAS_RISK", e0.Relationship)
}

func TestExpand_TopLevelScalarProducesNothing(t *testing.T) {
	f := expand(t, graph.NewExpander(nil), value.String("hello"), graph.RoleOutput)
	assert.Empty(t, f.Nodes)
	assert.Empty(t, f.Edges)
}

func TestExpand_NodeIDsAreDeterministic(t *testing.T) {
	v := value.MustParse(`{"options":[{"title":"A","cost":1},{"title":"B"}],"goal":"grow"}`)
	e := graph.NewExpander(nil)
	f1 := expand(t, e, v, graph.RoleInput)
	f2 := expand(t, e, v, graph.RoleInput)
	assert.Equal(t, f1.Nodes, f2.Nodes)
	assert.Equal(t, f1.Edges, f2.Edges)

	f3 := expand(t, e, v, graph.RoleOutput)
	assert.NotEqual(t, f1.Nodes[0].ID, f3.Nodes[0].ID, "role is part of the identity")
}

func TestExpand_ArrayPositionsDoNotCollideWithKeys(t *testing.T) {
	tests := map[string]string{
		"bracketed key":      `{"a":[{"x":1}],"a[0]":{"y":2}}`,
		"nested arrays":      `{"a":[[{"x":1}]],"a[0][0]":{"y":2},"a[0]":[{"z":3}]}`,
		"control characters": "{\"a\":[{\"x\":1}],\"a\\u00010\":{\"y\":2}}",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			f := expand(t, graph.NewExpander(nil), value.MustParse(src), graph.RoleOutput)
			assertTree(t, f)
		})
	}
}

func TestExpand_CustomRuleTakesPrecedence(t *testing.T) {
	rules := graph.DefaultRules().With(graph.Rule{
		Name:         "vendor",
		Match:        graph.KeyContains("vendor"),
		Type:         "Vendor",
		Relationship: "HAS_VENDOR",
	})
	// "vendor_options" would otherwise hit the alternative rule.
	v := value.MustParse(`{"vendor_options":[{"name":"Acme"}]}`)
	f := expand(t, graph.NewExpander(rules), v, graph.RoleOutput)
	c := f.Containers()[1]
	assert.Equal(t, "Vendor", c.Type)
	e, _ := f.EdgeTo(c.ID)
	assert.Equal(t, "HAS_VENDOR", e.Relationship)
}

func TestExpand_RecommendationWrapperHasSinglePath(t *testing.T) {
	v := value.MustParse(`{"recommendation":{"title":"Pick B","reason":"cheaper"}}`)
	f := expand(t, graph.NewExpander(nil), v, graph.RoleRecommendation)
	assertTree(t, f)
	var recs int
	for _, n := range f.Containers() {
		if n.Type == "Recommendation" {
			recs++
			assert.Equal(t, "Pick B", n.Name)
		}
	}
	assert.Equal(t, 1, recs)
	assert.Len(t, f.Leaves(), 2)
}

type failingWriter struct{ graph.Fragment }

func (failingWriter) WriteEdge(graph.Edge) error { return errors.New("disk full") }

func TestExpand_PropagatesWriterErrors(t *testing.T) {
	w := &failingWriter{}
	err := graph.NewExpander(nil).Expand(w, value.MustParse(`{"a":1}`), aid, graph.RoleInput, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"name":            "Name",
		"total_cost":      "Total Cost",
		"decisionMaker":   "Decision Maker",
		"stakeholders[0]": "Stakeholders #1",
		"a-b.c":           "A B C",
		graph.RootKey:     "",
		"$root[2]":        "#3",
	}
	for in, want := range cases {
		assert.Equal(t, want, graph.CleanKey(in), in)
	}
}

func TestRules_ResolveDefaults(t *testing.T) {
	typ, rel := graph.DefaultRules().Resolve("misc")
	assert.Equal(t, graph.DefaultType, typ)
	assert.Equal(t, graph.DefaultRelationship, rel)

	typ, rel = graph.DefaultRules().Resolve("Success_Criteria[3]")
	assert.Equal(t, "Criterion", typ)
	assert.Equal(t, "HAS_CRITERION", rel)
}
