package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HendryAvila/hoofprint/internal/value"
)

// nameFields are checked in order for a container's display name.
var nameFields = []string{"name", "title", "label"}

// Expander converts values into fragments using a rule table.
type Expander struct {
	rules Rules
}

// NewExpander returns an Expander using rules, or DefaultRules when rules
// is empty.
func NewExpander(rules Rules) *Expander {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Expander{rules: rules}
}

// Rules returns the table in use.
func (e *Expander) Rules() Rules { return e.rules }

// Expand emits the nodes and edges for v. With an empty parentID the
// value hangs off the analysis root and the connecting edge is labelled
// with the role. An empty key means RootKey.
//
// The only errors returned are the ones the writer reports.
func (e *Expander) Expand(w Writer, v value.Value, analysisID string, role Role, parentID, key string) error {
	if key == "" {
		key = RootKey
	}
	return e.expand(w, v, analysisID, role, parentID, key, memberSeed(key))
}

// expand carries seed next to key: seed identifies the node for nodeID
// and keeps array positions apart from member keys that look like them.
func (e *Expander) expand(w Writer, v value.Value, analysisID string, role Role, parentID, key, seed string) error {
	switch v.Kind() {
	case value.KindObject:
		return e.expandObject(w, v, analysisID, role, parentID, key, seed)
	case value.KindArray:
		for i, item := range v.Items() {
			pos := strconv.Itoa(i)
			if err := e.expand(w, item, analysisID, role, parentID, key+"["+pos+"]", seed+indexMark+pos); err != nil {
				return err
			}
		}
		return nil
	case value.KindNull:
		return nil
	default:
		if parentID == "" {
			return nil
		}
		return e.expandLeaf(w, v, analysisID, role, parentID, key, seed)
	}
}

// indexMark introduces an array position in a seed. Member keys double
// it, so a single mark followed by digits only comes from an array.
const indexMark = "\x01"

func memberSeed(key string) string {
	return strings.ReplaceAll(key, indexMark, indexMark+indexMark)
}

// ExpandText runs the free-text extractor over text and expands the result
// at the top level for role.
func (e *Expander) ExpandText(w Writer, text, analysisID string, role Role) error {
	return e.Expand(w, ExtractText(text), analysisID, role, "", RootKey)
}

func (e *Expander) expandObject(w Writer, v value.Value, analysisID string, role Role, parentID, key, seed string) error {
	typ, rel := e.rules.Resolve(key)
	from := parentID
	if parentID == "" {
		from = RootID(analysisID)
		rel = string(role)
	}

	node := Node{
		ID:         nodeID(analysisID, role, parentID, seed),
		Type:       typ,
		Name:       truncateName(containerName(v, key, role)),
		AnalysisID: analysisID,
		Role:       role,
		Key:        key,
	}
	if err := w.WriteNode(node); err != nil {
		return fmt.Errorf("graph: write node %s: %w", key, err)
	}
	if err := w.WriteEdge(Edge{From: from, To: node.ID, Relationship: rel, AnalysisID: analysisID, Role: role}); err != nil {
		return fmt.Errorf("graph: write edge %s: %w", key, err)
	}

	for _, m := range v.Members() {
		if err := e.expand(w, m.Value, analysisID, role, node.ID, m.Key, memberSeed(m.Key)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) expandLeaf(w Writer, v value.Value, analysisID string, role Role, parentID, key, seed string) error {
	_, rel := e.rules.Resolve(key)
	text := v.Text()
	label := CleanKey(key)

	name := text
	if label != "" {
		name = label + ": " + text
	}

	node := Node{
		ID:         nodeID(analysisID, role, parentID, seed),
		Type:       TypeValue,
		Name:       truncateName(name),
		AnalysisID: analysisID,
		Role:       role,
		Key:        key,
		Value:      text,
		ValueType:  v.Kind().String(),
		Leaf:       true,
	}
	if err := w.WriteNode(node); err != nil {
		return fmt.Errorf("graph: write node %s: %w", key, err)
	}
	if err := w.WriteEdge(Edge{From: parentID, To: node.ID, Relationship: rel, AnalysisID: analysisID, Role: role}); err != nil {
		return fmt.Errorf("graph: write edge %s: %w", key, err)
	}
	return nil
}

func containerName(v value.Value, key string, role Role) string {
	for _, f := range nameFields {
		fv, ok := v.Field(f)
		if !ok || !fv.IsScalar() {
			continue
		}
		if s := fv.Text(); s != "" {
			return s
		}
	}
	if label := CleanKey(key); label != "" {
		return label
	}
	return roleLabel(role)
}
