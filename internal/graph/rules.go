package graph

import "strings"

// Defaults used when no rule matches a key.
const (
	DefaultType         = "Component"
	DefaultRelationship = "HAS_PROPERTY"
)

// Rule maps a structural key to a node type and relationship label.
type Rule struct {
	Name         string
	Match        func(key string) bool
	Type         string
	Relationship string
}

// Rules is evaluated in order; the first match wins.
type Rules []Rule

// KeyContains matches keys whose normalized form contains any of words.
func KeyContains(words ...string) func(string) bool {
	return func(key string) bool {
		k := normalizeKey(key)
		for _, w := range words {
			if strings.Contains(k, w) {
				return true
			}
		}
		return false
	}
}

// DefaultRules returns the built-in table for decision-analysis payloads.
func DefaultRules() Rules {
	return Rules{
		{Name: "stakeholder", Match: KeyContains("stakeholder"), Type: "Stakeholder", Relationship: "HAS_STAKEHOLDER"},
		{Name: "criteria", Match: KeyContains("criteria", "criterion"), Type: "Criterion", Relationship: "HAS_CRITERION"},
		{Name: "alternative", Match: KeyContains("alternative", "option"), Type: "Alternative", Relationship: "HAS_ALTERNATIVE"},
		{Name: "constraint", Match: KeyContains("constraint"), Type: "Constraint", Relationship: "HAS_CONSTRAINT"},
		{Name: "budget", Match: KeyContains("budget", "cost"), Type: "Budget", Relationship: "HAS_BUDGET"},
		{Name: "risk", Match: KeyContains("risk"), Type: "Risk", Relationship: "HAS_RISK"},
		{Name: "recommendation", Match: KeyContains("recommendation"), Type: "Recommendation", Relationship: "HAS_RECOMMENDATION"},
		{Name: "requirement", Match: KeyContains("requirement"), Type: "Requirement", Relationship: "HAS_REQUIREMENT"},
		{Name: "goal", Match: KeyContains("goal", "objective"), Type: "Goal", Relationship: "HAS_GOAL"},
		{Name: "decision", Match: KeyContains("decision"), Type: "Decision", Relationship: "HAS_DECISION"},
		{Name: "assumption", Match: KeyContains("assumption"), Type: "Assumption", Relationship: "HAS_ASSUMPTION"},
	}
}

// With returns a copy of r with rule evaluated before all existing rules.
func (r Rules) With(rule Rule) Rules {
	out := make(Rules, 0, len(r)+1)
	out = append(out, rule)
	return append(out, r...)
}

// Resolve returns the type and relationship for key. Empty fields of a
// matching rule fall back to the defaults.
func (r Rules) Resolve(key string) (typ, rel string) {
	for _, rule := range r {
		if rule.Match == nil || !rule.Match(key) {
			continue
		}
		typ, rel = rule.Type, rule.Relationship
		if typ == "" {
			typ = DefaultType
		}
		if rel == "" {
			rel = DefaultRelationship
		}
		return typ, rel
	}
	return DefaultType, DefaultRelationship
}
