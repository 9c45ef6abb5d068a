// Package value is the closed sum type used for captured payloads.
//
// A Value is exactly one of Null, Bool, Number, String, Array or Object.
// Objects keep their members in source order so that anything derived
// from them (graph node order, excerpts, exports) is deterministic.
package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON-like value. The zero Value is Null.
type Value struct {
	kind    Kind
	b       bool
	num     string // numbers keep their literal text
	s       string
	items   []Value
	members []Member
}

// ─── Constructors ────────────────────────────────────────────────────────────

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number wraps a JSON number literal. The literal is not validated.
func Number(literal string) Value { return Value{kind: KindNumber, num: literal} }

// Int wraps an integer.
func Int(n int64) Value { return Number(strconv.FormatInt(n, 10)) }

// Float wraps a float using the shortest representation that round-trips.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'g', -1, 64)) }

// Array builds an array from items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// Object builds an object from members. Later duplicates replace earlier
// ones in place.
func Object(members ...Member) Value {
	b := NewObjectBuilder()
	for _, m := range members {
		b.Set(m.Key, m.Value)
	}
	return b.Build()
}

// ObjectBuilder accumulates object members in insertion order.
type ObjectBuilder struct {
	members []Member
	index   map[string]int
}

// NewObjectBuilder returns an empty builder.
func NewObjectBuilder() *ObjectBuilder {
	return &ObjectBuilder{index: map[string]int{}}
}

// Set adds or replaces a member. Replacing keeps the original position.
func (b *ObjectBuilder) Set(key string, v Value) *ObjectBuilder {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = v
		return b
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: v})
	return b
}

// Has reports whether key was already set.
func (b *ObjectBuilder) Has(key string) bool {
	_, ok := b.index[key]
	return ok
}

// Len returns the number of members.
func (b *ObjectBuilder) Len() int { return len(b.members) }

// Build returns the object. The builder can keep being used afterwards.
func (b *ObjectBuilder) Build() Value {
	return Value{kind: KindObject, members: append([]Member{}, b.members...)}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null (including the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsScalar reports whether v is a bool, number or string.
func (v Value) IsScalar() bool {
	return v.kind == KindBool || v.kind == KindNumber || v.kind == KindString
}

// AsBool returns the boolean and whether v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string and whether v is a String.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the number literal and whether v is a Number.
func (v Value) AsNumber() (string, bool) { return v.num, v.kind == KindNumber }

// Items returns the elements of an array, or nil.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Members returns the members of an object in order, or nil.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Field returns the member named key of an object.
func (v Value) Field(key string) (Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of items or members; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Text returns the scalar rendered as plain text: strings unquoted,
// numbers as written, booleans as true/false. Null and containers
// render as their JSON encoding.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.num
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.JSON()
	}
}

// JSON returns the compact JSON encoding of v.
func (v Value) JSON() string {
	var sb strings.Builder
	v.writeJSON(&sb)
	return sb.String()
}

// Equal reports deep equality. Object member order is significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != o.members[i].Key || !v.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// ─── Conversion ──────────────────────────────────────────────────────────────

// FromAny converts the output of encoding/json (or hand-built Go values)
// into a Value. Map keys are sorted because Go maps carry no order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case float64:
		return Float(t), nil
	case float32:
		return Float(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case []any:
		items := make([]Value, 0, len(t))
		for i, e := range t {
			iv, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindArray, items: items}, nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, String(e))
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b := NewObjectBuilder()
		for _, k := range keys {
			mv, err := FromAny(t[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			b.Set(k, mv)
		}
		return b.Build(), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
}

// MarshalJSON encodes v preserving member order.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.JSON()), nil
}

// UnmarshalJSON decodes data preserving member order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.num == "" {
			sb.WriteString("0")
			return
		}
		sb.WriteString(v.num)
	case KindString:
		writeString(sb, v.s)
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeJSON(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeString(sb, m.Key)
			sb.WriteByte(':')
			m.Value.writeJSON(sb)
		}
		sb.WriteByte('}')
	}
}

func writeString(sb *strings.Builder, s string) {
	// json.Marshal on a string cannot fail.
	b, _ := json.Marshal(s)
	sb.Write(b)
}
