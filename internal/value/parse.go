package value

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// ErrNotJSON is returned by Parse when the input is not a single valid
// JSON document.
var ErrNotJSON = errors.New("value: input is not valid JSON")

// Parse decodes a JSON document into a Value, keeping object member order.
func Parse(data []byte) (Value, error) {
	if !json.Valid(data) {
		return Value{}, ErrNotJSON
	}
	raw, dt, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("value: %w", err)
	}
	return fromRaw(raw, dt)
}

// ParseString is Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

// MustParse is Parse for literals in tests and tables. It panics on error.
func MustParse(s string) Value {
	v, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func fromRaw(raw []byte, dt jsonparser.ValueType) (Value, error) {
	switch dt {
	case jsonparser.Null:
		return Null(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("value: boolean: %w", err)
		}
		return Bool(b), nil
	case jsonparser.Number:
		return Number(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("value: string: %w", err)
		}
		return String(s), nil
	case jsonparser.Array:
		items := []Value{}
		var inner error
		_, err := jsonparser.ArrayEach(raw, func(elem []byte, edt jsonparser.ValueType, _ int, err error) {
			if inner != nil {
				return
			}
			if err != nil {
				inner = err
				return
			}
			v, err := fromRaw(elem, edt)
			if err != nil {
				inner = err
				return
			}
			items = append(items, v)
		})
		if err != nil {
			return Value{}, fmt.Errorf("value: array: %w", err)
		}
		if inner != nil {
			return Value{}, inner
		}
		return Value{kind: KindArray, items: items}, nil
	case jsonparser.Object:
		b := NewObjectBuilder()
		err := jsonparser.ObjectEach(raw, func(key []byte, val []byte, vdt jsonparser.ValueType, _ int) error {
			k, err := jsonparser.ParseString(key)
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}
			v, err := fromRaw(val, vdt)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			b.Set(k, v)
			return nil
		})
		if err != nil {
			return Value{}, fmt.Errorf("value: object: %w", err)
		}
		return b.Build(), nil
	default:
		return Value{}, ErrNotJSON
	}
}
