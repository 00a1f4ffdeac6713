package value

import (
	"fmt"
	"strings"
)

// Type is a declared field or function type in a schema.
type Type int

const (
	TypeAny Type = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeString
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "any"
	}
}

// ParseType converts a schema descriptor name to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "int64":
		return TypeInteger, nil
	case "float", "double", "number":
		return TypeFloat, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "string":
		return TypeString, nil
	case "timestamp", "time":
		return TypeTimestamp, nil
	case "any", "":
		return TypeAny, nil
	}
	return TypeAny, fmt.Errorf("unknown type %q", s)
}

// Accepts reports whether a scalar value of kind k may stand in for type t.
// Int is accepted for Float and an RFC 3339 string for Timestamp.
func (t Type) Accepts(v Value) bool {
	switch t {
	case TypeAny:
		return true
	case TypeInteger:
		return v.kind == KindInt
	case TypeFloat:
		return v.kind == KindFloat || v.kind == KindInt
	case TypeBoolean:
		return v.kind == KindBool
	case TypeString:
		return v.kind == KindString
	case TypeTimestamp:
		_, ok := v.AsTimestamp()
		return ok
	}
	return false
}

// Coerce converts v to the canonical representation of t where Accepts holds.
// Values that cannot be coerced are returned unchanged.
func (t Type) Coerce(v Value) Value {
	switch t {
	case TypeFloat:
		if v.kind == KindInt {
			return Float(float64(v.i))
		}
	case TypeTimestamp:
		if v.kind == KindString {
			if ts, ok := v.AsTimestamp(); ok {
				return Timestamp(ts)
			}
		}
	}
	return v
}

// Type returns the schema type matching v's kind. Null, Any and Repeated map to TypeAny.
func (v Value) Type() Type {
	switch v.kind {
	case KindInt:
		return TypeInteger
	case KindFloat:
		return TypeFloat
	case KindBool:
		return TypeBoolean
	case KindString:
		return TypeString
	case KindTimestamp:
		return TypeTimestamp
	}
	return TypeAny
}

// UnmarshalText lets Type be decoded from config and YAML schema files.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText renders the descriptor name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
