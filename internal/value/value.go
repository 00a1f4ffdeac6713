// Package value defines the dynamically typed values that flow through filters,
// orderings, page cursors and SQL arguments.
package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrIncomparable is returned when two values of incompatible kinds are compared.
var ErrIncomparable = errors.New("incomparable values")

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindAny
	KindBool
	KindInt
	KindFloat
	KindString
	KindTimestamp
	KindRepeated
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindAny:
		return "any"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindRepeated:
		return "repeated"
	default:
		return "unknown"
	}
}

// Value is a tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	list []Value
}

func Null() Value                 { return Value{} }
func Any() Value                  { return Value{kind: KindAny} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

// Repeated wraps elements in a repeated value. The slice is copied.
func Repeated(elems ...Value) Value {
	list := make([]Value, len(elems))
	copy(list, elems)
	return Value{kind: KindRepeated, list: list}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload and whether v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload and whether v is an Int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the numeric payload as float64 for Int or Float values.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string payload and whether v is a String.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsTimestamp returns the time payload. A String holding an RFC 3339
// timestamp is accepted as well.
func (v Value) AsTimestamp() (time.Time, bool) {
	switch v.kind {
	case KindTimestamp:
		return v.t, true
	case KindString:
		t, err := ParseTimestamp(v.s)
		return t, err == nil
	}
	return time.Time{}, false
}

// Elems returns the elements of a Repeated value, or nil.
func (v Value) Elems() []Value {
	if v.kind != KindRepeated {
		return nil
	}
	return v.list
}

// ParseTimestamp parses RFC 3339 text into a UTC time.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Truthy reports the boolean interpretation of v used by global restrictions.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindAny:
		return true
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0 && !math.IsNaN(v.f)
	case KindString:
		return v.s != ""
	case KindTimestamp:
		return !v.t.IsZero()
	case KindRepeated:
		return len(v.list) > 0
	default:
		return false
	}
}

// Compare orders v against other and returns -1, 0 or 1.
// Int and Float compare numerically; a String compares against a Timestamp
// when it parses as RFC 3339. Any other kind mismatch returns ErrIncomparable.
func (v Value) Compare(other Value) (int, error) {
	switch {
	case v.kind == KindNull && other.kind == KindNull:
		return 0, nil
	case isNumeric(v.kind) && isNumeric(other.kind):
		switch {
		case v.kind == KindInt && other.kind == KindInt:
			return cmpOrdered(v.i, other.i), nil
		case v.kind == KindInt:
			return cmpIntFloat(v.i, other.f), nil
		case other.kind == KindInt:
			return -cmpIntFloat(other.i, v.f), nil
		}
		return cmpOrdered(v.f, other.f), nil
	case v.kind == KindTimestamp || other.kind == KindTimestamp:
		a, okA := v.AsTimestamp()
		b, okB := other.AsTimestamp()
		if !okA || !okB {
			break
		}
		return a.Compare(b), nil
	case v.kind != other.kind:
		break
	case v.kind == KindString:
		return strings.Compare(v.s, other.s), nil
	case v.kind == KindBool:
		if v.b == other.b {
			return 0, nil
		}
		if !v.b {
			return -1, nil
		}
		return 1, nil
	case v.kind == KindRepeated:
		return v.compareList(other)
	case v.kind == KindAny:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, v.kind, other.kind)
}

func (v Value) compareList(other Value) (int, error) {
	n := min(len(v.list), len(other.list))
	for i := 0; i < n; i++ {
		c, err := v.list[i].Compare(other.list[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmpOrdered(len(v.list), len(other.list)), nil
}

// Equal reports whether v and other compare equal. Incomparable values are unequal.
func (v Value) Equal(other Value) bool {
	c, err := v.Compare(other)
	return err == nil && c == 0
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

// cmpIntFloat compares i with f exactly. Converting i to float64 rounds
// above 2^53 and breaks transitivity.
func cmpIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= 1<<63:
		return -1
	case f < -(1 << 63):
		return 1
	}
	whole := math.Trunc(f)
	if c := cmpOrdered(i, int64(whole)); c != 0 {
		return c
	}
	return cmpOrdered(0, f-whole)
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String renders v in filter literal syntax.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindAny:
		return "*"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return Quote(v.s)
	case KindTimestamp:
		return Quote(v.t.Format(time.RFC3339Nano))
	case KindRepeated:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// formatFloat keeps a decimal point or exponent so the text re-parses as a Float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// Quote renders s as a double-quoted filter string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Driver converts v into an argument accepted by database/sql drivers.
func (v Value) Driver() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t
	case KindRepeated:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Driver()
		}
		return out
	}
	return nil
}

// Native converts v into plain Go values, used for JSON output.
func (v Value) Native() any {
	if v.kind == KindTimestamp {
		return v.t.Format(time.RFC3339Nano)
	}
	if v.kind == KindAny {
		return "*"
	}
	if v.kind == KindRepeated {
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Native()
		}
		return out
	}
	return v.Driver()
}

// FromNative converts decoded JSON/YAML data into a Value. Integral float64
// numbers become Int. Nested maps are not values and report false.
func FromNative(x any) (Value, bool) {
	switch n := x.(type) {
	case nil:
		return Null(), true
	case Value:
		return n, true
	case bool:
		return Bool(n), true
	case int:
		return Int(int64(n)), true
	case int32:
		return Int(int64(n)), true
	case int64:
		return Int(n), true
	case uint32:
		return Int(int64(n)), true
	case float32:
		return fromFloat(float64(n)), true
	case float64:
		return fromFloat(n), true
	case string:
		return String(n), true
	case time.Time:
		return Timestamp(n), true
	case []any:
		elems := make([]Value, 0, len(n))
		for _, e := range n {
			ev, ok := FromNative(e)
			if !ok {
				return Value{}, false
			}
			elems = append(elems, ev)
		}
		return Repeated(elems...), true
	case []string:
		elems := make([]Value, len(n))
		for i, e := range n {
			elems[i] = String(e)
		}
		return Repeated(elems...), true
	}
	return Value{}, false
}

func fromFloat(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}
