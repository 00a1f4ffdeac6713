package filter

import (
	"fmt"
	"strings"

	"github.com/zjrosen/aipq/internal/value"
)

// FieldResolver exposes the fields of a record to the evaluator.
// Resolve returns false when the path is absent on the record.
type FieldResolver interface {
	Resolve(path string) (value.Value, bool)
}

// ResolverFunc adapts a function to FieldResolver.
type ResolverFunc func(path string) (value.Value, bool)

func (f ResolverFunc) Resolve(path string) (value.Value, bool) { return f(path) }

// MapResolver resolves dotted paths against nested maps such as decoded JSON.
// A key containing the full dotted path takes precedence over nesting.
type MapResolver map[string]any

func (m MapResolver) Resolve(path string) (value.Value, bool) {
	if raw, ok := m[path]; ok {
		return value.FromNative(raw)
	}
	var cur any = map[string]any(m)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return value.Value{}, false
		}
		if cur, ok = obj[seg]; !ok {
			return value.Value{}, false
		}
	}
	return value.FromNative(cur)
}

// Evaluator evaluates filters against records. It is safe for concurrent use.
type Evaluator struct {
	functions Functions
}

// NewEvaluator returns an evaluator that may call the given functions.
func NewEvaluator(functions Functions) *Evaluator {
	return &Evaluator{functions: functions}
}

// Evaluate computes the value of f for the record. The empty filter is true.
func (e *Evaluator) Evaluate(f *Filter, r FieldResolver) (value.Value, error) {
	if f.IsEmpty() {
		return value.Bool(true), nil
	}
	return e.evalExpr(f.Root, r)
}

// Matches evaluates f and requires a boolean result.
func (e *Evaluator) Matches(f *Filter, r FieldResolver) (bool, error) {
	v, err := e.Evaluate(f, r)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("%w: filter produced %s, want bool", ErrTypeMismatch, v.Kind())
	}
	return b, nil
}

func (e *Evaluator) evalExpr(expr Expr, r FieldResolver) (value.Value, error) {
	switch x := expr.(type) {
	case *Conjunction:
		for _, t := range x.Terms {
			b, err := e.evalBool(t, r)
			if err != nil || !b {
				return value.Bool(false), err
			}
		}
		return value.Bool(true), nil

	case *Disjunction:
		for _, t := range x.Terms {
			b, err := e.evalBool(t, r)
			if err != nil || b {
				return value.Bool(b), err
			}
		}
		return value.Bool(false), nil

	case *Negation:
		b, err := e.evalBool(x.Expr, r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!b), nil

	case *Composite:
		return e.evalExpr(x.Expr, r)

	case *Restriction:
		return e.evalRestriction(x, r)
	}
	return value.Value{}, fmt.Errorf("%w: unknown expression %T", ErrTypeMismatch, expr)
}

func (e *Evaluator) evalBool(expr Expr, r FieldResolver) (bool, error) {
	v, err := e.evalExpr(expr, r)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("%w: %q is %s, want bool", ErrTypeMismatch, expr.String(), v.Kind())
	}
	return b, nil
}

func (e *Evaluator) evalRestriction(x *Restriction, r FieldResolver) (value.Value, error) {
	lhs, present, err := e.evalComparable(x.Comparable, r)
	if err != nil {
		return value.Value{}, err
	}
	// absent fields never match
	if !present {
		return value.Bool(false), nil
	}

	switch x.Comparator {
	case ComparatorNone:
		return value.Bool(lhs.Truthy()), nil
	case ComparatorHas:
		b, err := e.has(lhs, x.Arg, r)
		return value.Bool(b), err
	}

	comp, ok := x.Arg.(Comparable)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: composite argument requires ':'", ErrTypeMismatch)
	}
	rhs, present, err := e.evalComparable(comp, r)
	if err != nil || !present {
		return value.Bool(false), err
	}
	if rhs.Kind() == value.KindAny {
		return value.Value{}, fmt.Errorf("%w: '*' only valid with ':'", ErrTypeMismatch)
	}

	c, err := lhs.Compare(rhs)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, x.Comparable, x.Comparator, x.Arg)
	}
	return value.Bool(compareResult(x.Comparator, c)), nil
}

func compareResult(op Comparator, c int) bool {
	switch op {
	case ComparatorEq:
		return c == 0
	case ComparatorNeq:
		return c != 0
	case ComparatorLt:
		return c < 0
	case ComparatorLte:
		return c <= 0
	case ComparatorGt:
		return c > 0
	case ComparatorGte:
		return c >= 0
	}
	return false
}

// has implements ':'. A '*' argument tests presence, repeated fields test
// membership, strings test containment and other scalars test equality.
// Composite arguments combine members with the composite's AND/OR.
func (e *Evaluator) has(lhs value.Value, arg Node, r FieldResolver) (bool, error) {
	if c, ok := arg.(*Composite); ok {
		return e.hasExpr(lhs, c.Expr, r)
	}
	comp, ok := arg.(Comparable)
	if !ok {
		return false, fmt.Errorf("%w: invalid argument %T", ErrTypeMismatch, arg)
	}
	rhs, present, err := e.evalComparable(comp, r)
	if err != nil || !present {
		return false, err
	}
	return hasValue(lhs, rhs), nil
}

func (e *Evaluator) hasExpr(lhs value.Value, expr Expr, r FieldResolver) (bool, error) {
	switch x := expr.(type) {
	case *Conjunction:
		for _, t := range x.Terms {
			ok, err := e.hasExpr(lhs, t, r)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *Disjunction:
		for _, t := range x.Terms {
			ok, err := e.hasExpr(lhs, t, r)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case *Negation:
		ok, err := e.hasExpr(lhs, x.Expr, r)
		return !ok && err == nil, err
	case *Composite:
		return e.hasExpr(lhs, x.Expr, r)
	case *Restriction:
		if x.Comparator == ComparatorNone {
			return e.has(lhs, x.Comparable, r)
		}
	}
	return false, fmt.Errorf("%w: %q is not a member list", ErrTypeMismatch, expr.String())
}

func hasValue(lhs, rhs value.Value) bool {
	if rhs.Kind() == value.KindAny {
		if lhs.Kind() == value.KindRepeated {
			return len(lhs.Elems()) > 0
		}
		return true
	}
	if lhs.Kind() == value.KindRepeated {
		for _, elem := range lhs.Elems() {
			if elem.Equal(rhs) {
				return true
			}
		}
		return false
	}
	if ls, ok := lhs.AsString(); ok {
		if rs, ok := rhs.AsString(); ok {
			return strings.Contains(ls, rs)
		}
	}
	return lhs.Equal(rhs)
}

// evalComparable returns the value and whether it is present. Absent or null
// fields, and calls with absent arguments, are not present.
func (e *Evaluator) evalComparable(c Comparable, r FieldResolver) (value.Value, bool, error) {
	switch x := c.(type) {
	case *Literal:
		return x.Value, true, nil

	case *Name:
		if r == nil {
			return value.Value{}, false, nil
		}
		v, ok := r.Resolve(x.Path)
		if !ok || v.IsNull() {
			return value.Value{}, false, nil
		}
		return v, true, nil

	case *Function:
		fn, ok := e.functions[x.Name]
		if !ok {
			return value.Value{}, false, fmt.Errorf("%w: %s", ErrUnsupportedFunction, x.Name)
		}
		args := make([]value.Value, len(x.Args))
		for i, a := range x.Args {
			v, present, err := e.evalComparable(a, r)
			if err != nil || !present {
				return value.Value{}, false, err
			}
			args[i] = v
		}
		v, err := fn.Call(args)
		if err != nil {
			return value.Value{}, false, fmt.Errorf("%s: %w", x.Name, err)
		}
		return v, true, nil
	}
	return value.Value{}, false, fmt.Errorf("%w: unknown comparable %T", ErrTypeMismatch, c)
}
