// Package validator checks parsed filters and orderings against a schema
// before they reach an evaluator or the SQL compiler.
package validator

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/value"
)

var (
	ErrUnknownField        = errors.New("unknown field")
	ErrDisallowedOperation = errors.New("disallowed operation")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrUnsupportedFunction = errors.New("unsupported function")
)

// Error describes a validation failure. It unwraps to one of the Err* kinds.
type Error struct {
	Kind  error
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Limits bounds the size of untrusted input. Zero means unlimited, except
// MaxDepth which falls back to filter.DefaultMaxDepth.
type Limits struct {
	MaxFilterLength   int
	MaxOrderingLength int
	MaxDepth          int
}

// Validator validates filters and orderings against a schema. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	schema *schema.Schema
	limits Limits
}

// New creates a validator for s.
func New(s *schema.Schema, limits Limits) *Validator {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = filter.DefaultMaxDepth
	}
	return &Validator{schema: s, limits: limits}
}

// Schema returns the schema the validator checks against.
func (v *Validator) Schema() *schema.Schema { return v.schema }

// Limits returns the effective limits.
func (v *Validator) Limits() Limits { return v.limits }

// CheckFilterText applies the length limit and a parenthesis nesting scan
// before any parsing work is done.
func (v *Validator) CheckFilterText(text string) error {
	if n := utf8.RuneCountInString(text); v.limits.MaxFilterLength > 0 && n > v.limits.MaxFilterLength {
		return newError(ErrLimitExceeded, "", "filter is %d characters, limit is %d", n, v.limits.MaxFilterLength)
	}
	if depth := nesting(text); depth > v.limits.MaxDepth {
		return newError(ErrLimitExceeded, "", "filter nests %d levels, limit is %d", depth, v.limits.MaxDepth)
	}
	return nil
}

// nesting returns the deepest parenthesis level outside string literals.
func nesting(text string) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inString && escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '(':
			depth++
			deepest = max(deepest, depth)
		case c == ')':
			depth--
		}
	}
	return deepest
}

// CheckOrderingText applies the ordering length limit.
func (v *Validator) CheckOrderingText(text string) error {
	if n := utf8.RuneCountInString(text); v.limits.MaxOrderingLength > 0 && n > v.limits.MaxOrderingLength {
		return newError(ErrLimitExceeded, "", "order_by is %d characters, limit is %d", n, v.limits.MaxOrderingLength)
	}
	return nil
}

// ParseFilter checks, parses and validates filter text.
func (v *Validator) ParseFilter(text string) (*filter.Filter, error) {
	if err := v.CheckFilterText(text); err != nil {
		return nil, err
	}
	f, err := filter.Parse(text, filter.WithMaxDepth(v.limits.MaxDepth))
	if err != nil {
		if errors.Is(err, filter.ErrDepthExceeded) {
			return nil, newError(ErrLimitExceeded, "", "%v", err)
		}
		return nil, err
	}
	if err := v.ValidateFilter(f); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseOrdering checks, parses and validates an order_by clause.
func (v *Validator) ParseOrdering(text string) (ordering.Ordering, error) {
	if err := v.CheckOrderingText(text); err != nil {
		return nil, err
	}
	o, err := ordering.Parse(text)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateOrdering(o); err != nil {
		return nil, err
	}
	return o, nil
}

// ValidateOrdering requires every term to name an orderable, non-boolean scalar field.
func (v *Validator) ValidateOrdering(o ordering.Ordering) error {
	for _, t := range o {
		f, ok := v.schema.Field(t.Name)
		if !ok {
			return newError(ErrUnknownField, t.Name, "not in schema")
		}
		if !f.Orderable || f.Repeated {
			return newError(ErrDisallowedOperation, t.Name, "field is not orderable")
		}
		// keyset cursors need < and > on every ordered field
		if f.Type == value.TypeBoolean {
			return newError(ErrDisallowedOperation, t.Name, "boolean fields cannot be ordered")
		}
	}
	return nil
}

// ValidateFilter walks f and reports the first violation.
func (v *Validator) ValidateFilter(f *filter.Filter) error {
	if f.IsEmpty() {
		return nil
	}
	if err := v.validateExpr(f.Root); err != nil {
		log.Debug(log.CatFilter, "filter rejected", "filter", f.String(), "error", err)
		return err
	}
	return nil
}

// ValidateCursor checks a keyset cursor decoded from a page token. Cursors
// compare ordering fields against literals of the field's type, so fields
// only need to be orderable, not filterable.
func (v *Validator) ValidateCursor(f *filter.Filter, o ordering.Ordering) error {
	if f.IsEmpty() {
		return newError(ErrDisallowedOperation, "", "empty cursor")
	}
	if err := v.validateCursorExpr(f.Root, o); err != nil {
		log.Debug(log.CatFilter, "cursor rejected", "cursor", f.String(), "error", err)
		return err
	}
	return nil
}

func (v *Validator) validateCursorExpr(expr filter.Expr, o ordering.Ordering) error {
	switch e := expr.(type) {
	case *filter.Conjunction:
		for _, t := range e.Terms {
			if err := v.validateCursorExpr(t, o); err != nil {
				return err
			}
		}
		return nil
	case *filter.Disjunction:
		for _, t := range e.Terms {
			if err := v.validateCursorExpr(t, o); err != nil {
				return err
			}
		}
		return nil
	case *filter.Composite:
		return v.validateCursorExpr(e.Expr, o)
	case *filter.Restriction:
		return v.validateCursorRestriction(e, o)
	}
	return newError(ErrDisallowedOperation, "", "unexpected cursor expression %q", expr.String())
}

func (v *Validator) validateCursorRestriction(r *filter.Restriction, o ordering.Ordering) error {
	name, ok := r.Comparable.(*filter.Name)
	if !ok {
		return newError(ErrDisallowedOperation, "", "cursor restriction %q must start with a field", r.String())
	}
	if !o.Contains(name.Path) {
		return newError(ErrDisallowedOperation, name.Path, "cursor names a field outside the ordering")
	}
	switch r.Comparator {
	case filter.ComparatorEq, filter.ComparatorLt, filter.ComparatorLte, filter.ComparatorGt, filter.ComparatorGte:
	default:
		return newError(ErrDisallowedOperation, name.Path, "%s is not a cursor comparator", r.Comparator)
	}
	lit, ok := r.Arg.(*filter.Literal)
	if !ok {
		return newError(ErrDisallowedOperation, name.Path, "cursor must compare against a literal")
	}
	f, ok := v.schema.Field(name.Path)
	if !ok {
		return newError(ErrUnknownField, name.Path, "not in schema")
	}
	if !f.Orderable || f.Repeated {
		return newError(ErrDisallowedOperation, name.Path, "field is not orderable")
	}
	return compatible(operand{name: name.Path, typ: f.Type}, operand{typ: lit.Value.Type(), lit: &lit.Value})
}

func (v *Validator) validateExpr(expr filter.Expr) error {
	switch e := expr.(type) {
	case *filter.Conjunction:
		for _, t := range e.Terms {
			if err := v.validateExpr(t); err != nil {
				return err
			}
		}
	case *filter.Disjunction:
		for _, t := range e.Terms {
			if err := v.validateExpr(t); err != nil {
				return err
			}
		}
	case *filter.Negation:
		return v.validateExpr(e.Expr)
	case *filter.Composite:
		return v.validateExpr(e.Expr)
	case *filter.Restriction:
		return v.validateRestriction(e)
	default:
		return newError(ErrDisallowedOperation, "", "unexpected expression %T", expr)
	}
	return nil
}

// operand is the static description of one side of a restriction.
type operand struct {
	name     string
	typ      value.Type
	repeated bool
	lit      *value.Value
}

func (o operand) label() string {
	if o.name != "" {
		return o.name
	}
	if o.lit != nil {
		return o.lit.String()
	}
	return ""
}

func (o operand) isBoolean() bool {
	if o.lit != nil {
		return o.lit.Kind() == value.KindBool
	}
	return o.typ == value.TypeBoolean
}

func (v *Validator) validateRestriction(r *filter.Restriction) error {
	lhs, err := v.describe(r.Comparable)
	if err != nil {
		return err
	}

	switch r.Comparator {
	case filter.ComparatorNone:
		return v.validateGlobal(lhs)
	case filter.ComparatorHas:
		return v.validateHas(lhs, r.Arg)
	}

	comp, ok := r.Arg.(filter.Comparable)
	if !ok {
		return newError(ErrDisallowedOperation, lhs.label(), "a parenthesized argument is only allowed with ':'")
	}
	rhs, err := v.describe(comp)
	if err != nil {
		return err
	}
	for _, side := range []operand{lhs, rhs} {
		if side.lit != nil && side.lit.Kind() == value.KindAny {
			return newError(ErrDisallowedOperation, lhs.label(), "'*' is only allowed with ':'")
		}
		if side.repeated {
			return newError(ErrDisallowedOperation, side.label(), "repeated fields only support ':'")
		}
		if r.Comparator.IsOrdering() && side.isBoolean() {
			return newError(ErrDisallowedOperation, side.label(), "%s is not defined for booleans", r.Comparator)
		}
	}
	return compatible(lhs, rhs)
}

// validateGlobal accepts literals and boolean-typed names and calls.
func (v *Validator) validateGlobal(o operand) error {
	if o.lit != nil {
		return nil
	}
	if o.repeated || (o.typ != value.TypeBoolean && o.typ != value.TypeAny) {
		return newError(ErrTypeMismatch, o.label(), "a bare restriction must be boolean, got %s", o.typ)
	}
	return nil
}

func (v *Validator) validateHas(lhs operand, arg filter.Arg) error {
	if c, ok := arg.(*filter.Composite); ok {
		return v.validateMembers(lhs, c.Expr)
	}
	comp, ok := arg.(filter.Comparable)
	if !ok {
		return newError(ErrDisallowedOperation, lhs.label(), "unexpected argument %T", arg)
	}
	rhs, err := v.describe(comp)
	if err != nil {
		return err
	}
	if rhs.lit != nil && rhs.lit.Kind() == value.KindAny {
		return nil
	}
	if rhs.repeated {
		return newError(ErrDisallowedOperation, rhs.label(), "repeated fields cannot be a ':' argument")
	}
	// membership compares against the element type
	elem := lhs
	elem.repeated = false
	return compatible(elem, rhs)
}

// validateMembers checks a composite ':' argument such as ("a" OR "b").
func (v *Validator) validateMembers(lhs operand, expr filter.Expr) error {
	switch e := expr.(type) {
	case *filter.Conjunction:
		for _, t := range e.Terms {
			if err := v.validateMembers(lhs, t); err != nil {
				return err
			}
		}
		return nil
	case *filter.Disjunction:
		for _, t := range e.Terms {
			if err := v.validateMembers(lhs, t); err != nil {
				return err
			}
		}
		return nil
	case *filter.Negation:
		return v.validateMembers(lhs, e.Expr)
	case *filter.Composite:
		return v.validateMembers(lhs, e.Expr)
	case *filter.Restriction:
		if e.Comparator == filter.ComparatorNone {
			return v.validateHas(lhs, e.Comparable.(filter.Arg))
		}
	}
	return newError(ErrDisallowedOperation, lhs.label(), "%q is not a list of values", expr.String())
}

// describe resolves the static type of a comparable.
func (v *Validator) describe(c filter.Comparable) (operand, error) {
	switch x := c.(type) {
	case *filter.Literal:
		val := x.Value
		return operand{typ: val.Type(), lit: &val}, nil

	case *filter.Name:
		f, ok := v.schema.Field(x.Path)
		if !ok {
			return operand{}, newError(ErrUnknownField, x.Path, "not in schema")
		}
		if !f.Filterable {
			return operand{}, newError(ErrDisallowedOperation, x.Path, "field is not filterable")
		}
		return operand{name: x.Path, typ: f.Type, repeated: f.Repeated}, nil

	case *filter.Function:
		fs, ok := v.schema.Function(x.Name)
		if !ok {
			return operand{}, newError(ErrUnsupportedFunction, x.Name, "not in schema")
		}
		if len(x.Args) != len(fs.Args) {
			return operand{}, newError(ErrTypeMismatch, x.Name, "takes %d arguments, got %d", len(fs.Args), len(x.Args))
		}
		for i, a := range x.Args {
			arg, err := v.describe(a)
			if err != nil {
				return operand{}, err
			}
			if arg.repeated {
				return operand{}, newError(ErrTypeMismatch, x.Name, "argument %d is repeated", i+1)
			}
			if err := compatible(operand{name: x.Name, typ: fs.Args[i]}, arg); err != nil {
				return operand{}, err
			}
		}
		return operand{name: x.Name, typ: fs.Returns}, nil
	}
	return operand{}, newError(ErrDisallowedOperation, "", "unexpected comparable %T", c)
}

// compatible reports whether two operands may be compared.
func compatible(a, b operand) error {
	var ok bool
	switch {
	case a.lit != nil && b.lit != nil:
		_, err := a.lit.Compare(*b.lit)
		ok = err == nil
	case b.lit != nil:
		ok = a.typ.Accepts(*b.lit)
	case a.lit != nil:
		ok = b.typ.Accepts(*a.lit)
	default:
		ok = a.typ == b.typ || a.typ == value.TypeAny || b.typ == value.TypeAny ||
			(isNumber(a.typ) && isNumber(b.typ))
	}
	if !ok {
		field := a.name
		if field == "" {
			field = b.name
		}
		return newError(ErrTypeMismatch, field, "cannot compare %s with %s", describeType(a), describeType(b))
	}
	return nil
}

func describeType(o operand) string {
	if o.lit != nil {
		return o.lit.Kind().String() + " " + o.lit.String()
	}
	return o.typ.String()
}

func isNumber(t value.Type) bool {
	return t == value.TypeInteger || t == value.TypeFloat
}
