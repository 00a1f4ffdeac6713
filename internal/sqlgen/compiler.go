// Package sqlgen compiles validated filters and orderings into
// parameterized SQL. Literals are always bound, never inlined.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/metrics"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/validator"
	"github.com/zjrosen/aipq/internal/value"
)

// Fragment is compiled SQL with its arguments in placeholder order.
type Fragment struct {
	SQL  string
	Args []value.Value
}

// DriverArgs converts Args for database/sql.
func (f Fragment) DriverArgs() []any {
	return driverArgs(f.Args)
}

func driverArgs(args []value.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Driver()
	}
	return out
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRenameMap maps schema paths to table aliases and columns.
func WithRenameMap(m schema.RenameMap) Option {
	return func(c *Compiler) { c.renames = m }
}

// WithArgumentOffset starts placeholder numbering after n existing arguments.
func WithArgumentOffset(n int) Option {
	return func(c *Compiler) { c.offset = n }
}

// WithCaseInsensitiveLike makes substring, prefix and suffix matches fold case.
func WithCaseInsensitiveLike() Option {
	return func(c *Compiler) { c.fold = true }
}

// WithSearchFields lists the string fields matched by a search query.
func WithSearchFields(paths ...string) Option {
	return func(c *Compiler) { c.searchFields = paths }
}

// Compiler renders filters for one dialect and schema. It is safe for
// concurrent use.
type Compiler struct {
	dialect      Dialect
	schema       *schema.Schema
	renames      schema.RenameMap
	offset       int
	fold         bool
	searchFields []string
}

// NewCompiler creates a compiler. Filters must already be validated
// against s.
func NewCompiler(d Dialect, s *schema.Schema, opts ...Option) *Compiler {
	c := &Compiler{dialect: d, schema: s}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the target dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Compile renders f as a WHERE condition. The empty filter compiles to "".
func (c *Compiler) Compile(f *filter.Filter) (Fragment, error) {
	frag, err := c.compile(f, c.renames, c.offset)
	c.record(err)
	return frag, err
}

func (c *Compiler) record(err error) {
	metrics.SQLCompiles.WithLabelValues(c.dialect.name, metrics.Status(err, false)).Inc()
	if err != nil {
		log.Debug(log.CatSQL, "compile failed", "dialect", c.dialect.name, "error", err)
	}
}

func (c *Compiler) compile(f *filter.Filter, renames schema.RenameMap, offset int) (Fragment, error) {
	if f.IsEmpty() {
		return Fragment{}, nil
	}
	s := &state{Compiler: c, renames: renames, b: &Binder{dialect: c.dialect, offset: offset}}
	sql, err := s.expr(f.Root)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: sql, Args: s.b.args}, nil
}

// CompileOrdering renders an ORDER BY list.
func (c *Compiler) CompileOrdering(o ordering.Ordering) string {
	return c.compileOrdering(o, c.renames)
}

func (c *Compiler) compileOrdering(o ordering.Ordering, renames schema.RenameMap) string {
	parts := make([]string, len(o))
	for i, t := range o {
		dir := "ASC"
		if t.Direction == ordering.Descending {
			dir = "DESC"
		}
		parts[i] = c.column(t.Name, renames) + " " + dir
	}
	return strings.Join(parts, ", ")
}

// column quotes each segment of the renamed path.
func (c *Compiler) column(path string, renames schema.RenameMap) string {
	segments := renames.Rename(path)
	for i, seg := range segments {
		segments[i] = c.dialect.QuoteIdent(seg)
	}
	return strings.Join(segments, ".")
}

// state is the per-call compilation state.
type state struct {
	*Compiler
	renames schema.RenameMap
	b       *Binder
}

func (s *state) expr(e filter.Expr) (string, error) {
	switch x := e.(type) {
	case *filter.Conjunction:
		return s.join(x.Terms, " AND ", true)
	case *filter.Disjunction:
		return s.join(x.Terms, " OR ", false)
	case *filter.Negation:
		inner, err := s.expr(x.Expr)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case *filter.Composite:
		inner, err := s.expr(x.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *filter.Restriction:
		return s.restriction(x)
	}
	return "", fmt.Errorf("unexpected expression %T", e)
}

func (s *state) join(terms []filter.Expr, sep string, wrapOr bool) (string, error) {
	if len(terms) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		sql, err := s.expr(t)
		if err != nil {
			return "", err
		}
		if _, ok := t.(*filter.Disjunction); ok && wrapOr {
			sql = "(" + sql + ")"
		}
		parts[i] = sql
	}
	return strings.Join(parts, sep), nil
}

func (s *state) restriction(r *filter.Restriction) (string, error) {
	switch r.Comparator {
	case filter.ComparatorNone:
		return s.global(r.Comparable)
	case filter.ComparatorHas:
		return s.has(r)
	}

	var lhsType, rhsType value.Type
	if n, ok := r.Comparable.(*filter.Name); ok {
		lhsType = s.fieldType(n.Path)
	}
	rhs, ok := r.Arg.(filter.Comparable)
	if !ok {
		return "", fmt.Errorf("%w: %s takes a single value", ErrUnsupportedForDialect, r.Comparator)
	}
	if n, ok := rhs.(*filter.Name); ok {
		rhsType = s.fieldType(n.Path)
	}

	left, err := s.operand(r.Comparable, rhsType)
	if err != nil {
		return "", err
	}
	right, err := s.operand(rhs, lhsType)
	if err != nil {
		return "", err
	}
	return left + " " + sqlOperator(r.Comparator) + " " + right, nil
}

// operand is comparable with function calls parenthesized, since dialects
// disagree on the precedence of LIKE and comparison operators.
func (s *state) operand(c filter.Comparable, peer value.Type) (string, error) {
	sql, err := s.comparable(c, peer)
	if err != nil {
		return "", err
	}
	if _, ok := c.(*filter.Function); ok {
		sql = "(" + sql + ")"
	}
	return sql, nil
}

func sqlOperator(op filter.Comparator) string {
	if op == filter.ComparatorNeq {
		return "<>"
	}
	return op.String()
}

func (s *state) fieldType(path string) value.Type {
	f, _ := s.schema.Field(path)
	return f.Type
}

// global renders a bare comparable used as a condition.
func (s *state) global(c filter.Comparable) (string, error) {
	if lit, ok := c.(*filter.Literal); ok {
		if lit.Value.Truthy() {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	return s.comparable(c, value.TypeAny)
}

// comparable renders a column, a function call or a bound literal. Literals
// are coerced to the type of the field they are compared with.
func (s *state) comparable(c filter.Comparable, peer value.Type) (string, error) {
	switch x := c.(type) {
	case *filter.Name:
		if _, ok := s.schema.Field(x.Path); !ok {
			return "", fmt.Errorf("%w: %s", validator.ErrUnknownField, x.Path)
		}
		return s.column(x.Path, s.renames), nil
	case *filter.Literal:
		return s.b.Bind(peer.Coerce(x.Value)), nil
	case *filter.Function:
		return s.function(x)
	}
	return "", fmt.Errorf("unexpected comparable %T", c)
}

func (s *state) has(r *filter.Restriction) (string, error) {
	n, ok := r.Comparable.(*filter.Name)
	if !ok {
		return "", fmt.Errorf("%w: has on %s", ErrUnsupportedForDialect, r.Comparable)
	}
	field, ok := s.schema.Field(n.Path)
	if !ok {
		return "", fmt.Errorf("%w: %s", validator.ErrUnknownField, n.Path)
	}
	col := s.column(n.Path, s.renames)

	if lit, ok := r.Arg.(*filter.Literal); ok && lit.Value.Kind() == value.KindAny {
		if field.Repeated {
			return s.dialect.nonEmpty(col), nil
		}
		return col + " IS NOT NULL", nil
	}
	return s.member(col, field, r.Arg)
}

// member renders one has argument, recursing through composites.
func (s *state) member(col string, field schema.FieldMemberSchema, arg filter.Node) (string, error) {
	switch x := arg.(type) {
	case *filter.Composite:
		inner, err := s.member(col, field, x.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *filter.Conjunction:
		return s.members(col, field, x.Terms, " AND ")
	case *filter.Disjunction:
		return s.members(col, field, x.Terms, " OR ")
	case *filter.Negation:
		inner, err := s.member(col, field, x.Expr)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case *filter.Restriction:
		if x.Comparator == filter.ComparatorNone {
			return s.member(col, field, x.Comparable)
		}
	case *filter.Literal:
		v := field.Type.Coerce(x.Value)
		switch {
		case field.Repeated:
			return s.dialect.member(col, s.b.Bind(v)), nil
		case v.Kind() == value.KindString:
			str, _ := v.AsString()
			return s.dialect.match(col, s.b.Bind(value.String(s.dialect.pattern(str, matchContains, s.fold))), s.fold), nil
		default:
			return col + " = " + s.b.Bind(v), nil
		}
	}
	return "", fmt.Errorf("%w: has argument %s", ErrUnsupportedForDialect, arg)
}

func (s *state) members(col string, field schema.FieldMemberSchema, terms []filter.Expr, sep string) (string, error) {
	parts := make([]string, len(terms))
	for i, t := range terms {
		sql, err := s.member(col, field, t)
		if err != nil {
			return "", err
		}
		if _, ok := t.(*filter.Disjunction); ok && sep == " AND " {
			sql = "(" + sql + ")"
		}
		parts[i] = sql
	}
	return strings.Join(parts, sep), nil
}

func (s *state) function(f *filter.Function) (string, error) {
	args := make([]Operand, len(f.Args))
	for i, a := range f.Args {
		switch x := a.(type) {
		case *filter.Literal:
			args[i] = Operand{Literal: x.Value, IsLiteral: true}
		default:
			sql, err := s.comparable(a, value.TypeAny)
			if err != nil {
				return "", err
			}
			args[i] = Operand{SQL: sql}
		}
	}

	if rule, ok := s.dialect.functions[f.Name]; ok {
		return rule(s.b, args)
	}
	switch f.Name {
	case "regex":
		if s.dialect.regex == nil || len(args) != 2 {
			break
		}
		return s.dialect.regex(args[0].Render(s.b), args[1].Render(s.b)), nil
	case "startsWith", "endsWith":
		if len(args) != 2 || !args[1].IsLiteral {
			break
		}
		str, ok := args[1].Literal.AsString()
		if !ok {
			break
		}
		kind := matchPrefix
		if f.Name == "endsWith" {
			kind = matchSuffix
		}
		col := args[0].Render(s.b)
		return s.dialect.match(col, s.b.Bind(value.String(s.dialect.pattern(str, kind, s.fold))), s.fold), nil
	}
	return "", fmt.Errorf("%w: function %s on %s", ErrUnsupportedForDialect, f.Name, s.dialect.name)
}
