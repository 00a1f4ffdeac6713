package filter

import "github.com/zjrosen/aipq/internal/value"

// Node is the interface for all AST nodes.
type Node interface {
	node()
	String() string
}

// Expr is the interface for boolean expression nodes.
type Expr interface {
	Node
	expr()
}

// Comparable is the left side of a restriction: a name, a literal or a call.
// Every comparable is also a valid Arg.
type Comparable interface {
	Arg
	comparable()
}

// Arg is the right side of a restriction: a comparable or a composite.
type Arg interface {
	Node
	arg()
}

// Comparator is a restriction operator.
type Comparator int

const (
	ComparatorNone Comparator = iota // global restriction
	ComparatorEq
	ComparatorNeq
	ComparatorLt
	ComparatorLte
	ComparatorGt
	ComparatorGte
	ComparatorHas
)

func (c Comparator) String() string {
	switch c {
	case ComparatorEq:
		return "="
	case ComparatorNeq:
		return "!="
	case ComparatorLt:
		return "<"
	case ComparatorLte:
		return "<="
	case ComparatorGt:
		return ">"
	case ComparatorGte:
		return ">="
	case ComparatorHas:
		return ":"
	default:
		return ""
	}
}

// IsOrdering reports whether c is < <= > or >=.
func (c Comparator) IsOrdering() bool {
	return c >= ComparatorLt && c <= ComparatorGte
}

func comparatorFor(t TokenType) Comparator {
	switch t {
	case TokenEq:
		return ComparatorEq
	case TokenNeq:
		return ComparatorNeq
	case TokenLt:
		return ComparatorLt
	case TokenLte:
		return ComparatorLte
	case TokenGt:
		return ComparatorGt
	case TokenGte:
		return ComparatorGte
	case TokenHas:
		return ComparatorHas
	}
	return ComparatorNone
}

// Conjunction is "a AND b" or the implicit AND of a sequence "a b".
// An empty conjunction is the empty filter and matches everything.
type Conjunction struct {
	Terms []Expr
}

func (*Conjunction) node() {}
func (*Conjunction) expr() {}

// Disjunction is "a OR b".
type Disjunction struct {
	Terms []Expr
}

func (*Disjunction) node() {}
func (*Disjunction) expr() {}

// Negation is "NOT x" or "-x".
type Negation struct {
	Expr  Expr
	Minus bool
}

func (*Negation) node() {}
func (*Negation) expr() {}

// Restriction is "comparable op arg", or a bare comparable when Comparator is None.
type Restriction struct {
	Comparable Comparable
	Comparator Comparator
	Arg        Arg
}

func (*Restriction) node() {}
func (*Restriction) expr() {}

// Composite is a parenthesized expression.
type Composite struct {
	Expr Expr
}

func (*Composite) node() {}
func (*Composite) expr() {}
func (*Composite) arg()  {}

// Name is a dotted field path.
type Name struct {
	Path string
}

func (*Name) node()       {}
func (*Name) comparable() {}
func (*Name) arg()        {}

// Literal is a constant value: string, number, boolean or the * wildcard.
type Literal struct {
	Value value.Value
}

func (*Literal) node()       {}
func (*Literal) comparable() {}
func (*Literal) arg()        {}

// Function is a call such as regex(title, "^a").
type Function struct {
	Name string
	Args []Comparable
}

func (*Function) node()       {}
func (*Function) comparable() {}
func (*Function) arg()        {}

// Filter is a parsed filter. Trees are never mutated after parsing.
type Filter struct {
	Root Expr
}

// Empty returns the filter that matches everything.
func Empty() *Filter {
	return &Filter{Root: &Conjunction{}}
}

// IsEmpty reports whether f has no restrictions.
func (f *Filter) IsEmpty() bool {
	if f == nil || f.Root == nil {
		return true
	}
	c, ok := f.Root.(*Conjunction)
	return ok && len(c.Terms) == 0
}

// And returns a filter matching both a and b. Neither input is modified.
func And(a, b *Filter) *Filter {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return Empty()
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}
	terms := append(conjunctionTerms(a.Root), conjunctionTerms(b.Root)...)
	return &Filter{Root: &Conjunction{Terms: terms}}
}

func conjunctionTerms(e Expr) []Expr {
	if c, ok := e.(*Conjunction); ok {
		out := make([]Expr, len(c.Terms))
		copy(out, c.Terms)
		return out
	}
	return []Expr{e}
}

// Or returns a filter matching a or b. An empty input matches everything,
// so the result is empty too. Neither input is modified.
func Or(a, b *Filter) *Filter {
	if a.IsEmpty() || b.IsEmpty() {
		return Empty()
	}
	terms := append(disjunctionTerms(a.Root), disjunctionTerms(b.Root)...)
	return &Filter{Root: &Disjunction{Terms: terms}}
}

// disjunctionTerms splits e into OR terms. OR binds tighter than AND, so a
// conjunction is grouped to keep its meaning.
func disjunctionTerms(e Expr) []Expr {
	switch x := e.(type) {
	case *Disjunction:
		out := make([]Expr, len(x.Terms))
		copy(out, x.Terms)
		return out
	case *Conjunction:
		if len(x.Terms) == 1 {
			return disjunctionTerms(x.Terms[0])
		}
		return []Expr{&Composite{Expr: x}}
	}
	return []Expr{e}
}

// Len counts the nodes in the tree.
func (f *Filter) Len() int {
	if f == nil || f.Root == nil {
		return 0
	}
	n := 0
	Walk(f.Root, func(Node) bool {
		n++
		return true
	})
	return n
}

// Names returns the distinct field paths referenced by f in order of appearance.
func (f *Filter) Names() []string {
	if f == nil || f.Root == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	Walk(f.Root, func(n Node) bool {
		if name, ok := n.(*Name); ok && !seen[name.Path] {
			seen[name.Path] = true
			names = append(names, name.Path)
		}
		return true
	})
	return names
}

// Walk visits n and its children depth first. Returning false from fn skips
// the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch e := n.(type) {
	case *Conjunction:
		for _, t := range e.Terms {
			Walk(t, fn)
		}
	case *Disjunction:
		for _, t := range e.Terms {
			Walk(t, fn)
		}
	case *Negation:
		Walk(e.Expr, fn)
	case *Composite:
		Walk(e.Expr, fn)
	case *Restriction:
		Walk(e.Comparable, fn)
		if e.Arg != nil {
			Walk(e.Arg, fn)
		}
	case *Function:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	}
}
