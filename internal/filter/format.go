package filter

import "strings"

// String renders the canonical filter text. Parsing the result yields an
// equivalent tree.
func (f *Filter) String() string {
	if f == nil || f.Root == nil {
		return ""
	}
	return f.Root.String()
}

func (c *Conjunction) String() string {
	return joinExprs(c.Terms, " AND ")
}

func (d *Disjunction) String() string {
	return joinExprs(d.Terms, " OR ")
}

func joinExprs(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

func (n *Negation) String() string {
	if n.Minus {
		inner := n.Expr.String()
		// "-5" would lex as a negative number
		if inner != "" && isDigit(inner[0]) {
			return "- " + inner
		}
		return "-" + inner
	}
	return "NOT " + n.Expr.String()
}

func (r *Restriction) String() string {
	switch r.Comparator {
	case ComparatorNone:
		return r.Comparable.String()
	case ComparatorHas:
		return r.Comparable.String() + ":" + r.Arg.String()
	default:
		return r.Comparable.String() + " " + r.Comparator.String() + " " + r.Arg.String()
	}
}

func (c *Composite) String() string {
	return "(" + c.Expr.String() + ")"
}

func (n *Name) String() string { return n.Path }

func (l *Literal) String() string { return l.Value.String() }

func (f *Function) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}
