// Package ordering parses and applies AIP-132 order_by clauses such as
// "displayName desc, age".
package ordering

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zjrosen/aipq/internal/filter"
)

// ErrDuplicateField is returned when a field appears twice in one ordering.
var ErrDuplicateField = errors.New("duplicate ordering field")

// Direction is the sort direction of a term.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Term orders by one field.
type Term struct {
	Name      string
	Direction Direction
}

func (t Term) String() string {
	return t.Name + " " + t.Direction.String()
}

// Ordering is an ordered list of terms; earlier terms take precedence.
type Ordering []Term

// SyntaxError reports a malformed order_by clause.
type SyntaxError struct {
	Msg  string
	Term string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid ordering term %q: %s", e.Term, e.Msg)
}

// Parse parses comma-separated "name [asc|desc]" terms. Empty segments are
// skipped, so "" yields an empty ordering. Direction keywords are case-insensitive.
func Parse(text string) (Ordering, error) {
	var out Ordering
	seen := make(map[string]bool)

	for _, segment := range strings.Split(text, ",") {
		words := strings.Fields(segment)
		if len(words) == 0 {
			continue
		}
		if len(words) > 2 {
			return nil, &SyntaxError{Msg: "expected \"name [asc|desc]\"", Term: strings.TrimSpace(segment)}
		}

		term := Term{Name: words[0]}
		if len(words) == 2 {
			switch strings.ToLower(words[1]) {
			case "asc":
				term.Direction = Ascending
			case "desc":
				term.Direction = Descending
			default:
				return nil, &SyntaxError{Msg: "direction must be asc or desc", Term: strings.TrimSpace(segment)}
			}
		}
		if !validName(term.Name) {
			return nil, &SyntaxError{Msg: "invalid field name", Term: strings.TrimSpace(segment)}
		}
		if seen[term.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, term.Name)
		}
		seen[term.Name] = true
		out = append(out, term)
	}

	return out, nil
}

func validName(name string) bool {
	tok := filter.NewLexer(name).NextToken()
	return tok.Type == filter.TokenIdent && tok.End == len(name)
}

// String renders the canonical clause: "a desc, b asc".
func (o Ordering) String() string {
	parts := make([]string, len(o))
	for i, t := range o {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Contains reports whether a term orders by name.
func (o Ordering) Contains(name string) bool {
	for _, t := range o {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Append returns a copy of o with t added at the end.
func (o Ordering) Append(t Term) Ordering {
	out := make(Ordering, len(o), len(o)+1)
	copy(out, o)
	return append(out, t)
}

// Names returns the ordered field paths.
func (o Ordering) Names() []string {
	names := make([]string, len(o))
	for i, t := range o {
		names[i] = t.Name
	}
	return names
}

// Evaluate compares records a and b and returns -1, 0 or 1. Terms apply in
// order; an absent value sorts before any present one.
func (o Ordering) Evaluate(a, b filter.FieldResolver) (int, error) {
	for _, t := range o {
		va, okA := a.Resolve(t.Name)
		vb, okB := b.Resolve(t.Name)
		okA = okA && !va.IsNull()
		okB = okB && !vb.IsNull()

		var c int
		switch {
		case !okA && !okB:
			c = 0
		case !okA:
			c = -1
		case !okB:
			c = 1
		default:
			var err error
			c, err = va.Compare(vb)
			if err != nil {
				return 0, fmt.Errorf("ordering by %s: %w", t.Name, err)
			}
		}

		if t.Direction == Descending {
			c = -c
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
