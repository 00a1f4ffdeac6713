package sqlgen

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/zjrosen/aipq/internal/value"
)

// ErrUnsupportedForDialect is returned when a construct has no translation
// for the target dialect.
var ErrUnsupportedForDialect = errors.New("unsupported for dialect")

// Operand is a compiled function argument: a column or a literal that has
// not been bound yet.
type Operand struct {
	SQL       string
	Literal   value.Value
	IsLiteral bool
}

// Render returns the column SQL or binds the literal.
func (o Operand) Render(b *Binder) string {
	if o.IsLiteral {
		return b.Bind(o.Literal)
	}
	return o.SQL
}

// FunctionRule renders a filter function call as a SQL expression.
type FunctionRule func(b *Binder, args []Operand) (string, error)

type matchKind int

const (
	matchContains matchKind = iota
	matchPrefix
	matchSuffix
)

// Dialect describes identifier quoting, placeholders and the translations
// of has, pattern and regex operations for one database.
type Dialect struct {
	name      string
	quote     byte
	numbered  bool
	member    func(col, ph string) string
	nonEmpty  func(col string) string
	match     func(col, ph string, fold bool) string
	pattern   func(s string, kind matchKind, fold bool) string
	regex     func(col, ph string) string
	functions map[string]FunctionRule
}

var (
	// Postgres quotes with "x", binds $n and stores repeated fields as arrays.
	Postgres = Dialect{
		name:     "postgres",
		quote:    '"',
		numbered: true,
		member:   func(col, ph string) string { return ph + " = ANY(" + col + ")" },
		nonEmpty: func(col string) string { return "cardinality(" + col + ") > 0" },
		match: func(col, ph string, fold bool) string {
			if fold {
				return col + " ILIKE " + ph + ` ESCAPE '!'`
			}
			return col + " LIKE " + ph + ` ESCAPE '!'`
		},
		pattern: likePattern,
		regex:   func(col, ph string) string { return col + " ~ " + ph },
	}

	// MySQL quotes with `x`, binds ? and stores repeated fields as JSON arrays.
	MySQL = Dialect{
		name:     "mysql",
		quote:    '`',
		member:   func(col, ph string) string { return ph + " MEMBER OF(" + col + ")" },
		nonEmpty: func(col string) string { return "JSON_LENGTH(" + col + ") > 0" },
		match: func(col, ph string, fold bool) string {
			if fold {
				return "LOWER(" + col + ") LIKE LOWER(" + ph + `) ESCAPE '!'`
			}
			return col + " LIKE BINARY " + ph + ` ESCAPE '!'`
		},
		pattern: likePattern,
		regex:   func(col, ph string) string { return col + " REGEXP " + ph },
	}

	// SQLite quotes with "x", binds ? and stores repeated fields as JSON
	// arrays. Case-sensitive matching uses GLOB since LIKE folds ASCII case.
	SQLite = Dialect{
		name:  "sqlite",
		quote: '"',
		member: func(col, ph string) string {
			return "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE value = " + ph + ")"
		},
		nonEmpty: func(col string) string { return "json_array_length(" + col + ") > 0" },
		match: func(col, ph string, fold bool) string {
			if fold {
				return col + " LIKE " + ph + ` ESCAPE '!'`
			}
			return col + " GLOB " + ph
		},
		pattern: func(s string, kind matchKind, fold bool) string {
			if fold {
				return likePattern(s, kind, fold)
			}
			return wrapPattern(globEscape(s), kind, "*")
		},
	}
)

// ParseDialect returns the dialect with the given name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect %q", name)
	}
}

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

// WithFunction returns a copy of d that renders calls to name with rule.
// Registered rules take precedence over the builtin translations.
func (d Dialect) WithFunction(name string, rule FunctionRule) Dialect {
	fns := make(map[string]FunctionRule, len(d.functions)+1)
	maps.Copy(fns, d.functions)
	fns[name] = rule
	d.functions = fns
	return d
}

// QuoteIdent quotes one identifier, doubling embedded quote characters.
func (d Dialect) QuoteIdent(ident string) string {
	q := string(d.quote)
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(s string, kind matchKind, _ bool) string {
	return wrapPattern(likeEscaper.Replace(s), kind, "%")
}

var globEscaper = strings.NewReplacer("*", "[*]", "?", "[?]", "[", "[[]")

func globEscape(s string) string { return globEscaper.Replace(s) }

func wrapPattern(s string, kind matchKind, wildcard string) string {
	switch kind {
	case matchPrefix:
		return s + wildcard
	case matchSuffix:
		return wildcard + s
	default:
		return wildcard + s + wildcard
	}
}

// Binder collects bound arguments and hands out placeholders.
type Binder struct {
	dialect Dialect
	offset  int
	args    []value.Value
}

// Bind appends v and returns its placeholder.
func (b *Binder) Bind(v value.Value) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(b.offset + len(b.args))
}
