package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/query"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/value"
)

// Statement is the SQL for one page of a list or search query. Limit is
// one more than the page size so the caller can tell whether a next page
// exists.
type Statement struct {
	Where   string
	Args    []value.Value
	OrderBy string
	Limit   uint32
	Offset  int64
}

// DriverArgs converts Args for database/sql.
func (s Statement) DriverArgs() []any {
	return driverArgs(s.Args)
}

// Select renders a complete SELECT over table. No columns selects *.
// table and columns are inserted verbatim.
func (s Statement) Select(table string, columns ...string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(table)
	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	if s.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatUint(uint64(s.Limit), 10))
	}
	if s.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatInt(s.Offset, 10))
	}
	return b.String()
}

// renamesFor prefers the compiler's rename map over the query's.
func (c *Compiler) renamesFor(q *query.ListQuery) schema.RenameMap {
	if c.renames != nil {
		return c.renames
	}
	return q.Renames
}

// BuildList compiles the filter, cursor and ordering of q into one statement.
func (c *Compiler) BuildList(q *query.ListQuery) (Statement, error) {
	stmt, err := c.build(q, nil)
	c.record(err)
	return stmt, err
}

// BuildSearch is BuildList with the search text matched against the
// search fields. A non-empty query with no search fields configured fails.
func (c *Compiler) BuildSearch(q *query.SearchQuery) (Statement, error) {
	var search *filter.Filter
	if q.Query != "" {
		if len(c.searchFields) == 0 {
			err := fmt.Errorf("%w: no search fields configured", ErrUnsupportedForDialect)
			c.record(err)
			return Statement{}, err
		}
		search = searchFilter(c.searchFields, q.Query)
	}
	stmt, err := c.build(&q.ListQuery, search)
	c.record(err)
	return stmt, err
}

// searchFilter matches text as a substring of any of the fields.
func searchFilter(fields []string, text string) *filter.Filter {
	var search *filter.Filter
	for _, path := range fields {
		f := &filter.Filter{Root: &filter.Restriction{
			Comparable: &filter.Name{Path: path},
			Comparator: filter.ComparatorHas,
			Arg:        &filter.Literal{Value: value.String(text)},
		}}
		if search == nil {
			search = f
			continue
		}
		search = filter.Or(search, f)
	}
	if d, ok := search.Root.(*filter.Disjunction); ok {
		search.Root = &filter.Composite{Expr: d}
	}
	return search
}

func (c *Compiler) build(q *query.ListQuery, search *filter.Filter) (Statement, error) {
	renames := c.renamesFor(q)
	where := filter.And(filter.And(q.Filter, search), q.Cursor)

	frag, err := c.compile(where, renames, c.offset)
	if err != nil {
		return Statement{}, err
	}
	stmt := Statement{
		Where:   frag.SQL,
		Args:    frag.Args,
		OrderBy: c.compileOrdering(q.Ordering, renames),
		Limit:   q.PageSize + 1,
		Offset:  q.Offset,
	}
	log.Debug(log.CatSQL, "statement built", "dialect", c.dialect.name, "args", len(stmt.Args), "limit", stmt.Limit)
	return stmt, nil
}
