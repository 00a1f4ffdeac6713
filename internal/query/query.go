// Package query turns AIP-132 list and search requests into validated,
// paginated queries.
package query

import (
	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/schema"
)

// ListRequest holds the raw AIP-132 request fields.
type ListRequest struct {
	PageSize  int32
	PageToken string
	Filter    string
	OrderBy   string
}

// SearchRequest is a ListRequest with free-text search.
type SearchRequest struct {
	Query     string
	PageSize  int32
	PageToken string
	Filter    string
	OrderBy   string
}

func (r SearchRequest) list() ListRequest {
	return ListRequest{PageSize: r.PageSize, PageToken: r.PageToken, Filter: r.Filter, OrderBy: r.OrderBy}
}

// ListQuery is a validated list request. It is never mutated after Build.
type ListQuery struct {
	PageSize uint32
	Offset   int64
	// Cursor selects the rows at and after the first row of this page; nil on the first page.
	Cursor   *filter.Filter
	Filter   *filter.Filter
	Ordering ordering.Ordering
	// Renames maps schema paths to storage names for SQL generation.
	Renames schema.RenameMap
}

// Where returns the filter and the cursor combined.
func (q *ListQuery) Where() *filter.Filter {
	return filter.And(q.Filter, q.Cursor)
}

// SearchQuery is a validated search request.
type SearchQuery struct {
	ListQuery
	Query string
}
