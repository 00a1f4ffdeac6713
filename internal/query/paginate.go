package query

import (
	"slices"

	"github.com/zjrosen/aipq/internal/filter"
)

// Page is one page of records selected in memory.
type Page[T filter.FieldResolver] struct {
	Items []T
	// Next is the first record of the following page, valid when HasNext.
	Next    T
	HasNext bool
}

// Paginate applies q to records in memory: it filters, sorts stably by the
// ordering, skips the offset and cuts one page.
func Paginate[T filter.FieldResolver](q *ListQuery, ev *filter.Evaluator, records []T) (Page[T], error) {
	var page Page[T]
	where := q.Where()

	matched := make([]T, 0, len(records))
	for _, r := range records {
		ok, err := ev.Matches(where, r)
		if err != nil {
			return page, err
		}
		if ok {
			matched = append(matched, r)
		}
	}

	var sortErr error
	slices.SortStableFunc(matched, func(a, b T) int {
		c, err := q.Ordering.Evaluate(a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return page, sortErr
	}

	start := int(min(q.Offset, int64(len(matched))))
	end := min(start+int(q.PageSize), len(matched))
	page.Items = matched[start:end]
	if end < len(matched) {
		page.Next = matched[end]
		page.HasNext = true
	}
	return page, nil
}
