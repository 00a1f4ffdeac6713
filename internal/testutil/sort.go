package testutil

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/aipq/internal/ordering"
)

// SortRequests returns a copy of items sorted by o.
func SortRequests(t *testing.T, items []*RequestItem, o ordering.Ordering) []*RequestItem {
	t.Helper()
	out := slices.Clone(items)
	var sortErr error
	slices.SortStableFunc(out, func(a, b *RequestItem) int {
		c, err := o.Evaluate(a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	require.NoError(t, sortErr)
	return out
}
