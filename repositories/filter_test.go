package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueFilterNormalize(t *testing.T) {
	tt := []struct {
		name      string
		in        IssueFilter
		page      int
		limit     int
		sortBy    SortField
		sortOrder SortOrder
	}{
		{
			name:      "defaults",
			in:        IssueFilter{},
			page:      1,
			limit:     DefaultLimit,
			sortBy:    SortByCreatedAt,
			sortOrder: Descending,
		},
		{
			name:      "page below one is clamped",
			in:        IssueFilter{Page: -3, Limit: 20, SortBy: SortByVotes, SortOrder: Ascending},
			page:      1,
			limit:     20,
			sortBy:    SortByVotes,
			sortOrder: Ascending,
		},
		{
			name:      "limit above max falls back to default",
			in:        IssueFilter{Page: 2, Limit: 500, SortBy: SortByUpdatedAt, SortOrder: Descending},
			page:      2,
			limit:     DefaultLimit,
			sortBy:    SortByUpdatedAt,
			sortOrder: Descending,
		},
		{
			name:      "unknown sort falls back to createdAt desc",
			in:        IssueFilter{Page: 1, Limit: 10, SortBy: "priority", SortOrder: Ascending},
			page:      1,
			limit:     10,
			sortBy:    SortByCreatedAt,
			sortOrder: Descending,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			f := tc.in
			f.Normalize()
			assert.Equal(t, tc.page, f.Page)
			assert.Equal(t, tc.limit, f.Limit)
			assert.Equal(t, tc.sortBy, f.SortBy)
			assert.Equal(t, tc.sortOrder, f.SortOrder)
		})
	}
}

func TestNewPagination(t *testing.T) {
	tt := []struct {
		name    string
		total   int64
		page    int
		limit   int
		pages   int
		hasNext bool
		hasPrev bool
	}{
		{name: "middle page", total: 12, page: 2, limit: 5, pages: 3, hasNext: true, hasPrev: true},
		{name: "first page", total: 12, page: 1, limit: 5, pages: 3, hasNext: true, hasPrev: false},
		{name: "last page", total: 12, page: 3, limit: 5, pages: 3, hasNext: false, hasPrev: true},
		{name: "exact fit", total: 10, page: 1, limit: 5, pages: 2, hasNext: true, hasPrev: false},
		{name: "empty", total: 0, page: 1, limit: 10, pages: 0, hasNext: false, hasPrev: false},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.total, tc.page, tc.limit)
			assert.Equal(t, tc.page, p.CurrentPage)
			assert.Equal(t, tc.pages, p.TotalPages)
			assert.Equal(t, tc.total, p.TotalItems)
			assert.Equal(t, tc.limit, p.ItemsPerPage)
			assert.Equal(t, tc.hasNext, p.HasNextPage)
			assert.Equal(t, tc.hasPrev, p.HasPrevPage)
		})
	}
}
