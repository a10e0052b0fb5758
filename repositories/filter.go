package repositories

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

// SortField enumerates the allowed sort keys for issue listings.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByVotes     SortField = "votes"
	SortByUpdatedAt SortField = "updatedAt"
)

// SortOrder enumerates sort directions.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

const (
	// DefaultLimit is used when the requested page size is out of range.
	DefaultLimit = 10
	// MaxLimit caps the page size.
	MaxLimit = 50
)

// GeoNear restricts a listing to issues within RadiusKm of a point.
type GeoNear struct {
	Lng      float64
	Lat      float64
	RadiusKm float64
}

// IssueFilter is the typed filter for issue listings. All
// provided fields are combined conjunctively.
type IssueFilter struct {
	Status     *models.IssueStatus
	Category   *models.IssueCategory
	Priority   *models.IssuePriority
	ReportedBy *primitive.ObjectID
	Search     string
	Near       *GeoNear

	SortBy    SortField
	SortOrder SortOrder
	Page      int
	Limit     int
}

// Normalize clamps pagination and sorting to their allowed ranges instead of
// rejecting the request: page < 1 becomes 1, a limit outside [1,50] becomes
// the default 10, unknown sort falls back to createdAt descending.
func (f *IssueFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		f.Limit = DefaultLimit
	}
	switch f.SortBy {
	case SortByCreatedAt, SortByVotes, SortByUpdatedAt:
	default:
		f.SortBy = SortByCreatedAt
		f.SortOrder = Descending
	}
	switch f.SortOrder {
	case Ascending, Descending:
	default:
		f.SortOrder = Descending
	}
}

// Skip returns the number of documents to skip for the current page.
func (f *IssueFilter) Skip() int64 {
	return int64(f.Page-1) * int64(f.Limit)
}

// Pagination is the metadata returned alongside every issue page.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// NewPagination computes page metadata from a total count and a normalized
// page/limit pair.
func NewPagination(total int64, page, limit int) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}
