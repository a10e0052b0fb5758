// Package repositories contains the store interfaces the services are built
// against, their MongoDB implementations, and in-memory implementations used
// by tests.
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

// TxRunner executes fn as a single atomic unit of work. Store operations
// performed with the context passed to fn join that unit; if fn returns an
// error nothing it did becomes visible.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VoteLedger is the authoritative record of votes, one row per (voter, issue)
// pair, guarded by a unique index.
type VoteLedger interface {
	Exists(ctx context.Context, voter, issue primitive.ObjectID) (bool, error)
	// Insert records a vote. Returns models.ErrConflict (wrapped) if the pair
	// already exists.
	Insert(ctx context.Context, voter, issue primitive.ObjectID) (*models.Vote, error)
	// Delete removes a vote, reporting whether a row was actually deleted.
	Delete(ctx context.Context, voter, issue primitive.ObjectID) (bool, error)
	CountByIssue(ctx context.Context, issue primitive.ObjectID) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// DeleteByIssue removes every vote for an issue (cascade on issue delete).
	DeleteByIssue(ctx context.Context, issue primitive.ObjectID) (int64, error)
	Stats(ctx context.Context) (*models.VoteStats, error)
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	Category models.IssueCategory `bson:"_id" json:"category"`
	Count    int64                `bson:"count" json:"count"`
}

// PriorityCount is one row of the per-priority breakdown.
type PriorityCount struct {
	Priority models.IssuePriority `bson:"_id" json:"priority"`
	Count    int64                `bson:"count" json:"count"`
}

// IssuePatch is the typed partial update allowed through UpdateFields.
// System-managed fields (votes, votedBy, resolvedAt, status) have no member
// here, so they cannot be written through this path.
type IssuePatch struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Priority    *models.IssuePriority
	Address     *string
	Location    *models.GeoPoint
	Images      []string // nil means unchanged
}

// Validate checks the provided fields against the same constraints the
// create path enforces.
func (p *IssuePatch) Validate() error {
	fields := map[string]string{}
	if p.Title != nil {
		if l := len(*p.Title); l < models.TitleMinLen || l > models.TitleMaxLen {
			fields["title"] = "must be between 5 and 100 characters"
		}
	}
	if p.Description != nil {
		if l := len(*p.Description); l < models.DescriptionMinLen || l > models.DescriptionMaxLen {
			fields["description"] = "must be between 10 and 1000 characters"
		}
	}
	if p.Category != nil && !models.ValidCategory(*p.Category) {
		fields["category"] = "invalid category"
	}
	if p.Priority != nil && !models.ValidPriority(*p.Priority) {
		fields["priority"] = "invalid priority"
	}
	if p.Address != nil && len(*p.Address) > models.AddressMaxLen {
		fields["address"] = "must be at most 200 characters"
	}
	if p.Location != nil {
		if len(p.Location.Coordinates) != 2 {
			fields["location"] = "coordinates must be [longitude, latitude]"
		} else {
			if lng := p.Location.Lng(); lng < -180 || lng > 180 {
				fields["longitude"] = "must be between -180 and 180"
			}
			if lat := p.Location.Lat(); lat < -90 || lat > 90 {
				fields["latitude"] = "must be between -90 and 90"
			}
		}
	}
	if p.Images != nil && len(p.Images) > models.MaxImages {
		fields["images"] = "at most 5 images allowed"
	}
	if len(fields) > 0 {
		return &models.ValidationError{Fields: fields}
	}
	return nil
}

// Empty reports whether the patch carries no field at all.
func (p *IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.Address == nil && p.Location == nil && p.Images == nil
}

// IssueStore is the durable home of issues, including the denormalized vote
// counter the toggle transaction keeps in sync with the ledger.
type IssueStore interface {
	// Create validates the issue, assigns id and timestamps and initializes
	// the vote cache to empty.
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// List returns one page of issues matching the filter plus the total
	// number of matches (same predicate, no pagination).
	List(ctx context.Context, f *IssueFilter) ([]models.Issue, int64, error)
	FindNear(ctx context.Context, lng, lat, maxMeters float64) ([]models.Issue, error)
	// UpdateStatus writes the new status and stamps or clears resolvedAt in
	// the same single-document update.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus, assignee *primitive.ObjectID) (*models.Issue, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, patch *IssuePatch) (*models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddComment(ctx context.Context, id primitive.ObjectID, c *models.Comment) (*models.Issue, error)
	// ApplyVote adjusts the denormalized counter and votedBy set by delta
	// (+1 adds the voter, -1 removes it). Only the vote toggle transaction
	// calls this.
	ApplyVote(ctx context.Context, issue, voter primitive.ObjectID, delta int) error

	CountsByStatus(ctx context.Context, reportedBy *primitive.ObjectID) (map[models.IssueStatus]int64, error)
	CountsByCategory(ctx context.Context) ([]CategoryCount, error)
	CountsByPriority(ctx context.Context) ([]PriorityCount, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// AvgResolutionTime returns the mean resolvedAt-createdAt over resolved
	// issues, zero when none are resolved.
	AvgResolutionTime(ctx context.Context) (time.Duration, error)
}
