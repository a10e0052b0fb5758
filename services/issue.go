package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
	"civicpulse-be/repositories"
	"civicpulse-be/utils"
)

// Identity is the authenticated actor as supplied by the auth middleware.
type Identity struct {
	ID   primitive.ObjectID
	Role models.UserRole
}

// IsAdmin reports whether the identity carries the admin role.
func (a Identity) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CreateIssueInput is the validated payload for a new issue.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Priority    models.IssuePriority
	Longitude   float64
	Latitude    float64
	Address     string
	Images      []string
}

// IssueService implements the issue lifecycle: create, query, field updates,
// status transitions with notification, comments and cascading delete.
type IssueService struct {
	issues   repositories.IssueStore
	votes    repositories.VoteLedger
	users    repositories.UserStore
	tx       repositories.TxRunner
	notifier utils.Notifier
	log      *logrus.Entry
}

// NewIssueService wires the issue lifecycle service.
func NewIssueService(issues repositories.IssueStore, votes repositories.VoteLedger, users repositories.UserStore, tx repositories.TxRunner, notifier utils.Notifier, log *logrus.Entry) *IssueService {
	return &IssueService{issues: issues, votes: votes, users: users, tx: tx, notifier: notifier, log: log}
}

// Create validates and stores a new issue for the reporter.
func (s *IssueService) Create(ctx context.Context, reporter primitive.ObjectID, input *CreateIssueInput) (*models.Issue, error) {
	issue := &models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Location:    models.NewGeoPoint(input.Longitude, input.Latitude),
		Address:     input.Address,
		Images:      input.Images,
		ReportedBy:  reporter,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Get returns one issue.
func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.issues.Get(ctx, id)
}

// List returns one page of issues plus pagination metadata.
func (s *IssueService) List(ctx context.Context, f *repositories.IssueFilter) ([]models.Issue, repositories.Pagination, error) {
	issues, total, err := s.issues.List(ctx, f)
	if err != nil {
		return nil, repositories.Pagination{}, err
	}
	// List normalized the filter, so page/limit are in range here.
	return issues, repositories.NewPagination(total, f.Page, f.Limit), nil
}

// Nearby returns issues within radiusKm of the point, closest first.
func (s *IssueService) Nearby(ctx context.Context, lng, lat, radiusKm float64) ([]models.Issue, error) {
	if lng < -180 || lng > 180 {
		return nil, models.NewValidationError("longitude", "must be between -180 and 180")
	}
	if lat < -90 || lat > 90 {
		return nil, models.NewValidationError("latitude", "must be between -90 and 90")
	}
	if radiusKm <= 0 {
		radiusKm = 5
	}
	return s.issues.FindNear(ctx, lng, lat, radiusKm*1000)
}

// Update applies a field patch on behalf of the actor. Owners and admins may
// update content fields; system-managed fields are unreachable through the
// patch type.
func (s *IssueService) Update(ctx context.Context, actor Identity, id primitive.ObjectID, patch *repositories.IssuePatch) (*models.Issue, error) {
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.ReportedBy != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("update issue %s: %w", id.Hex(), models.ErrPermission)
	}
	return s.issues.UpdateFields(ctx, id, patch)
}

// UpdateStatus performs an administrator status transition, stamping or
// clearing resolvedAt, then notifies the reporter. Notification failure is
// logged and swallowed; it never rolls back the transition.
func (s *IssueService) UpdateStatus(ctx context.Context, actor Identity, id primitive.ObjectID, status models.IssueStatus, assignee *primitive.ObjectID) (*models.Issue, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("update status of issue %s: %w", id.Hex(), models.ErrPermission)
	}

	before, err := s.issues.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	issue, err := s.issues.UpdateStatus(ctx, id, status, assignee)
	if err != nil {
		return nil, err
	}

	if before.Status != issue.Status {
		s.notifyStatusChange(ctx, before.Status, issue)
	}
	return issue, nil
}

func (s *IssueService) notifyStatusChange(ctx context.Context, oldStatus models.IssueStatus, issue *models.Issue) {
	reporter, err := s.users.GetByID(ctx, issue.ReportedBy)
	if err != nil {
		s.log.WithError(err).WithField("issue", issue.ID.Hex()).Warn("status change notification skipped, reporter lookup failed")
		return
	}

	event := &utils.StatusChangedEvent{
		RecipientEmail: reporter.Email,
		RecipientName:  reporter.Name,
		IssueTitle:     issue.Title,
		OldStatus:      oldStatus,
		NewStatus:      issue.Status,
		IssueID:        issue.ID.Hex(),
	}
	if err := s.notifier.StatusChanged(ctx, event); err != nil {
		s.log.WithError(err).WithField("issue", issue.ID.Hex()).Warn("status change notification failed")
	}
}

// Delete removes an issue and, in the same unit of work, every ledger vote
// referencing it, so no orphaned vote rows survive.
func (s *IssueService) Delete(ctx context.Context, actor Identity, id primitive.ObjectID) error {
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return err
	}
	if issue.ReportedBy != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("delete issue %s: %w", id.Hex(), models.ErrPermission)
	}

	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Delete(ctx, id); err != nil {
			return err
		}
		_, err := s.votes.DeleteByIssue(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.log.WithError(err).WithField("issue", id.Hex()).Error("issue delete failed")
		return fmt.Errorf("issue delete did not commit: %w", models.ErrTransient)
	}
	return nil
}

// AddComment appends a comment authored by the actor.
func (s *IssueService) AddComment(ctx context.Context, actor Identity, id primitive.ObjectID, text string) (*models.Issue, error) {
	author, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Text:       text,
		Author:     actor.ID,
		AuthorName: author.Name,
	}
	return s.issues.AddComment(ctx, id, comment)
}
