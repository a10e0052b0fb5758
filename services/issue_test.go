package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
	"civicpulse-be/repositories"
	"civicpulse-be/utils"
)

// capturingNotifier records events and optionally fails.
type capturingNotifier struct {
	mu     sync.Mutex
	events []utils.StatusChangedEvent
	err    error
}

func (n *capturingNotifier) StatusChanged(_ context.Context, ev *utils.StatusChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, *ev)
	return nil
}

type issueFixture struct {
	issues   *repositories.MemoryIssueStore
	ledger   *repositories.MemoryVoteLedger
	users    *repositories.MemoryUserStore
	notifier *capturingNotifier
	svc      *IssueService

	reporter models.User
	admin    models.User
}

func newIssueFixture(t *testing.T) *issueFixture {
	t.Helper()

	f := &issueFixture{
		issues:   repositories.NewMemoryIssueStore(),
		ledger:   repositories.NewMemoryVoteLedger(),
		users:    repositories.NewMemoryUserStore(),
		notifier: &capturingNotifier{},
	}

	f.reporter = models.User{Name: "Priya", Email: "priya@example.com"}
	require.NoError(t, f.users.Create(context.Background(), &f.reporter))

	f.admin = models.User{Name: "Marta", Email: "marta@example.com", Role: models.RoleAdmin}
	require.NoError(t, f.users.Create(context.Background(), &f.admin))

	f.svc = NewIssueService(f.issues, f.ledger, f.users, repositories.NewMemoryTxRunner(), f.notifier, testLogger())
	return f
}

func (f *issueFixture) reporterIdentity() Identity {
	return Identity{ID: f.reporter.ID, Role: models.RoleUser}
}

func (f *issueFixture) adminIdentity() Identity {
	return Identity{ID: f.admin.ID, Role: models.RoleAdmin}
}

func (f *issueFixture) createIssue(t *testing.T) *models.Issue {
	t.Helper()
	issue, err := f.svc.Create(context.Background(), f.reporter.ID, &CreateIssueInput{
		Title:       "Broken street light",
		Description: "The light on Elm Street has been out for a week",
		Category:    models.Infrastructure,
		Longitude:   -73.9857,
		Latitude:    40.7484,
		Address:     "Elm Street 42",
	})
	require.NoError(t, err)
	return issue
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newIssueFixture(t)
	issue := f.createIssue(t)

	assert.Equal(t, models.Pending, issue.Status)
	assert.Equal(t, models.Medium, issue.Priority)
	assert.Equal(t, f.reporter.ID, issue.ReportedBy)
	assert.Zero(t, issue.Votes)
	assert.False(t, issue.CreatedAt.IsZero())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Create(context.Background(), f.reporter.ID, &CreateIssueInput{
		Title:       "Hm",
		Description: "too short",
		Category:    "paranormal",
		Longitude:   -73.9857,
		Latitude:    40.7484,
		Address:     "Elm Street 42",
	})
	ve, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "description")
	assert.Contains(t, ve.Fields, "category")
}

func TestUpdateOwnerAndAdminOnly(t *testing.T) {
	f := newIssueFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t)

	stranger := Identity{ID: primitive.NewObjectID(), Role: models.RoleUser}
	newTitle := "Broken street light on Elm"

	_, err := f.svc.Update(ctx, stranger, issue.ID, &repositories.IssuePatch{Title: &newTitle})
	assert.True(t, errors.Is(err, models.ErrPermission))

	updated, err := f.svc.Update(ctx, f.reporterIdentity(), issue.ID, &repositories.IssuePatch{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)

	adminTitle := "Street light outage, Elm Street"
	updated, err = f.svc.Update(ctx, f.adminIdentity(), issue.ID, &repositories.IssuePatch{Title: &adminTitle})
	require.NoError(t, err)
	assert.Equal(t, adminTitle, updated.Title)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	f := newIssueFixture(t)
	issue := f.createIssue(t)

	_, err := f.svc.UpdateStatus(context.Background(), f.reporterIdentity(), issue.ID, models.InProgress, nil)
	assert.True(t, errors.Is(err, models.ErrPermission))
	assert.Empty(t, f.notifier.events)
}

func TestUpdateStatusNotifiesReporter(t *testing.T) {
	f := newIssueFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t)

	updated, err := f.svc.UpdateStatus(ctx, f.adminIdentity(), issue.ID, models.Resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Resolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, f.reporter.Email, ev.RecipientEmail)
	assert.Equal(t, models.Pending, ev.OldStatus)
	assert.Equal(t, models.Resolved, ev.NewStatus)
	assert.Equal(t, issue.Title, ev.IssueTitle)
}

func TestUpdateStatusNoNotificationWhenUnchanged(t *testing.T) {
	f := newIssueFixture(t)
	issue := f.createIssue(t)

	_, err := f.svc.UpdateStatus(context.Background(), f.adminIdentity(), issue.ID, models.Pending, nil)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.events)
}

func TestUpdateStatusSurvivesNotifierFailure(t *testing.T) {
	f := newIssueFixture(t)
	f.notifier.err = errors.New("smtp down")
	issue := f.createIssue(t)

	updated, err := f.svc.UpdateStatus(context.Background(), f.adminIdentity(), issue.ID, models.InProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InProgress, updated.Status)
}

func TestDeleteCascadesVotes(t *testing.T) {
	f := newIssueFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t)

	for i := 0; i < 3; i++ {
		_, err := f.ledger.Insert(ctx, primitive.NewObjectID(), issue.ID)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.Delete(ctx, f.reporterIdentity(), issue.ID))

	_, err := f.issues.Get(ctx, issue.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	left, err := f.ledger.CountByIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Zero(t, left, "ledger rows must not outlive the issue")
}

func TestDeletePermission(t *testing.T) {
	f := newIssueFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t)

	stranger := Identity{ID: primitive.NewObjectID(), Role: models.RoleUser}
	err := f.svc.Delete(ctx, stranger, issue.ID)
	assert.True(t, errors.Is(err, models.ErrPermission))

	// Admins may delete issues they did not report.
	assert.NoError(t, f.svc.Delete(ctx, f.adminIdentity(), issue.ID))
}

func TestNearbyValidatesCoordinates(t *testing.T) {
	f := newIssueFixture(t)

	_, err := f.svc.Nearby(context.Background(), 200, 40, 5)
	_, ok := models.AsValidationError(err)
	assert.True(t, ok)

	_, err = f.svc.Nearby(context.Background(), -73, 95, 5)
	_, ok = models.AsValidationError(err)
	assert.True(t, ok)
}

func TestAddCommentStampsAuthorName(t *testing.T) {
	f := newIssueFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t)

	updated, err := f.svc.AddComment(ctx, f.reporterIdentity(), issue.ID, "Any progress on this?")
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)

	c := updated.Comments[0]
	assert.Equal(t, "Any progress on this?", c.Text)
	assert.Equal(t, f.reporter.ID, c.Author)
	assert.Equal(t, "Priya", c.AuthorName)
	assert.False(t, c.CreatedAt.IsZero())
}
