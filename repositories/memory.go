package repositories

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

// In-memory store implementations. They back the service and controller tests
// and mirror the semantics of the Mongo implementations, including the unique
// (issue, user) constraint on the ledger.

type votePair struct {
	issue primitive.ObjectID
	user  primitive.ObjectID
}

// MemoryVoteLedger is a mutex-guarded in-memory VoteLedger.
type MemoryVoteLedger struct {
	mu    sync.RWMutex
	votes map[votePair]models.Vote
}

// NewMemoryVoteLedger builds an empty in-memory ledger.
func NewMemoryVoteLedger() *MemoryVoteLedger {
	return &MemoryVoteLedger{votes: map[votePair]models.Vote{}}
}

func (l *MemoryVoteLedger) Exists(_ context.Context, voter, issue primitive.ObjectID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.votes[votePair{issue: issue, user: voter}]
	return ok, nil
}

func (l *MemoryVoteLedger) Insert(_ context.Context, voter, issue primitive.ObjectID) (*models.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := votePair{issue: issue, user: voter}
	if _, ok := l.votes[key]; ok {
		return nil, fmt.Errorf("vote for issue %s by %s: %w", issue.Hex(), voter.Hex(), models.ErrConflict)
	}

	vote := models.Vote{
		ID:        primitive.NewObjectID(),
		Issue:     issue,
		User:      voter,
		CreatedAt: time.Now(),
	}
	l.votes[key] = vote
	return &vote, nil
}

func (l *MemoryVoteLedger) Delete(_ context.Context, voter, issue primitive.ObjectID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := votePair{issue: issue, user: voter}
	if _, ok := l.votes[key]; !ok {
		return false, nil
	}
	delete(l.votes, key)
	return true, nil
}

func (l *MemoryVoteLedger) CountByIssue(_ context.Context, issue primitive.ObjectID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int64
	for key := range l.votes {
		if key.issue == issue {
			n++
		}
	}
	return n, nil
}

func (l *MemoryVoteLedger) CountSince(_ context.Context, since time.Time) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int64
	for _, v := range l.votes {
		if !v.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *MemoryVoteLedger) DeleteByIssue(_ context.Context, issue primitive.ObjectID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for key := range l.votes {
		if key.issue == issue {
			delete(l.votes, key)
			n++
		}
	}
	return n, nil
}

func (l *MemoryVoteLedger) Stats(_ context.Context) (*models.VoteStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	voters := map[primitive.ObjectID]struct{}{}
	issues := map[primitive.ObjectID]struct{}{}
	for key := range l.votes {
		voters[key.user] = struct{}{}
		issues[key.issue] = struct{}{}
	}
	return &models.VoteStats{
		TotalVotes:   int64(len(l.votes)),
		UniqueVoters: int64(len(voters)),
		UniqueIssues: int64(len(issues)),
	}, nil
}

// MemoryIssueStore is a mutex-guarded in-memory IssueStore.
type MemoryIssueStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*models.Issue
}

// NewMemoryIssueStore builds an empty in-memory issue store.
func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{issues: map[primitive.ObjectID]*models.Issue{}}
}

func copyIssue(i *models.Issue) *models.Issue {
	cp := *i
	cp.VotedBy = append([]primitive.ObjectID{}, i.VotedBy...)
	cp.Comments = append([]models.Comment{}, i.Comments...)
	cp.Images = append([]string{}, i.Images...)
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

func (s *MemoryIssueStore) Create(_ context.Context, issue *models.Issue) error {
	now := time.Now()
	issue.ID = primitive.NewObjectID()
	issue.Votes = 0
	issue.VotedBy = []primitive.ObjectID{}
	if issue.Comments == nil {
		issue.Comments = []models.Comment{}
	}
	if issue.Images == nil {
		issue.Images = []string{}
	}
	if issue.Status == "" {
		issue.Status = models.Pending
	}
	if issue.Priority == "" {
		issue.Priority = models.Medium
	}
	issue.CreatedAt = now
	issue.UpdatedAt = now
	issue.ResolvedAt = nil

	if err := issue.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.ID] = copyIssue(issue)
	return nil
}

func (s *MemoryIssueStore) Get(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	return copyIssue(issue), nil
}

func matchesFilter(i *models.Issue, f *IssueFilter) bool {
	if f.Status != nil && i.Status != *f.Status {
		return false
	}
	if f.Category != nil && i.Category != *f.Category {
		return false
	}
	if f.Priority != nil && i.Priority != *f.Priority {
		return false
	}
	if f.ReportedBy != nil && i.ReportedBy != *f.ReportedBy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(i.Title), q) &&
			!strings.Contains(strings.ToLower(i.Description), q) &&
			!strings.Contains(strings.ToLower(i.Address), q) {
			return false
		}
	}
	if f.Near != nil {
		if len(i.Location.Coordinates) != 2 {
			return false
		}
		d := haversineKm(f.Near.Lat, f.Near.Lng, i.Location.Lat(), i.Location.Lng())
		if d > f.Near.RadiusKm {
			return false
		}
	}
	return true
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const r = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * r * math.Asin(math.Sqrt(a))
}

func (s *MemoryIssueStore) List(_ context.Context, f *IssueFilter) ([]models.Issue, int64, error) {
	f.Normalize()

	s.mu.RLock()
	matched := []*models.Issue{}
	for _, i := range s.issues {
		if matchesFilter(i, f) {
			matched = append(matched, i)
		}
	}
	s.mu.RUnlock()

	asc := f.SortOrder == Ascending
	sort.Slice(matched, func(a, b int) bool {
		var less bool
		switch f.SortBy {
		case SortByVotes:
			if matched[a].Votes == matched[b].Votes {
				less = matched[a].CreatedAt.Before(matched[b].CreatedAt)
			} else {
				less = matched[a].Votes < matched[b].Votes
			}
		case SortByUpdatedAt:
			less = matched[a].UpdatedAt.Before(matched[b].UpdatedAt)
		default:
			less = matched[a].CreatedAt.Before(matched[b].CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	start := int(f.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]models.Issue, 0, end-start)
	for _, i := range matched[start:end] {
		page = append(page, *copyIssue(i))
	}
	return page, total, nil
}

func (s *MemoryIssueStore) FindNear(_ context.Context, lng, lat, maxMeters float64) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type withDist struct {
		issue *models.Issue
		dist  float64
	}
	var near []withDist
	for _, i := range s.issues {
		if len(i.Location.Coordinates) != 2 {
			continue
		}
		d := haversineKm(lat, lng, i.Location.Lat(), i.Location.Lng()) * 1000
		if d <= maxMeters {
			near = append(near, withDist{issue: i, dist: d})
		}
	}
	sort.Slice(near, func(a, b int) bool { return near[a].dist < near[b].dist })

	out := make([]models.Issue, 0, len(near))
	for _, n := range near {
		out = append(out, *copyIssue(n.issue))
	}
	return out, nil
}

func (s *MemoryIssueStore) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.IssueStatus, assignee *primitive.ObjectID) (*models.Issue, error) {
	if !models.ValidStatus(status) {
		return nil, models.NewValidationError("status", "invalid status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}

	issue.Status = status
	issue.UpdatedAt = time.Now()
	if status == models.Resolved {
		now := time.Now()
		issue.ResolvedAt = &now
	} else {
		issue.ResolvedAt = nil
	}
	if assignee != nil {
		a := *assignee
		issue.AssignedTo = &a
	}
	return copyIssue(issue), nil
}

func (s *MemoryIssueStore) UpdateFields(_ context.Context, id primitive.ObjectID, patch *IssuePatch) (*models.Issue, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}

	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Category != nil {
		issue.Category = *patch.Category
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.Address != nil {
		issue.Address = *patch.Address
	}
	if patch.Location != nil {
		issue.Location = *patch.Location
	}
	if patch.Images != nil {
		issue.Images = append([]string{}, patch.Images...)
	}
	if !patch.Empty() {
		issue.UpdatedAt = time.Now()
	}
	return copyIssue(issue), nil
}

func (s *MemoryIssueStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	delete(s.issues, id)
	return nil
}

func (s *MemoryIssueStore) AddComment(_ context.Context, id primitive.ObjectID, c *models.Comment) (*models.Issue, error) {
	if err := models.ValidateComment(c); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	issue.Comments = append(issue.Comments, *c)
	issue.UpdatedAt = time.Now()
	return copyIssue(issue), nil
}

func (s *MemoryIssueStore) ApplyVote(_ context.Context, issue, voter primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.issues[issue]
	if !ok {
		return fmt.Errorf("issue %s: %w", issue.Hex(), models.ErrNotFound)
	}

	if delta > 0 {
		if !i.HasVoter(voter) {
			i.VotedBy = append(i.VotedBy, voter)
		}
	} else {
		kept := i.VotedBy[:0]
		for _, v := range i.VotedBy {
			if v != voter {
				kept = append(kept, v)
			}
		}
		i.VotedBy = kept
	}
	i.Votes += int64(delta)
	if i.Votes < 0 {
		i.Votes = 0
	}
	return nil
}

func (s *MemoryIssueStore) CountsByStatus(_ context.Context, reportedBy *primitive.ObjectID) (map[models.IssueStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[models.IssueStatus]int64{}
	for _, i := range s.issues {
		if reportedBy != nil && i.ReportedBy != *reportedBy {
			continue
		}
		counts[i.Status]++
	}
	return counts, nil
}

func (s *MemoryIssueStore) CountsByCategory(_ context.Context) ([]CategoryCount, error) {
	s.mu.RLock()
	byCat := map[models.IssueCategory]int64{}
	for _, i := range s.issues {
		byCat[i.Category]++
	}
	s.mu.RUnlock()

	rows := make([]CategoryCount, 0, len(byCat))
	for c, n := range byCat {
		rows = append(rows, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Count == rows[b].Count {
			return rows[a].Category < rows[b].Category
		}
		return rows[a].Count > rows[b].Count
	})
	return rows, nil
}

func (s *MemoryIssueStore) CountsByPriority(_ context.Context) ([]PriorityCount, error) {
	s.mu.RLock()
	byPri := map[models.IssuePriority]int64{}
	for _, i := range s.issues {
		byPri[i.Priority]++
	}
	s.mu.RUnlock()

	rows := make([]PriorityCount, 0, len(byPri))
	for p, n := range byPri {
		rows = append(rows, PriorityCount{Priority: p, Count: n})
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Count == rows[b].Count {
			return rows[a].Priority < rows[b].Priority
		}
		return rows[a].Count > rows[b].Count
	})
	return rows, nil
}

func (s *MemoryIssueStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, i := range s.issues {
		if !i.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryIssueStore) AvgResolutionTime(_ context.Context) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum time.Duration
	var n int64
	for _, i := range s.issues {
		if i.Status == models.Resolved && i.ResolvedAt != nil {
			sum += i.ResolvedAt.Sub(i.CreatedAt)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / time.Duration(n), nil
}

// MemoryTxRunner serializes units of work with a mutex. It cannot roll back,
// so it relies on the ledger's uniqueness check as the single decision point,
// the same property the Mongo transaction leans on.
type MemoryTxRunner struct {
	mu sync.Mutex
}

// NewMemoryTxRunner builds a serializing TxRunner.
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (r *MemoryTxRunner) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

// MemoryUserStore is the in-memory UserStore backing the auth and
// notification tests.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[primitive.ObjectID]models.User
	byEmail map[string]primitive.ObjectID
}

// NewMemoryUserStore builds an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    map[primitive.ObjectID]models.User{},
		byEmail: map[string]primitive.ObjectID{},
	}
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("user %s: %w", u.Email, models.ErrConflict)
	}

	now := time.Now()
	u.ID = primitive.NewObjectID()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), models.ErrNotFound)
	}
	return &u, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	u := s.byID[id]
	return &u, nil
}

// Put inserts an issue exactly as given, bypassing validation and timestamp
// assignment. Tests use it to seed historical data.
func (s *MemoryIssueStore) Put(issue models.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	s.issues[issue.ID] = copyIssue(&issue)
}
