package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
	"civicpulse-be/repositories"
)

// recentWindow is the trailing window for the activity counters.
const recentWindow = 7 * 24 * time.Hour

// Overview is the full dashboard statistics object. All figures are a
// point-in-time read; nothing here mutates state.
type Overview struct {
	TotalIssues      int64 `json:"totalIssues"`
	PendingIssues    int64 `json:"pendingIssues"`
	InProgressIssues int64 `json:"inProgressIssues"`
	ResolvedIssues   int64 `json:"resolvedIssues"`

	TotalVotes   int64 `json:"totalVotes"`
	UniqueVoters int64 `json:"uniqueVoters"`
	UniqueIssues int64 `json:"uniqueIssues"`

	ByCategory []repositories.CategoryCount `json:"byCategory"`
	ByPriority []repositories.PriorityCount `json:"byPriority"`

	// ResolutionRate is round(resolved/total*100), 0 when there are no issues.
	ResolutionRate int `json:"resolutionRate"`
	// AvgResolutionDays is the rounded mean of resolvedAt-createdAt over
	// resolved issues, 0 when none are resolved.
	AvgResolutionDays int `json:"avgResolutionDays"`

	RecentIssues int64 `json:"recentIssues"`
	RecentVotes  int64 `json:"recentVotes"`
}

// StatsService computes aggregate statistics over the issue store and the
// vote ledger.
type StatsService struct {
	issues repositories.IssueStore
	votes  repositories.VoteLedger
}

// NewStatsService wires the aggregation service.
func NewStatsService(issues repositories.IssueStore, votes repositories.VoteLedger) *StatsService {
	return &StatsService{issues: issues, votes: votes}
}

// Overview builds the dashboard statistics. When reportedBy is non-nil the
// status breakdown and resolution rate are scoped to that reporter; the
// ledger and breakdown figures stay global.
func (s *StatsService) Overview(ctx context.Context, reportedBy *primitive.ObjectID) (*Overview, error) {
	statusCounts, err := s.issues.CountsByStatus(ctx, reportedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by status: %w", err)
	}

	voteStats, err := s.votes.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vote stats: %w", err)
	}

	byCategory, err := s.issues.CountsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by category: %w", err)
	}

	byPriority, err := s.issues.CountsByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by priority: %w", err)
	}

	avgResolution, err := s.issues.AvgResolutionTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute resolution time: %w", err)
	}

	since := time.Now().Add(-recentWindow)
	recentIssues, err := s.issues.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent issues: %w", err)
	}
	recentVotes, err := s.votes.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent votes: %w", err)
	}

	o := &Overview{
		PendingIssues:     statusCounts[models.Pending],
		InProgressIssues:  statusCounts[models.InProgress],
		ResolvedIssues:    statusCounts[models.Resolved],
		TotalVotes:        voteStats.TotalVotes,
		UniqueVoters:      voteStats.UniqueVoters,
		UniqueIssues:      voteStats.UniqueIssues,
		ByCategory:        byCategory,
		ByPriority:        byPriority,
		AvgResolutionDays: int(math.Round(avgResolution.Hours() / 24)),
		RecentIssues:      recentIssues,
		RecentVotes:       recentVotes,
	}
	o.TotalIssues = o.PendingIssues + o.InProgressIssues + o.ResolvedIssues

	if o.TotalIssues > 0 {
		o.ResolutionRate = int(math.Round(float64(o.ResolvedIssues) / float64(o.TotalIssues) * 100))
	}

	return o, nil
}
