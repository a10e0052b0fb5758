// Package services holds the business logic between the HTTP controllers and
// the stores: the vote toggle engine, issue lifecycle and the statistics
// aggregation.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
	"civicpulse-be/repositories"
)

// ToggleOutcome reports which side of the toggle was taken.
type ToggleOutcome string

const (
	OutcomeAdded   ToggleOutcome = "added"
	OutcomeRemoved ToggleOutcome = "removed"
)

// ToggleResult is the caller-visible result of a vote toggle.
type ToggleResult struct {
	IssueID  string        `json:"issueId"`
	Votes    int64         `json:"votes"`
	HasVoted bool          `json:"hasVoted"`
	Outcome  ToggleOutcome `json:"outcome"`
}

// VoteService implements the vote toggle: one call flips the caller's vote
// state on an issue, keeping the ledger and the issue's denormalized counter
// consistent inside a single unit of work.
type VoteService struct {
	issues repositories.IssueStore
	votes  repositories.VoteLedger
	tx     repositories.TxRunner
	log    *logrus.Entry
}

// NewVoteService wires the toggle engine.
func NewVoteService(issues repositories.IssueStore, votes repositories.VoteLedger, tx repositories.TxRunner, log *logrus.Entry) *VoteService {
	return &VoteService{issues: issues, votes: votes, tx: tx, log: log}
}

// Toggle flips voter's vote on the issue.
//
// The unique (issue, user) index on the ledger is the linchpin: when two
// toggles race on the same pair, exactly one insert wins. The loser's
// constraint violation means the caller's vote already exists, so it is
// treated as "already voted" and left alone. It is never turned into a
// removal, which could strip a vote the caller did not own.
func (s *VoteService) Toggle(ctx context.Context, voter, issueID primitive.ObjectID) (*ToggleResult, error) {
	if _, err := s.issues.Get(ctx, issueID); err != nil {
		return nil, err
	}

	var outcome ToggleOutcome

	attempt := func() error {
		return s.tx.RunTx(ctx, func(ctx context.Context) error {
			hasVoted, err := s.votes.Exists(ctx, voter, issueID)
			if err != nil {
				return err
			}

			if !hasVoted {
				if _, err := s.votes.Insert(ctx, voter, issueID); err != nil {
					if errors.Is(err, models.ErrConflict) {
						// Lost the add race: the vote is already on record.
						outcome = OutcomeAdded
						return nil
					}
					return err
				}
				if err := s.issues.ApplyVote(ctx, issueID, voter, +1); err != nil {
					return err
				}
				outcome = OutcomeAdded
				return nil
			}

			deleted, err := s.votes.Delete(ctx, voter, issueID)
			if err != nil {
				return err
			}
			if !deleted {
				// A concurrent remove got there first; nothing to adjust.
				outcome = OutcomeRemoved
				return nil
			}
			if err := s.issues.ApplyVote(ctx, issueID, voter, -1); err != nil {
				return err
			}
			outcome = OutcomeRemoved
			return nil
		})
	}

	err := attempt()
	if err != nil && !isTerminal(err) {
		s.log.WithError(err).WithField("issue", issueID.Hex()).Warn("vote toggle aborted, retrying once")
		err = attempt()
	}
	if err != nil {
		if isTerminal(err) {
			return nil, err
		}
		s.log.WithError(err).WithField("issue", issueID.Hex()).Error("vote toggle failed")
		return nil, fmt.Errorf("vote toggle did not commit: %w", models.ErrTransient)
	}

	issue, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}

	return &ToggleResult{
		IssueID:  issueID.Hex(),
		Votes:    issue.Votes,
		HasVoted: issue.HasVoter(voter),
		Outcome:  outcome,
	}, nil
}

// HasVoted reports the caller's current vote state from the ledger.
func (s *VoteService) HasVoted(ctx context.Context, voter, issueID primitive.ObjectID) (bool, error) {
	return s.votes.Exists(ctx, voter, issueID)
}

// isTerminal reports whether the error must not be retried.
func isTerminal(err error) bool {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrPermission) {
		return true
	}
	if _, ok := models.AsValidationError(err); ok {
		return true
	}
	return false
}
