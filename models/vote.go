package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vote represents a user's vote on an issue. The (issue, user) pair carries a
// unique index; that constraint is what makes the toggle race-safe.
type Vote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// VoteStats summarizes the whole vote ledger.
type VoteStats struct {
	TotalVotes   int64 `bson:"totalVotes" json:"totalVotes"`
	UniqueVoters int64 `bson:"uniqueVoters" json:"uniqueVoters"`
	UniqueIssues int64 `bson:"uniqueIssues" json:"uniqueIssues"`
}
