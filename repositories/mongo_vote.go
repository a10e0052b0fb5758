package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicpulse-be/models"
)

// MongoVoteLedger stores votes in the "votes" collection with a unique
// (issue, user) index.
type MongoVoteLedger struct {
	col *mongo.Collection
}

// NewMongoVoteLedger wraps the votes collection.
func NewMongoVoteLedger(db *mongo.Database) *MongoVoteLedger {
	return &MongoVoteLedger{col: db.Collection("votes")}
}

// EnsureIndexes creates the unique compound index for (issue, user).
func (l *MongoVoteLedger) EnsureIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := l.col.Indexes().CreateOne(ctx, indexModel)
	return err
}

func (l *MongoVoteLedger) Exists(ctx context.Context, voter, issue primitive.ObjectID) (bool, error) {
	count, err := l.col.CountDocuments(ctx, bson.M{"issue": issue, "user": voter})
	if err != nil {
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return count > 0, nil
}

func (l *MongoVoteLedger) Insert(ctx context.Context, voter, issue primitive.ObjectID) (*models.Vote, error) {
	vote := &models.Vote{
		ID:        primitive.NewObjectID(),
		Issue:     issue,
		User:      voter,
		CreatedAt: time.Now(),
	}

	if _, err := l.col.InsertOne(ctx, vote); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("vote for issue %s by %s: %w", issue.Hex(), voter.Hex(), models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}

	return vote, nil
}

func (l *MongoVoteLedger) Delete(ctx context.Context, voter, issue primitive.ObjectID) (bool, error) {
	res, err := l.col.DeleteOne(ctx, bson.M{"issue": issue, "user": voter})
	if err != nil {
		return false, fmt.Errorf("failed to delete vote: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (l *MongoVoteLedger) CountByIssue(ctx context.Context, issue primitive.ObjectID) (int64, error) {
	return l.col.CountDocuments(ctx, bson.M{"issue": issue})
}

func (l *MongoVoteLedger) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return l.col.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
}

func (l *MongoVoteLedger) DeleteByIssue(ctx context.Context, issue primitive.ObjectID) (int64, error) {
	res, err := l.col.DeleteMany(ctx, bson.M{"issue": issue})
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes for issue: %w", err)
	}
	return res.DeletedCount, nil
}

func (l *MongoVoteLedger) Stats(ctx context.Context) (*models.VoteStats, error) {
	pipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":    nil,
				"total":  bson.M{"$sum": 1},
				"voters": bson.M{"$addToSet": "$user"},
				"issues": bson.M{"$addToSet": "$issue"},
			},
		},
		{
			"$project": bson.M{
				"_id":          0,
				"totalVotes":   "$total",
				"uniqueVoters": bson.M{"$size": "$voters"},
				"uniqueIssues": bson.M{"$size": "$issues"},
			},
		},
	}

	cursor, err := l.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate vote stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.VoteStats
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode vote stats: %w", err)
	}
	if len(rows) == 0 {
		return &models.VoteStats{}, nil
	}
	return &rows[0], nil
}
