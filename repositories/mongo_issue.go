package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicpulse-be/models"
)

const earthRadiusKm = 6378.1

// MongoIssueStore stores issues in the "issues" collection.
type MongoIssueStore struct {
	col *mongo.Collection
}

// NewMongoIssueStore wraps the issues collection.
func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{col: db.Collection("issues")}
}

// EnsureIndexes creates the secondary indexes the list, geo and text queries
// rely on.
func (s *MongoIssueStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "votes", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "address", Value: "text"},
			},
			Options: options.Index().SetWeights(bson.D{
				{Key: "title", Value: 10},
				{Key: "description", Value: 5},
				{Key: "address", Value: 1},
			}),
		},
	}

	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) error {
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

	if _, err := s.col.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

func (s *MongoIssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve issue: %w", err)
	}
	return &issue, nil
}

// buildFilter maps the typed filter onto a bson predicate.
// The same predicate feeds both the page query and the count query.
func buildFilter(f *IssueFilter) bson.M {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	if f.Category != nil {
		filter["category"] = *f.Category
	}
	if f.Priority != nil {
		filter["priority"] = *f.Priority
	}
	if f.ReportedBy != nil {
		filter["reportedBy"] = *f.ReportedBy
	}
	if f.Search != "" {
		filter["$text"] = bson.M{"$search": f.Search}
	}
	if f.Near != nil {
		// $centerSphere instead of $near so the geo clause can be combined
		// with $text and with CountDocuments.
		filter["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": []interface{}{
					[]float64{f.Near.Lng, f.Near.Lat},
					f.Near.RadiusKm / earthRadiusKm,
				},
			},
		}
	}
	return filter
}

func sortSpec(f *IssueFilter) bson.D {
	dir := -1
	if f.SortOrder == Ascending {
		dir = 1
	}
	return bson.D{{Key: string(f.SortBy), Value: dir}}
}

func (s *MongoIssueStore) List(ctx context.Context, f *IssueFilter) ([]models.Issue, int64, error) {
	f.Normalize()
	filter := buildFilter(f)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count issues: %w", err)
	}

	findOptions := options.Find().
		SetSort(sortSpec(f)).
		SetSkip(f.Skip()).
		SetLimit(int64(f.Limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("failed to decode issues: %w", err)
	}

	return issues, total, nil
}

func (s *MongoIssueStore) FindNear(ctx context.Context, lng, lat, maxMeters float64) ([]models.Issue, error) {
	filter := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry":    models.NewGeoPoint(lng, lat),
				"$maxDistance": maxMeters,
			},
		},
	}

	cursor, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to run proximity query: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode nearby issues: %w", err)
	}
	return issues, nil
}

func (s *MongoIssueStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus, assignee *primitive.ObjectID) (*models.Issue, error) {
	if !models.ValidStatus(status) {
		return nil, models.NewValidationError("status", "invalid status")
	}

	set := bson.M{"status": status, "updatedAt": time.Now()}
	update := bson.M{"$set": set}
	// resolvedAt is derived from status, so it moves in the same
	// single-document update.
	if status == models.Resolved {
		set["resolvedAt"] = time.Now()
	} else {
		update["$unset"] = bson.M{"resolvedAt": ""}
	}
	if assignee != nil {
		set["assignedTo"] = *assignee
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}
	return &issue, nil
}

func (s *MongoIssueStore) UpdateFields(ctx context.Context, id primitive.ObjectID, patch *IssuePatch) (*models.Issue, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	set := bson.M{"updatedAt": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Images != nil {
		set["images"] = patch.Images
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	return &issue, nil
}

func (s *MongoIssueStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

func (s *MongoIssueStore) AddComment(ctx context.Context, id primitive.ObjectID, c *models.Comment) (*models.Issue, error) {
	if err := models.ValidateComment(c); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Now()

	update := bson.M{
		"$push": bson.M{"comments": c},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &issue, nil
}

func (s *MongoIssueStore) ApplyVote(ctx context.Context, issue, voter primitive.ObjectID, delta int) error {
	update := bson.M{
		"$inc": bson.M{"votes": delta},
	}
	if delta > 0 {
		update["$addToSet"] = bson.M{"votedBy": voter}
	} else {
		update["$pull"] = bson.M{"votedBy": voter}
	}

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": issue}, update)
	if err != nil {
		return fmt.Errorf("failed to apply vote to issue: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("issue %s: %w", issue.Hex(), models.ErrNotFound)
	}
	return nil
}

func (s *MongoIssueStore) CountsByStatus(ctx context.Context, reportedBy *primitive.ObjectID) (map[models.IssueStatus]int64, error) {
	match := bson.M{}
	if reportedBy != nil {
		match["reportedBy"] = *reportedBy
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate status counts: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.IssueStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := map[models.IssueStatus]int64{}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *MongoIssueStore) CountsByCategory(ctx context.Context) ([]CategoryCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category counts: %w", err)
	}
	defer cursor.Close(ctx)

	rows := []CategoryCount{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode category counts: %w", err)
	}
	return rows, nil
}

func (s *MongoIssueStore) CountsByPriority(ctx context.Context) ([]PriorityCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate priority counts: %w", err)
	}
	defer cursor.Close(ctx)

	rows := []PriorityCount{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode priority counts: %w", err)
	}
	return rows, nil
}

func (s *MongoIssueStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
}

func (s *MongoIssueStore) AvgResolutionTime(ctx context.Context) (time.Duration, error) {
	pipeline := []bson.M{
		{
			"$match": bson.M{
				"status":     models.Resolved,
				"resolvedAt": bson.M{"$ne": nil},
			},
		},
		{
			"$project": bson.M{
				"millis": bson.M{"$subtract": []interface{}{"$resolvedAt", "$createdAt"}},
			},
		},
		{
			"$group": bson.M{"_id": nil, "avgMillis": bson.M{"$avg": "$millis"}},
		},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate resolution time: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		AvgMillis float64 `bson:"avgMillis"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode resolution time: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return time.Duration(rows[0].AvgMillis) * time.Millisecond, nil
}
