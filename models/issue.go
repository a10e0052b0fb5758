package models

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Infrastructure IssueCategory = "infrastructure"
	Sanitation     IssueCategory = "sanitation"
	Safety         IssueCategory = "safety"
	Environment    IssueCategory = "environment"
	Transportation IssueCategory = "transportation"
	Other          IssueCategory = "other"
)

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	InProgress IssueStatus = "in-progress"
	Resolved   IssueStatus = "resolved"
)

// IssuePriority enum
type IssuePriority string

const (
	Low    IssuePriority = "low"
	Medium IssuePriority = "medium"
	High   IssuePriority = "high"
	Urgent IssuePriority = "urgent"
)

// Field constraints enforced by Issue.Validate.
const (
	TitleMinLen       = 5
	TitleMaxLen       = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 1000
	AddressMaxLen     = 200
	CommentMaxLen     = 500
	MaxImages         = 5
)

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// ValidCategory reports whether c is a known category.
func ValidCategory(c IssueCategory) bool {
	switch c {
	case Infrastructure, Sanitation, Safety, Environment, Transportation, Other:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case Pending, InProgress, Resolved:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case Low, Medium, High, Urgent:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point, coordinates ordered [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Lng returns the longitude component.
func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude component.
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Comment is embedded in an issue; comments are append-only.
type Comment struct {
	Text       string             `bson:"text" json:"text"`
	Author     primitive.ObjectID `bson:"author" json:"author"`
	AuthorName string             `bson:"authorName" json:"authorName"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a user.
//
// Votes and VotedBy are a denormalized cache of the vote ledger, kept
// consistent by the vote toggle transaction; the votes collection is the
// source of truth.
type Issue struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Category    IssueCategory        `bson:"category" json:"category"`
	Status      IssueStatus          `bson:"status" json:"status"`
	Priority    IssuePriority        `bson:"priority" json:"priority"`
	Location    GeoPoint             `bson:"location" json:"location"`
	Address     string               `bson:"address" json:"address"`
	Images      []string             `bson:"images" json:"images"`
	ReportedBy  primitive.ObjectID   `bson:"reportedBy" json:"reportedBy"`
	AssignedTo  *primitive.ObjectID  `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Votes       int64                `bson:"votes" json:"votes"`
	VotedBy     []primitive.ObjectID `bson:"votedBy" json:"votedBy"`
	Comments    []Comment            `bson:"comments" json:"comments"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt  *time.Time           `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// HasVoter reports whether id is present in VotedBy.
func (i *Issue) HasVoter(id primitive.ObjectID) bool {
	for _, v := range i.VotedBy {
		if v == id {
			return true
		}
	}
	return false
}

// Validate checks every field constraint. The store calls this on create so
// boundary checks can never be the last line of defense.
func (i *Issue) Validate() error {
	fields := map[string]string{}

	if l := len(i.Title); l < TitleMinLen || l > TitleMaxLen {
		fields["title"] = "must be between 5 and 100 characters"
	}
	if l := len(i.Description); l < DescriptionMinLen || l > DescriptionMaxLen {
		fields["description"] = "must be between 10 and 1000 characters"
	}
	if !ValidCategory(i.Category) {
		fields["category"] = "invalid category"
	}
	if !ValidStatus(i.Status) {
		fields["status"] = "invalid status"
	}
	if !ValidPriority(i.Priority) {
		fields["priority"] = "invalid priority"
	}
	if len(i.Location.Coordinates) != 2 {
		fields["location"] = "coordinates must be [longitude, latitude]"
	} else {
		if lng := i.Location.Lng(); lng < -180 || lng > 180 {
			fields["longitude"] = "must be between -180 and 180"
		}
		if lat := i.Location.Lat(); lat < -90 || lat > 90 {
			fields["latitude"] = "must be between -90 and 90"
		}
	}
	if len(i.Address) > AddressMaxLen {
		fields["address"] = "must be at most 200 characters"
	}
	if len(i.Images) > MaxImages {
		fields["images"] = "at most 5 images allowed"
	} else {
		for _, u := range i.Images {
			if !imageURLPattern.MatchString(u) {
				fields["images"] = "each image must be a jpg, jpeg, png, gif or webp URL"
				break
			}
		}
	}
	if i.ReportedBy.IsZero() {
		fields["reportedBy"] = "reporter is required"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ValidateComment checks an embedded comment before it is appended.
func ValidateComment(c *Comment) error {
	fields := map[string]string{}
	if c.Text == "" || len(c.Text) > CommentMaxLen {
		fields["text"] = "must be between 1 and 500 characters"
	}
	if c.Author.IsZero() {
		fields["author"] = "author is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
