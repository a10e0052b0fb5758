package utils

import (
	"context"

	"github.com/sirupsen/logrus"

	"civicpulse-be/models"
)

// StatusChangedEvent is emitted after an issue status transition commits.
type StatusChangedEvent struct {
	RecipientEmail string             `json:"recipientEmail"`
	RecipientName  string             `json:"recipientName"`
	IssueTitle     string             `json:"issueTitle"`
	OldStatus      models.IssueStatus `json:"oldStatus"`
	NewStatus      models.IssueStatus `json:"newStatus"`
	IssueID        string             `json:"issueId"`
}

// Notifier delivers status-change notifications. Delivery is fire-and-forget:
// a failure is logged by the caller and never rolls back the status change.
type Notifier interface {
	StatusChanged(ctx context.Context, event *StatusChangedEvent) error
}

// LogNotifier writes notifications to the structured log. It stands in for a
// transactional email provider in development and tests.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) StatusChanged(_ context.Context, event *StatusChangedEvent) error {
	n.log.WithFields(logrus.Fields{
		"issue":     event.IssueID,
		"recipient": event.RecipientEmail,
		"from":      event.OldStatus,
		"to":        event.NewStatus,
	}).Info("issue status changed")
	return nil
}
