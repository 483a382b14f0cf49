// Package notify holds the outbound ports for side-effect delivery: the email
// notifier and the analytics tracker the dispatcher calls after commit. Real
// integrations implement these interfaces; the in-tree mocks simulate latency
// and failure for local runs and tests.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Result holds the outcome of a delivery call.
type Result struct {
	DeliveryID   string
	Status       string // "delivered", "failed"
	ErrorMessage string
}

// EmailRequest asks the notifier to send a confirmation email to a record
// owner.
type EmailRequest struct {
	RecordID uuid.UUID
	OwnerID  string
	Subject  string
}

// AnalyticsRequest asks the tracker to record a ledger event.
type AnalyticsRequest struct {
	RecordID   uuid.UUID
	Name       string
	Properties map[string]any
}

// Emailer sends confirmation emails.
type Emailer interface {
	Name() string
	SendEmail(ctx context.Context, req EmailRequest) (*Result, error)
}

// Tracker records analytics events.
type Tracker interface {
	Name() string
	RecordEvent(ctx context.Context, req AnalyticsRequest) (*Result, error)
}
