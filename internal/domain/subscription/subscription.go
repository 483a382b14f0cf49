package subscription

import (
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/google/uuid"
)

// Status represents the subscription status in the state machine
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

// Record is a ledger subscription record.
type Record struct {
	ID               uuid.UUID
	ExternalID       string // provider subscription id, unique per provider
	Provider         event.Provider
	OwnerID          string // opaque user/tenant reference
	PlanID           string
	Status           Status
	CurrentPeriodEnd time.Time
	CancelAt         *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewRecord creates an incomplete subscription record.
func NewRecord(provider event.Provider, externalID, ownerID, planID string) (*Record, error) {
	if externalID == "" || ownerID == "" || planID == "" {
		return nil, errors.ErrInvalidInput
	}

	now := time.Now()
	return &Record{
		ID:         uuid.New(),
		ExternalID: externalID,
		Provider:   provider,
		OwnerID:    ownerID,
		PlanID:     planID,
		Status:     StatusIncomplete,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanTransitionTo checks if the record can transition to the given status
func (r *Record) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusIncomplete: {
			StatusTrialing,
			StatusActive,
			StatusCanceled,
		},
		StatusTrialing: {
			StatusActive,
			StatusCanceled,
			StatusPastDue,
		},
		StatusActive: {
			StatusPastDue,
			StatusCanceled,
		},
		StatusPastDue: {
			StatusActive,
			StatusCanceled,
		},
		StatusCanceled: {}, // Terminal state
	}

	allowedTransitions, exists := transitions[r.Status]
	if !exists {
		return false
	}

	for _, allowed := range allowedTransitions {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the record to a new status, carrying the event's
// period end. A period end older than the stored value is stale.
func (r *Record) TransitionTo(newStatus Status, periodEnd time.Time) error {
	if periodEnd.Before(r.CurrentPeriodEnd) {
		return errors.ErrStaleTransition
	}
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	r.Status = newStatus
	r.CurrentPeriodEnd = periodEnd
	r.UpdatedAt = time.Now()
	return nil
}

// Demote cancels the record as part of a sibling supersession. It bypasses
// the staleness check: the newer sibling's event is what drives the demotion.
func (r *Record) Demote() error {
	if !r.CanTransitionTo(StatusCanceled) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot demote from "+string(r.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	r.Status = StatusCanceled
	r.UpdatedAt = time.Now()
	return nil
}

// IsActiveLike reports whether the record counts against the at-most-one
// active subscription per (owner, plan) invariant.
func (r *Record) IsActiveLike() bool {
	return r.Status == StatusActive || r.Status == StatusTrialing
}

// IsTerminal checks if the record is in a terminal state
func (r *Record) IsTerminal() bool {
	return r.Status == StatusCanceled
}
