package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/google/uuid"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Record is a ledger payment record. It is owned by the ledger repository and
// mutated only through reconciler-computed transitions.
type Record struct {
	ID          uuid.UUID
	ExternalID  string // provider transaction/order id, unique per provider
	Provider    event.Provider
	Amount      Amount
	Status      Status
	Version     int64 // optimistic concurrency guard
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time // set exactly once on terminal success
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueCents < 0 {
		return errors.NewValidationError("amount", "must not be negative")
	}
	if a.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// NewRecord creates a pending payment record. Pending is the only initial
// state; records are created when the payment intent is established, before
// any webhook referencing them arrives.
func NewRecord(provider event.Provider, externalID string, amount Amount) (*Record, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if externalID == "" {
		return nil, errors.ErrInvalidInput
	}

	now := time.Now()
	return &Record{
		ID:         uuid.New(),
		ExternalID: externalID,
		Provider:   provider,
		Amount:     amount,
		Status:     StatusPending,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanTransitionTo checks if the record can transition to the given status
func (r *Record) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {
			StatusCompleted,
			StatusFailed,
		},
		StatusCompleted: {
			StatusRefunded,
		},
		StatusFailed:   {}, // Terminal state
		StatusRefunded: {}, // Terminal state
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

// TransitionTo transitions the record to a new status
func (r *Record) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	r.Status = newStatus
	r.UpdatedAt = time.Now()

	if newStatus == StatusCompleted && r.CompletedAt == nil {
		now := time.Now()
		r.CompletedAt = &now
	}

	return nil
}

// MarkCompleted transitions the record to completed status
func (r *Record) MarkCompleted() error {
	return r.TransitionTo(StatusCompleted)
}

// MarkFailed transitions the record to failed status
func (r *Record) MarkFailed() error {
	return r.TransitionTo(StatusFailed)
}

// MarkRefunded transitions the record to refunded status
func (r *Record) MarkRefunded() error {
	return r.TransitionTo(StatusRefunded)
}

// IsTerminal checks if the record is in a terminal state. Refunded may still
// follow completed.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusFailed || r.Status == StatusRefunded
}
