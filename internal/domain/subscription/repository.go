package subscription

import (
	"context"

	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/google/uuid"
)

// Repository is the persistence port for subscription records.
type Repository interface {
	// Create inserts a new record.
	Create(ctx context.Context, r *Record) error

	// GetByID retrieves a record by internal id.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetByExternalID retrieves a record by provider-scoped external id.
	// Returns ErrSubscriptionNotFound when absent.
	GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*Record, error)

	// ListActiveSiblings returns ACTIVE/TRIALING records for (owner, plan)
	// excluding the given record id. Used to enforce the at-most-one-active
	// invariant before committing an active-like transition.
	ListActiveSiblings(ctx context.Context, ownerID, planID string, exclude uuid.UUID) ([]*Record, error)

	// Update persists a mutation with a compare-and-swap on the version
	// column. Returns ErrOptimisticLockFailed when a concurrent commit won.
	Update(ctx context.Context, r *Record) error
}
