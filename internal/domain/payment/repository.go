package payment

import (
	"context"

	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/google/uuid"
)

// Repository is the persistence port for payment records.
type Repository interface {
	// Create inserts a new pending record.
	Create(ctx context.Context, r *Record) error

	// GetByID retrieves a record by internal id.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetByExternalID retrieves a record by provider-scoped external id.
	// Returns ErrPaymentNotFound when absent.
	GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*Record, error)

	// Update persists a mutation with a compare-and-swap on the version
	// column. Returns ErrOptimisticLockFailed when a concurrent commit won.
	Update(ctx context.Context, r *Record) error
}
