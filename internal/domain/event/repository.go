package event

import "context"

// DedupStore is the persistent set of processed event ids. Reserve is the
// single serialization point that prevents double-processing of one event id;
// it must be atomic at the storage layer (unique constraint or equivalent).
type DedupStore interface {
	// Reserve inserts the dedup row if absent. Returns ErrDuplicateEvent when
	// the id is already present.
	Reserve(ctx context.Context, p *Processed) error

	// Release removes a reservation after a failed commit so the provider's
	// redelivery is not permanently blocked.
	Release(ctx context.Context, qualifiedID string) error

	// Get returns the dedup row, or nil when the id has not been seen.
	Get(ctx context.Context, qualifiedID string) (*Processed, error)
}
