package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert writes an entry. The ingest use case calls it inside the same
	// transaction as the record mutation so effects exist iff the commit did.
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns up to limit unpublished entries, oldest first.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	// CountPending returns how many entries still await publishing.
	CountPending(ctx context.Context) (int64, error)

	// MarkPublished records that the entry reached the effect stream.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed bumps the retry count, escalating to failed once the
	// entry's retry budget is spent.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
