package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedEventRepository implements event.DedupStore using PostgreSQL. The
// primary-key constraint on the qualified event id is the atomic
// insert-if-absent that makes the store safe under concurrent deliveries.
type ProcessedEventRepository struct {
	pool *pgxpool.Pool
}

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository(pool *pgxpool.Pool) *ProcessedEventRepository {
	return &ProcessedEventRepository{pool: pool}
}

func (r *ProcessedEventRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Reserve inserts the dedup row if absent; ErrDuplicateEvent when present.
func (r *ProcessedEventRepository) Reserve(ctx context.Context, p *event.Processed) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO processed_events (id, provider, event_type, first_seen_at)
		 VALUES ($1, $2, $3, $4)`,
		p.ID, string(p.Provider), p.EventType, p.FirstSeenAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateEvent
		}
		return fmt.Errorf("reserve event: %w", err)
	}
	return nil
}

// Release removes a reservation after a failed commit.
func (r *ProcessedEventRepository) Release(ctx context.Context, qualifiedID string) error {
	_, err := r.db(ctx).Exec(ctx,
		`DELETE FROM processed_events WHERE id = $1`, qualifiedID)
	if err != nil {
		return fmt.Errorf("release event reservation: %w", err)
	}
	return nil
}

// Get returns the dedup row, or nil when the id has not been seen.
func (r *ProcessedEventRepository) Get(ctx context.Context, qualifiedID string) (*event.Processed, error) {
	p := &event.Processed{}
	var provider string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, provider, event_type, first_seen_at FROM processed_events WHERE id = $1`,
		qualifiedID,
	).Scan(&p.ID, &provider, &p.EventType, &p.FirstSeenAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // not seen
		}
		return nil, fmt.Errorf("get processed event: %w", err)
	}
	p.Provider = event.Provider(provider)
	return p, nil
}
