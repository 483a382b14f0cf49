package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository implements subscription.Repository using PostgreSQL.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const subscriptionColumns = `id, external_id, provider, owner_id, plan_id, status, current_period_end, cancel_at, version, created_at, updated_at`

// Create inserts a new subscription record.
func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Record) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.ExternalID, string(s.Provider), s.OwnerID, s.PlanID,
		string(s.Status), nullableTime(s.CurrentPeriodEnd), s.CancelAt, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("subscription %s/%s exists: %w", s.Provider, s.ExternalID, domainErrors.ErrInvalidInput)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription record by its internal id.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Record, error) {
	return r.scanSubscription(r.db(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// GetByExternalID retrieves a subscription record by provider-scoped external id.
func (r *SubscriptionRepository) GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*subscription.Record, error) {
	return r.scanSubscription(r.db(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider = $1 AND external_id = $2`,
		string(provider), externalID))
}

// ListActiveSiblings returns ACTIVE/TRIALING records for (owner, plan)
// excluding the given record id. Rows are locked FOR UPDATE: the caller reads
// them inside the commit transaction and may demote them, so a concurrent
// transition on a sibling must wait.
func (r *SubscriptionRepository) ListActiveSiblings(ctx context.Context, ownerID, planID string, exclude uuid.UUID) ([]*subscription.Record, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE owner_id = $1 AND plan_id = $2 AND id <> $3 AND status IN ('active', 'trialing')
		 ORDER BY created_at ASC
		 FOR UPDATE`,
		ownerID, planID, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("list active siblings: %w", err)
	}
	defer rows.Close()

	var records []*subscription.Record
	for rows.Next() {
		s, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, s)
	}
	return records, rows.Err()
}

// Update persists a mutation guarded by a compare-and-swap on the version column.
func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Record) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET
		  status=$1, current_period_end=$2, cancel_at=$3, version=version+1, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		string(s.Status), nullableTime(s.CurrentPeriodEnd), s.CancelAt, s.UpdatedAt,
		s.ID, s.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// The partial unique index on active-like (owner, plan) rows:
			// a concurrent activation of a different record won. Reload and
			// demote it through the conflict retry.
			return fmt.Errorf("subscription %s: concurrent activation for (%s, %s): %w",
				s.ID, s.OwnerID, s.PlanID, domainErrors.ErrOptimisticLockFailed)
		}
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOptimisticLockFailed
	}
	s.Version++
	return nil
}

// scanSubscription scans a subscription from any source implementing the scanner interface.
func (r *SubscriptionRepository) scanSubscription(sc scanner) (*subscription.Record, error) {
	s := &subscription.Record{}
	var (
		provider  string
		status    string
		periodEnd *time.Time
	)
	err := sc.Scan(
		&s.ID, &s.ExternalID, &provider, &s.OwnerID, &s.PlanID,
		&status, &periodEnd, &s.CancelAt, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	s.Provider = event.Provider(provider)
	s.Status = subscription.Status(status)
	if periodEnd != nil {
		s.CurrentPeriodEnd = *periodEnd
	}
	return s, nil
}

// nullableTime maps the zero time onto NULL. A subscription that has never
// completed an activation has no period end yet.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
