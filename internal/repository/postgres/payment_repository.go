package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const paymentColumns = `id, external_id, provider, amount, currency, status, version, created_at, updated_at, completed_at`

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Record) error {
	amountStr := centsToNumericString(p.Amount.ValueCents)

	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.ExternalID, string(p.Provider), amountStr, p.Amount.Currency,
		string(p.Status), p.Version, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("payment %s/%s exists: %w", p.Provider, p.ExternalID, domainErrors.ErrInvalidInput)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment record by its internal id.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Record, error) {
	return r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// GetByExternalID retrieves a payment record by provider-scoped external id.
func (r *PaymentRepository) GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*payment.Record, error) {
	return r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider = $1 AND external_id = $2`,
		string(provider), externalID))
}

// Update persists a mutation guarded by a compare-and-swap on the version
// column. Two concurrent commits against one record can never both succeed.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Record) error {
	amountStr := centsToNumericString(p.Amount.ValueCents)

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  amount=$1, currency=$2, status=$3, version=version+1, updated_at=$4, completed_at=$5
		 WHERE id=$6 AND version=$7`,
		amountStr, p.Amount.Currency, string(p.Status), p.UpdatedAt, p.CompletedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOptimisticLockFailed
	}
	p.Version++
	return nil
}

// scanPayment scans a payment record from any source implementing the scanner interface.
func (r *PaymentRepository) scanPayment(s scanner) (*payment.Record, error) {
	p := &payment.Record{}
	var (
		provider  string
		amountStr string
		status    string
	)
	err := s.Scan(
		&p.ID, &p.ExternalID, &provider, &amountStr, &p.Amount.Currency,
		&status, &p.Version, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	cents, err := numericStringToCents(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	p.Amount.ValueCents = cents
	p.Provider = event.Provider(provider)
	p.Status = payment.Status(status)
	return p, nil
}
