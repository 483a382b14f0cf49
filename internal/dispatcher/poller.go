// Package dispatcher moves committed side effects out of the ledger: a poller
// publishes outbox rows to the effect stream, and a consumer-group reader
// executes them against the notifier ports. Effect failure is logged and
// counted, never surfaced to the webhook path.
package dispatcher

import (
	"context"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/outbox"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// TransactionManager scopes one poll pass to a single transaction so the
// FOR UPDATE SKIP LOCKED batch stays locked until its rows are marked.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StreamPublisher publishes one outbox entry to the effect stream.
type StreamPublisher interface {
	PublishEffect(ctx context.Context, entryID string, effectType string, recordID string, data map[string]any) error
}

// Poller drains pending outbox rows into the effect stream.
type Poller struct {
	txManager    TransactionManager
	outboxRepo   outbox.Repository
	producer     StreamPublisher
	logger       zerolog.Logger
	metrics      *observability.Metrics
	batchSize    int
	pollInterval time.Duration
}

func NewPoller(
	txManager TransactionManager,
	outboxRepo outbox.Repository,
	producer StreamPublisher,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	batchSize int,
	pollInterval time.Duration,
) *Poller {
	if batchSize <= 0 {
		batchSize = 10
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Poller{
		txManager:    txManager,
		outboxRepo:   outboxRepo,
		producer:     producer,
		logger:       logger,
		metrics:      metrics,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := p.Drain(ctx); err != nil {
			p.logger.Error().Err(err).Msg("Outbox poll failed")
		}
	}
}

// Drain publishes one batch of pending entries. Rows that fail to publish are
// marked failed and escalate through the outbox retry counter.
func (p *Poller) Drain(ctx context.Context) error {
	err := p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := p.outboxRepo.GetPending(txCtx, p.batchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			err := p.producer.PublishEffect(
				ctx,
				entry.ID.String(),
				string(entry.EffectType),
				entry.RecordID.String(),
				entry.Payload,
			)
			if err != nil {
				p.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("effect_type", string(entry.EffectType)).
					Msg("Failed to publish outbox entry")
				if markErr := p.outboxRepo.MarkFailed(txCtx, entry.ID); markErr != nil {
					return markErr
				}
				p.count("failed")
				continue
			}
			if err := p.outboxRepo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			p.count("published")
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.gaugeBacklog(ctx)
	return nil
}

// gaugeBacklog refreshes the pending-backlog gauge after a drain pass. Best
// effort: a failed count never fails the drain.
func (p *Poller) gaugeBacklog(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	n, err := p.outboxRepo.CountPending(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to count outbox backlog")
		return
	}
	p.metrics.OutboxPending.Set(float64(n))
}

func (p *Poller) count(status string) {
	if p.metrics != nil {
		p.metrics.OutboxPublished.WithLabelValues(status).Inc()
	}
}
