package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/domain/outbox"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamReader reads, acknowledges, and reclaims effect stream messages.
type StreamReader interface {
	Read(ctx context.Context) ([]goredis.XStream, error)
	Ack(ctx context.Context, messageID string) error
	Reclaim(ctx context.Context, minIdle time.Duration, count int64) ([]goredis.XMessage, error)
}

// DeadLetter receives effects that will never be executed.
type DeadLetter interface {
	PublishToDLQ(ctx context.Context, entryID, reason string, data map[string]any) error
}

// Lock guards one effect against duplicate execution across consumers.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a claim lock for an effect key.
type LockFactory func(key string) Lock

const (
	reclaimEvery   = time.Minute
	reclaimMinIdle = 5 * time.Minute
	reclaimBatch   = 100
)

// Consumer reads the effect stream and executes each effect exactly once per
// claim. A held claim skips the message without acking so the owning consumer
// (or a later reclaim pass) runs it. Terminal failures and undecodable
// messages go to the dead-letter stream and are acked.
type Consumer struct {
	reader   StreamReader
	executor *Executor
	dlq      DeadLetter
	locks    LockFactory
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewConsumer(
	reader StreamReader,
	executor *Executor,
	dlq DeadLetter,
	locks LockFactory,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Consumer {
	return &Consumer{
		reader:   reader,
		executor: executor,
		dlq:      dlq,
		locks:    locks,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run consumes until the context is canceled. A slower ticker sweeps up
// messages stranded by consumers that died between read and ack.
func (c *Consumer) Run(ctx context.Context) error {
	reclaim := time.NewTicker(reclaimEvery)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reclaim.C:
			c.reclaimStranded(ctx)
		default:
		}

		streams, err := c.reader.Read(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to read effect stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.Handle(ctx, msg)
			}
		}
	}
}

func (c *Consumer) reclaimStranded(ctx context.Context) {
	msgs, err := c.reader.Reclaim(ctx, reclaimMinIdle, reclaimBatch)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to reclaim stranded effects")
		return
	}
	for _, msg := range msgs {
		c.logger.Warn().Str("message_id", msg.ID).Msg("Reclaimed stranded effect")
		c.Handle(ctx, msg)
	}
}

// Handle executes one stream message.
func (c *Consumer) Handle(ctx context.Context, msg goredis.XMessage) {
	entryID, eff, err := decodeMessage(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping undecodable effect message")
		c.deadLetter(ctx, msg.ID, "undecodable", msg.Values)
		_ = c.reader.Ack(ctx, msg.ID)
		return
	}

	lock := c.locks("effect:" + entryID)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		c.logger.Warn().Str("entry_id", entryID).Msg("Effect claim held elsewhere, skipping")
		return
	}
	defer lock.Release(ctx)

	if err := c.executor.Execute(ctx, eff); err != nil {
		c.logger.Error().Err(err).
			Str("entry_id", entryID).
			Str("effect_type", string(eff.Type)).
			Msg("Effect permanently failed")
		c.count(eff.Type, "failed")
		c.deadLetter(ctx, entryID, "retries_exhausted", msg.Values)
	} else {
		c.count(eff.Type, "success")
	}

	// Acked either way: permanent failures are terminal, not redelivered.
	_ = c.reader.Ack(ctx, msg.ID)
}

func (c *Consumer) deadLetter(ctx context.Context, entryID, reason string, data map[string]any) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.PublishToDLQ(ctx, entryID, reason, data); err != nil {
		c.logger.Error().Err(err).Str("entry_id", entryID).Msg("Failed to dead-letter effect")
	}
}

func (c *Consumer) count(t effect.Type, status string) {
	if c.metrics != nil {
		c.metrics.EffectsDispatched.WithLabelValues(string(t), status).Inc()
	}
}

// decodeMessage rebuilds the effect from the stream message written by the
// poller.
func decodeMessage(msg goredis.XMessage) (string, effect.Effect, error) {
	entryID, _ := msg.Values["entry_id"].(string)
	effectType, _ := msg.Values["effect_type"].(string)
	recordIDStr, _ := msg.Values["record_id"].(string)
	rawPayload, _ := msg.Values["payload"].(string)

	if entryID == "" || effectType == "" {
		return "", effect.Effect{}, fmt.Errorf("message %s: missing entry_id or effect_type", msg.ID)
	}

	recordID, err := uuid.Parse(recordIDStr)
	if err != nil {
		return "", effect.Effect{}, fmt.Errorf("message %s: bad record_id %q: %w", msg.ID, recordIDStr, err)
	}

	payload := map[string]any{}
	if rawPayload != "" {
		if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
			return "", effect.Effect{}, fmt.Errorf("message %s: bad payload: %w", msg.ID, err)
		}
	}

	entry := outbox.Entry{
		EffectType: effect.Type(effectType),
		RecordID:   recordID,
		Payload:    payload,
	}
	return entryID, entry.Effect(), nil
}
