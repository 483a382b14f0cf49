package dispatcher

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	"github.com/cassiomorais/payment-events/internal/notify"
	"github.com/cassiomorais/payment-events/pkg/retry"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache deletes invalidated cache keys.
type Cache interface {
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client *goredis.Client
}

func NewRedisCache(client *goredis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Executor runs one side effect with exponential backoff; email and analytics
// calls additionally go through their sink's circuit breaker.
type Executor struct {
	sinks    *notify.Factory
	cache    Cache
	retryCfg retry.Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewExecutor(
	sinks *notify.Factory,
	cache Cache,
	retryCfg retry.Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Executor {
	return &Executor{
		sinks:    sinks,
		cache:    cache,
		retryCfg: retryCfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Execute runs the effect to completion or to retry exhaustion.
func (e *Executor) Execute(ctx context.Context, eff effect.Effect) error {
	start := time.Now()
	err := e.execute(ctx, eff)
	if e.metrics != nil {
		e.metrics.EffectDuration.WithLabelValues(string(eff.Type)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("%w: effect %s for record %s: %v",
			domainErrors.ErrEffectRetriesExhausted, eff.Type, eff.RecordID, err)
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, eff effect.Effect) error {
	cfg := e.retryCfg
	cfg.OnRetry = func(n uint, err error) {
		if e.metrics != nil {
			e.metrics.EffectRetries.WithLabelValues(string(eff.Type)).Inc()
		}
		e.logger.Warn().Err(err).
			Uint("attempt", n).
			Str("effect_type", string(eff.Type)).
			Str("record_id", eff.RecordID.String()).
			Msg("Retrying effect")
	}

	switch eff.Type {
	case effect.TypeSendConfirmationEmail:
		emailer, breaker := e.sinks.Email()
		_, err := retry.DoWithResult(ctx, cfg, func() (*notify.Result, error) {
			return breaker.Execute(func() (*notify.Result, error) {
				return emailer.SendEmail(ctx, notify.EmailRequest{
					RecordID: eff.RecordID,
					OwnerID:  eff.OwnerID,
					Subject:  eff.Subject,
				})
			})
		})
		return err

	case effect.TypeRecordAnalyticsEvent:
		tracker, breaker := e.sinks.Tracker()
		_, err := retry.DoWithResult(ctx, cfg, func() (*notify.Result, error) {
			return breaker.Execute(func() (*notify.Result, error) {
				return tracker.RecordEvent(ctx, notify.AnalyticsRequest{
					RecordID:   eff.RecordID,
					Name:       eff.EventName,
					Properties: eff.Properties,
				})
			})
		})
		return err

	case effect.TypeInvalidateCache:
		return retry.Do(ctx, cfg, func() error {
			return e.cache.Delete(ctx, eff.CacheKeys...)
		})

	default:
		return fmt.Errorf("unknown effect type %q", eff.Type)
	}
}
