package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/payment-events/internal/bootstrap"
	"github.com/cassiomorais/payment-events/internal/dispatcher"
	infraRedis "github.com/cassiomorais/payment-events/internal/infrastructure/redis"
	"github.com/cassiomorais/payment-events/internal/notify"
	"github.com/cassiomorais/payment-events/internal/repository/postgres"
	"github.com/cassiomorais/payment-events/pkg/retry"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payment-events-dispatcher", "payment_events_dispatcher")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	dispatcherCfg := app.Config.Dispatcher

	// --- Outbox poller ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	producer := infraRedis.NewStreamProducer(app.Redis)

	poller := dispatcher.NewPoller(
		txManager,
		outboxRepo,
		producer,
		app.Logger,
		app.Metrics,
		int(dispatcherCfg.BatchSize),
		dispatcherCfg.OutboxPollInterval,
	)

	// --- Effect consumer ---
	streamConsumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.EffectStream,
		dispatcherCfg.ConsumerGroup,
		app.Config.InstanceID,
		dispatcherCfg.BatchSize,
		dispatcherCfg.BlockDuration,
	)
	if err := streamConsumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	executor := dispatcher.NewExecutor(
		notify.NewFactory(nil, nil),
		dispatcher.NewRedisCache(app.Redis),
		retry.Config{
			MaxAttempts:  dispatcherCfg.RetryAttempts,
			InitialDelay: dispatcherCfg.RetryInitialDelay,
			MaxDelay:     dispatcherCfg.RetryMaxDelay,
			Multiplier:   2.0,
		},
		app.Logger,
		app.Metrics,
	)

	consumer := dispatcher.NewConsumer(
		streamConsumer,
		executor,
		producer,
		func(key string) dispatcher.Lock {
			return infraRedis.NewClaimLock(app.Redis, key, dispatcherCfg.ClaimTTL)
		},
		app.Logger,
		app.Metrics,
	)

	app.Logger.Info().
		Str("stream", infraRedis.EffectStream).
		Str("group", dispatcherCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Dispatcher started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(gCtx)
	})

	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down dispatcher...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Dispatcher error")
	}
	app.Logger.Info().Msg("Dispatcher exited")
}
