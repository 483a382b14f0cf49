package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/payment-events/internal/application/ingest"
	"github.com/cassiomorais/payment-events/internal/bootstrap"
	"github.com/cassiomorais/payment-events/internal/controller"
	"github.com/cassiomorais/payment-events/internal/infrastructure/config"
	"github.com/cassiomorais/payment-events/internal/repository/postgres"
	"github.com/cassiomorais/payment-events/internal/verify"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "payment-events-ingestd", "payment_events")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(app.Pool)
	processedRepo := postgres.NewProcessedEventRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Signature verifiers ---
	registry, err := buildVerifiers(&app.Config.Providers)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build webhook verifiers")
	}

	// --- Ingestion use case ---
	ingestUC := ingest.NewUseCase(
		registry,
		processedRepo,
		paymentRepo,
		subscriptionRepo,
		outboxRepo,
		txManager,
		app.Metrics,
		app.Config.Ingest.StorageTimeout,
		app.Config.Ingest.ConflictRetries,
	)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:         app.Pool,
		RedisClient:  app.Redis,
		Ingest:       ingestUC,
		Logger:       app.Logger,
		Metrics:      app.Metrics,
		CORSConfig:   app.Config.Server.CORS,
		MaxBodyBytes: app.Config.Ingest.MaxBodyBytes,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

func buildVerifiers(cfg *config.ProvidersConfig) (*verify.Registry, error) {
	var certPEM []byte
	if cfg.PayAccount.CertFile != "" {
		var err error
		certPEM, err = os.ReadFile(cfg.PayAccount.CertFile)
		if err != nil {
			return nil, fmt.Errorf("read payaccount cert: %w", err)
		}
	}

	payAccount, err := verify.NewPayAccountVerifier(cfg.PayAccount.WebhookID, certPEM)
	if err != nil {
		return nil, fmt.Errorf("payaccount verifier: %w", err)
	}

	return verify.NewRegistry(
		verify.NewCardGateVerifier(cfg.CardGate.SigningSecret, cfg.CardGate.Tolerance),
		payAccount,
	), nil
}
