package controller

import (
	"time"

	"github.com/cassiomorais/payment-events/internal/application/ingest"
	"github.com/cassiomorais/payment-events/internal/infrastructure/config"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payment-events/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
	Ingest       *ingest.UseCase
	Logger       zerolog.Logger
	Metrics      *observability.Metrics
	CORSConfig   config.CORSConfig
	MaxBodyBytes int64
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	webhookH := NewWebhookController(deps.Ingest, deps.Logger, deps.Metrics)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		maxBody := deps.MaxBodyBytes
		if maxBody <= 0 {
			maxBody = 1 << 20
		}
		r.With(customMW.MaxBody(maxBody)).Post("/{provider}", webhookH.Receive)
	})

	return r
}
