package controller

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/payment-events/internal/application/ingest"
	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WebhookController receives provider webhook deliveries.
type WebhookController struct {
	ingestUC *ingest.UseCase
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewWebhookController(ingestUC *ingest.UseCase, logger zerolog.Logger, metrics *observability.Metrics) *WebhookController {
	return &WebhookController{
		ingestUC: ingestUC,
		logger:   logger,
		metrics:  metrics,
	}
}

// Receive handles POST /webhooks/{provider}. The raw body is read before any
// parsing so verifiers sign exactly what the provider sent.
func (h *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.count(provider, "rejected")
		writeError(w, err)
		return
	}

	res, err := h.ingestUC.Execute(r.Context(), provider, r.Header, body)
	if err != nil {
		h.observe(provider, start)
		switch {
		case errors.Is(err, domainErrors.ErrUnauthorized):
			h.logger.Warn().Err(err).Str("provider", provider).Msg("Webhook signature rejected")
			h.count(provider, "unauthorized")
			if h.metrics != nil {
				h.metrics.VerifyFailures.WithLabelValues(provider, verifyFailureReason(err)).Inc()
			}
		case domainErrors.Retryable(err):
			h.logger.Error().Err(err).Str("provider", provider).Msg("Webhook ingestion deferred")
			h.count(provider, "retryable")
		default:
			h.logger.Error().Err(err).Str("provider", provider).Msg("Webhook ingestion failed")
			h.count(provider, "error")
		}
		writeError(w, err)
		return
	}

	h.observe(provider, start)
	h.count(provider, string(res.Outcome))

	h.logger.Info().
		Str("provider", provider).
		Str("event_id", res.EventID).
		Str("outcome", string(res.Outcome)).
		Msg("Webhook processed")

	writeJSON(w, http.StatusOK, WebhookResponse{
		Outcome: string(res.Outcome),
		EventID: res.EventID,
	})
}

func (h *WebhookController) count(provider, outcome string) {
	if h.metrics != nil {
		h.metrics.EventsIngested.WithLabelValues(provider, outcome).Inc()
	}
}

func (h *WebhookController) observe(provider string, start time.Time) {
	if h.metrics != nil {
		h.metrics.IngestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
}

func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrMissingSecret):
		return "missing_secret"
	case errors.Is(err, domainErrors.ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(err, domainErrors.ErrBadSignature):
		return "bad_signature"
	default:
		return "unauthorized"
	}
}
