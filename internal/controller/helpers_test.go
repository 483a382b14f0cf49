package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_MapsSentinels(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unauthorized", domainErrors.ErrBadSignature, http.StatusUnauthorized, "unauthorized"},
		{"unknown provider", domainErrors.ErrUnknownProvider, http.StatusNotFound, "unknown_provider"},
		{"conflict exhausted", domainErrors.ErrConflictRetryExhausted, http.StatusServiceUnavailable, "retry_later"},
		{"storage down", domainErrors.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
		{"wrapped sentinel", fmt.Errorf("load: %w", domainErrors.ErrPaymentNotFound), http.StatusNotFound, "not_found"},
		{"unmapped", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode, resp.Code)
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domainErrors.NewValidationError("type", "unsupported event type"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, WebhookResponse{Outcome: "applied", EventID: "cardgate:evt_1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"outcome":"applied","event_id":"cardgate:evt_1"}`, rec.Body.String())
}
