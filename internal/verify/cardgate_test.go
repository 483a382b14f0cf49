package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardGateSecret = "whsec_test_secret"

func signCardGate(t *testing.T, secret string, ts time.Time, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func cardGatePaymentBody(eventID, eventType, externalID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":1700000000,"data":{"object":"payment","id":%q,"amount":2500,"currency":"usd"}}`,
		eventID, eventType, externalID,
	))
}

func TestCardGate_Verify_Success(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, cardGateSecret, now, body))

	got, err := v.Verify(headers, body, now)
	require.NoError(t, err)
	assert.Equal(t, event.ProviderCardGate, got.Provider)
	assert.Equal(t, "evt_1", got.ID)
	assert.Equal(t, "cardgate:evt_1", got.QualifiedID())
	assert.Equal(t, event.KindPayment, got.Payload.Kind)
	assert.Equal(t, "pay_1", got.Payload.ExternalID)
	assert.Equal(t, event.TransitionCompleted, got.Payload.Transition)
	assert.Equal(t, int64(2500), got.Payload.AmountCents)
	assert.Equal(t, "USD", got.Payload.Currency)
}

func TestCardGate_Verify_Subscription(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	periodEnd := now.Add(30 * 24 * time.Hour).Unix()
	body := []byte(fmt.Sprintf(
		`{"id":"evt_9","type":"subscription.activated","created":1700000000,"data":{"object":"subscription","id":"sub_1","owner_id":"user-1","plan_id":"plan-pro","current_period_end":%d}}`,
		periodEnd,
	))

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, cardGateSecret, now, body))

	got, err := v.Verify(headers, body, now)
	require.NoError(t, err)
	assert.Equal(t, event.KindSubscription, got.Payload.Kind)
	assert.Equal(t, event.TransitionActive, got.Payload.Transition)
	assert.Equal(t, "user-1", got.Payload.OwnerID)
	assert.Equal(t, "plan-pro", got.Payload.PlanID)
	assert.Equal(t, periodEnd, got.Payload.CurrentPeriodEnd.Unix())
}

func TestCardGate_Verify_BadSignature(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, "wrong_secret", now, body))

	_, err := v.Verify(headers, body, now)
	assert.ErrorIs(t, err, errors.ErrBadSignature)
}

func TestCardGate_Verify_TamperedBody(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, cardGateSecret, now, body))

	tampered := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_2")
	_, err := v.Verify(headers, tampered, now)
	assert.ErrorIs(t, err, errors.ErrBadSignature)
}

func TestCardGate_Verify_TimestampOutsideTolerance(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, cardGateSecret, now.Add(-time.Hour), body))

	_, err := v.Verify(headers, body, now)
	assert.ErrorIs(t, err, errors.ErrBadSignature)
}

func TestCardGate_Verify_MalformedHeader(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no components", "garbage"},
		{"missing v1", "t=1700000000"},
		{"missing t", "v1=deadbeef"},
		{"bad timestamp", "t=abc,v1=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.header != "" {
				headers.Set(CardGateSignatureHeader, tt.header)
			}
			_, err := v.Verify(headers, body, time.Now())
			assert.ErrorIs(t, err, errors.ErrMalformedSignature)
		})
	}
}

func TestCardGate_Verify_MissingSecret(t *testing.T) {
	v := NewCardGateVerifier("", 5*time.Minute)
	body := cardGatePaymentBody("evt_1", "payment.succeeded", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, "t=1700000000,v1=deadbeef")

	_, err := v.Verify(headers, body, time.Now())
	assert.ErrorIs(t, err, errors.ErrMissingSecret)
}

func TestCardGate_Verify_UnsupportedType(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 5*time.Minute)
	now := time.Now()
	body := cardGatePaymentBody("evt_1", "payment.disputed", "pay_1")

	headers := http.Header{}
	headers.Set(CardGateSignatureHeader, signCardGate(t, cardGateSecret, now, body))

	_, err := v.Verify(headers, body, now)
	var ve *errors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRegistry(t *testing.T) {
	v := NewCardGateVerifier(cardGateSecret, 0)
	reg := NewRegistry(v)

	got, err := reg.Get(event.ProviderCardGate)
	require.NoError(t, err)
	assert.Equal(t, event.ProviderCardGate, got.Provider())

	_, err = reg.Get(event.ProviderPayAccount)
	assert.ErrorIs(t, err, errors.ErrUnknownProvider)
}
