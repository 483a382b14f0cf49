package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
)

// CardGateSignatureHeader carries the timestamped HMAC signature,
// "t=<unix>,v1=<hex hmac-sha256 of "<unix>.<body>">".
const CardGateSignatureHeader = "Cardgate-Signature"

// CardGateVerifier verifies card-network style deliveries with a
// timestamp-tolerant HMAC-SHA256 shared-secret scheme.
type CardGateVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewCardGateVerifier creates a verifier. tolerance bounds how far the signed
// timestamp may drift from receipt time; replays outside the window fail.
func NewCardGateVerifier(secret string, tolerance time.Duration) *CardGateVerifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &CardGateVerifier{secret: secret, tolerance: tolerance}
}

func (v *CardGateVerifier) Provider() event.Provider {
	return event.ProviderCardGate
}

func (v *CardGateVerifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (*event.Verified, error) {
	if v.secret == "" {
		return nil, errors.ErrMissingSecret
	}

	ts, sig, err := parseCardGateHeader(headers.Get(CardGateSignatureHeader))
	if err != nil {
		return nil, err
	}

	signedAt := time.Unix(ts, 0)
	drift := receivedAt.Sub(signedAt)
	if drift < -v.tolerance || drift > v.tolerance {
		return nil, fmt.Errorf("timestamp outside tolerance: %w", errors.ErrBadSignature)
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("v1 component not hex: %w", errors.ErrMalformedSignature)
	}
	if !hmac.Equal(expected, got) {
		return nil, errors.ErrBadSignature
	}

	return decodeCardGateEvent(rawBody)
}

func parseCardGateHeader(header string) (ts int64, sig string, err error) {
	if header == "" {
		return 0, "", errors.ErrMalformedSignature
	}
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("bad timestamp component: %w", errors.ErrMalformedSignature)
			}
		case "v1":
			sig = val
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", errors.ErrMalformedSignature
	}
	return ts, sig, nil
}

// cardGateEvent is the wire format of a cardgate webhook body.
type cardGateEvent struct {
	ID      string `json:"id" validate:"required"`
	Type    string `json:"type" validate:"required"`
	Created int64  `json:"created"`
	Data    struct {
		Object           string `json:"object" validate:"required,oneof=payment subscription"`
		ID               string `json:"id" validate:"required"`
		Amount           int64  `json:"amount"`
		Currency         string `json:"currency"`
		OwnerID          string `json:"owner_id"`
		PlanID           string `json:"plan_id"`
		Status           string `json:"status"`
		CurrentPeriodEnd int64  `json:"current_period_end"`
		CancelAt         *int64 `json:"cancel_at"`
	} `json:"data"`
}

// cardGateTransitions normalizes cardgate event types to ledger transitions.
var cardGateTransitions = map[string]string{
	"payment.succeeded":      event.TransitionCompleted,
	"payment.failed":         event.TransitionFailed,
	"payment.refunded":       event.TransitionRefunded,
	"subscription.trialing":  event.TransitionTrialing,
	"subscription.activated": event.TransitionActive,
	"subscription.past_due":  event.TransitionPastDue,
	"subscription.canceled":  event.TransitionCanceled,
}

func decodeCardGateEvent(rawBody []byte) (*event.Verified, error) {
	var e cardGateEvent
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, errors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(&e); err != nil {
		return nil, errors.NewValidationError("body", err.Error())
	}

	transition, ok := cardGateTransitions[e.Type]
	if !ok {
		return nil, errors.NewValidationError("type", "unsupported event type "+e.Type)
	}

	payload := event.Payload{
		ExternalID: e.Data.ID,
		Transition: transition,
		OccurredAt: time.Unix(e.Created, 0),
	}
	switch e.Data.Object {
	case "payment":
		payload.Kind = event.KindPayment
		payload.AmountCents = e.Data.Amount
		payload.Currency = strings.ToUpper(e.Data.Currency)
	case "subscription":
		payload.Kind = event.KindSubscription
		payload.OwnerID = e.Data.OwnerID
		payload.PlanID = e.Data.PlanID
		payload.CurrentPeriodEnd = time.Unix(e.Data.CurrentPeriodEnd, 0)
		if e.Data.CancelAt != nil {
			t := time.Unix(*e.Data.CancelAt, 0)
			payload.CancelAt = &t
		}
	}

	return &event.Verified{
		Provider: event.ProviderCardGate,
		ID:       e.ID,
		Type:     e.Type,
		Payload:  payload,
	}, nil
}
