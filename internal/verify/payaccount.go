package verify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
)

// payaccount transmission headers. The provider signs
// "<transmissionID>|<transmissionTime>|<webhookID>|<crc32(body)>" with its
// certificate key and sends the signature base64-encoded.
const (
	PayAccountTransmissionID   = "Payaccount-Transmission-Id"
	PayAccountTransmissionTime = "Payaccount-Transmission-Time"
	PayAccountTransmissionSig  = "Payaccount-Transmission-Sig"
)

// PayAccountVerifier verifies account-based provider deliveries with an
// RSA-SHA256 signature against a configured certificate.
type PayAccountVerifier struct {
	webhookID string
	pubKey    *rsa.PublicKey
}

// NewPayAccountVerifier parses the PEM certificate and builds a verifier.
// certPEM may be empty; verification then fails with ErrMissingSecret.
func NewPayAccountVerifier(webhookID string, certPEM []byte) (*PayAccountVerifier, error) {
	v := &PayAccountVerifier{webhookID: webhookID}
	if len(certPEM) == 0 {
		return v, nil
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("payaccount certificate: no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse payaccount certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("payaccount certificate: unsupported key type %T", cert.PublicKey)
	}
	v.pubKey = pub
	return v, nil
}

func (v *PayAccountVerifier) Provider() event.Provider {
	return event.ProviderPayAccount
}

func (v *PayAccountVerifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (*event.Verified, error) {
	if v.pubKey == nil || v.webhookID == "" {
		return nil, errors.ErrMissingSecret
	}

	transmissionID := headers.Get(PayAccountTransmissionID)
	transmissionTime := headers.Get(PayAccountTransmissionTime)
	sigB64 := headers.Get(PayAccountTransmissionSig)
	if transmissionID == "" || transmissionTime == "" || sigB64 == "" {
		return nil, errors.ErrMalformedSignature
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("signature not base64: %w", errors.ErrMalformedSignature)
	}

	signed := fmt.Sprintf("%s|%s|%s|%d",
		transmissionID, transmissionTime, v.webhookID, crc32.ChecksumIEEE(rawBody))
	digest := sha256.Sum256([]byte(signed))

	if err := rsa.VerifyPKCS1v15(v.pubKey, crypto.SHA256, digest[:], sig); err != nil {
		return nil, errors.ErrBadSignature
	}

	return decodePayAccountEvent(rawBody)
}

// payAccountEvent is the wire format of a payaccount webhook body.
type payAccountEvent struct {
	ID         string `json:"id" validate:"required"`
	EventType  string `json:"event_type" validate:"required"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID     string `json:"id" validate:"required"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		CustomID    string `json:"custom_id"` // owner reference
		PlanID      string `json:"plan_id"`
		BillingInfo struct {
			NextBillingTime string `json:"next_billing_time"`
		} `json:"billing_info"`
	} `json:"resource"`
}

// payAccountTransitions normalizes payaccount event types.
var payAccountTransitions = map[string]struct {
	kind       event.Kind
	transition string
}{
	"PAYMENT.CAPTURE.COMPLETED":        {event.KindPayment, event.TransitionCompleted},
	"PAYMENT.CAPTURE.DENIED":           {event.KindPayment, event.TransitionFailed},
	"PAYMENT.CAPTURE.REFUNDED":         {event.KindPayment, event.TransitionRefunded},
	"BILLING.SUBSCRIPTION.TRIAL":       {event.KindSubscription, event.TransitionTrialing},
	"BILLING.SUBSCRIPTION.ACTIVATED":   {event.KindSubscription, event.TransitionActive},
	"BILLING.SUBSCRIPTION.SUSPENDED":   {event.KindSubscription, event.TransitionPastDue},
	"BILLING.SUBSCRIPTION.CANCELLED":   {event.KindSubscription, event.TransitionCanceled},
	"BILLING.SUBSCRIPTION.REACTIVATED": {event.KindSubscription, event.TransitionActive},
}

func decodePayAccountEvent(rawBody []byte) (*event.Verified, error) {
	var e payAccountEvent
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, errors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(&e); err != nil {
		return nil, errors.NewValidationError("body", err.Error())
	}

	mapping, ok := payAccountTransitions[e.EventType]
	if !ok {
		return nil, errors.NewValidationError("event_type", "unsupported event type "+e.EventType)
	}

	payload := event.Payload{
		Kind:       mapping.kind,
		ExternalID: e.Resource.ID,
		Transition: mapping.transition,
	}
	if e.CreateTime != "" {
		if t, err := time.Parse(time.RFC3339, e.CreateTime); err == nil {
			payload.OccurredAt = t
		}
	}

	switch mapping.kind {
	case event.KindPayment:
		cents, err := decimalToCents(e.Resource.Amount.Value)
		if err != nil {
			return nil, errors.NewValidationError("resource.amount.value", err.Error())
		}
		payload.AmountCents = cents
		payload.Currency = strings.ToUpper(e.Resource.Amount.CurrencyCode)
	case event.KindSubscription:
		payload.OwnerID = e.Resource.CustomID
		payload.PlanID = e.Resource.PlanID
		if e.Resource.BillingInfo.NextBillingTime != "" {
			t, err := time.Parse(time.RFC3339, e.Resource.BillingInfo.NextBillingTime)
			if err != nil {
				return nil, errors.NewValidationError("resource.billing_info.next_billing_time", err.Error())
			}
			payload.CurrentPeriodEnd = t
		}
	}

	return &event.Verified{
		Provider: event.ProviderPayAccount,
		ID:       e.ID,
		Type:     e.EventType,
		Payload:  payload,
	}, nil
}

// decimalToCents parses a "25.00" style decimal amount into cents. The
// decimal text is split directly; float64 cannot represent large amounts
// exactly.
func decimalToCents(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	rest := s
	neg := strings.HasPrefix(rest, "-")
	if neg {
		rest = rest[1:]
	}

	whole, frac, _ := strings.Cut(rest, ".")
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("bad decimal amount %q", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad decimal amount %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad decimal amount %q", s)
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}
