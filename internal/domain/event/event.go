package event

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
)

// Provider identifies the external payment provider that delivered an event.
type Provider string

const (
	// ProviderCardGate is the card-network style provider (timestamp-tolerant
	// HMAC signatures, order ids like "pay_*").
	ProviderCardGate Provider = "cardgate"
	// ProviderPayAccount is the account-based provider (certificate signatures,
	// transmission envelopes).
	ProviderPayAccount Provider = "payaccount"
)

// ParseProvider maps a URL/config token onto the closed provider set.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderCardGate:
		return ProviderCardGate, nil
	case ProviderPayAccount:
		return ProviderPayAccount, nil
	default:
		return "", fmt.Errorf("%q: %w", s, errors.ErrUnknownProvider)
	}
}

// Kind says which ledger record an event targets.
type Kind string

const (
	KindPayment      Kind = "payment"
	KindSubscription Kind = "subscription"
)

// Verified is a provider event whose signature has been checked against the
// raw request body. Only verified events enter the ingestion pipeline.
type Verified struct {
	Provider Provider
	ID       string // provider-scoped event id, e.g. "evt_123"
	Type     string // provider event type, e.g. "payment.succeeded"
	Payload  Payload
}

// Transition is the provider-normalized state change an event requests.
// Verifiers map each provider's event-type vocabulary onto this closed set;
// the reconciler never sees provider-specific type strings.
const (
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
	TransitionRefunded  = "refunded"
	TransitionTrialing  = "trialing"
	TransitionActive    = "active"
	TransitionPastDue   = "past_due"
	TransitionCanceled  = "canceled"
)

// Payload is the decoded, provider-normalized event body.
type Payload struct {
	Kind       Kind
	ExternalID string // provider transaction/subscription id the event refers to
	Transition string // normalized target state, one of the Transition* values

	// Payment fields
	AmountCents int64
	Currency    string

	// Subscription fields
	OwnerID          string
	PlanID           string
	CurrentPeriodEnd time.Time
	CancelAt         *time.Time

	OccurredAt time.Time
}

// QualifiedID returns the provider-qualified event id used as the dedup key,
// e.g. "cardgate:evt_123".
func (v *Verified) QualifiedID() string {
	return QualifyID(v.Provider, v.ID)
}

// QualifyID builds the provider-qualified form of an event id.
func QualifyID(provider Provider, eventID string) string {
	return fmt.Sprintf("%s:%s", provider, eventID)
}

// Processed is the write-once dedup row recording that an event id has been
// applied. A second insert for the same id signals ErrDuplicateEvent instead
// of mutating the row.
type Processed struct {
	ID          string // provider-qualified event id
	Provider    Provider
	EventType   string
	FirstSeenAt time.Time
}

// NewProcessed creates the dedup row for a verified event.
func NewProcessed(v *Verified) *Processed {
	return &Processed{
		ID:          v.QualifiedID(),
		Provider:    v.Provider,
		EventType:   v.Type,
		FirstSeenAt: time.Now(),
	}
}
