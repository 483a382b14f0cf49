package outbox

import (
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/google/uuid"
)

// Entry is a durable side-effect row. Entries are inserted in the same
// transaction as the ledger commit, then published to the effect stream by the
// dispatcher's poller.
type Entry struct {
	ID          uuid.UUID
	EffectType  effect.Type
	RecordID    uuid.UUID
	Payload     map[string]any
	Status      Status
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// NewEntry wraps a reconciler effect into an outbox row.
func NewEntry(e effect.Effect) *Entry {
	return &Entry{
		ID:         uuid.New(),
		EffectType: e.Type,
		RecordID:   e.RecordID,
		Payload:    payloadOf(e),
		Status:     StatusPending,
		RetryCount: 0,
		MaxRetries: 5,
		CreatedAt:  time.Now(),
	}
}

// Effect reconstructs the reconciler effect from the stored payload.
func (e *Entry) Effect() effect.Effect {
	out := effect.Effect{
		Type:     e.EffectType,
		RecordID: e.RecordID,
	}
	if v, ok := e.Payload["owner_id"].(string); ok {
		out.OwnerID = v
	}
	if v, ok := e.Payload["subject"].(string); ok {
		out.Subject = v
	}
	if v, ok := e.Payload["event_name"].(string); ok {
		out.EventName = v
	}
	if v, ok := e.Payload["properties"].(map[string]any); ok {
		out.Properties = v
	}
	if v, ok := e.Payload["cache_keys"].([]any); ok {
		for _, k := range v {
			if s, ok := k.(string); ok {
				out.CacheKeys = append(out.CacheKeys, s)
			}
		}
	}
	return out
}

func payloadOf(e effect.Effect) map[string]any {
	p := map[string]any{}
	switch e.Type {
	case effect.TypeSendConfirmationEmail:
		p["owner_id"] = e.OwnerID
		p["subject"] = e.Subject
	case effect.TypeRecordAnalyticsEvent:
		p["event_name"] = e.EventName
		p["properties"] = e.Properties
	case effect.TypeInvalidateCache:
		keys := make([]any, len(e.CacheKeys))
		for i, k := range e.CacheKeys {
			keys[i] = k
		}
		p["cache_keys"] = keys
	}
	return p
}
