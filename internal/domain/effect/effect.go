package effect

import (
	"github.com/google/uuid"
)

// Type tags the closed set of post-commit side effects.
type Type string

const (
	TypeSendConfirmationEmail Type = "send_confirmation_email"
	TypeRecordAnalyticsEvent  Type = "record_analytics_event"
	TypeInvalidateCache       Type = "invalidate_cache"
)

// Effect is a side effect computed by the reconciler and executed by the
// dispatcher after the commit. Effects are best-effort: their failure is never
// surfaced to the webhook caller.
type Effect struct {
	Type     Type
	RecordID uuid.UUID // ledger record the effect refers to

	// SendConfirmationEmail
	OwnerID string
	Subject string

	// RecordAnalyticsEvent
	EventName  string
	Properties map[string]any

	// InvalidateCache
	CacheKeys []string
}

// Email builds a confirmation email effect.
func Email(recordID uuid.UUID, ownerID, subject string) Effect {
	return Effect{
		Type:     TypeSendConfirmationEmail,
		RecordID: recordID,
		OwnerID:  ownerID,
		Subject:  subject,
	}
}

// Analytics builds an analytics event effect.
func Analytics(recordID uuid.UUID, name string, props map[string]any) Effect {
	return Effect{
		Type:       TypeRecordAnalyticsEvent,
		RecordID:   recordID,
		EventName:  name,
		Properties: props,
	}
}

// CacheInvalidation builds a cache invalidation effect.
func CacheInvalidation(recordID uuid.UUID, keys ...string) Effect {
	return Effect{
		Type:      TypeInvalidateCache,
		RecordID:  recordID,
		CacheKeys: keys,
	}
}
