package outbox

import (
	"testing"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewEntry_EmailRoundTrip(t *testing.T) {
	recordID := uuid.New()
	e := effect.Email(recordID, "user-1", "Payment received")

	entry := NewEntry(e)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 5, entry.MaxRetries)

	back := entry.Effect()
	assert.Equal(t, effect.TypeSendConfirmationEmail, back.Type)
	assert.Equal(t, recordID, back.RecordID)
	assert.Equal(t, "user-1", back.OwnerID)
	assert.Equal(t, "Payment received", back.Subject)
}

func TestNewEntry_CacheKeysRoundTrip(t *testing.T) {
	recordID := uuid.New()
	entry := NewEntry(effect.CacheInvalidation(recordID, "sub:user-1", "plan:pro"))

	back := entry.Effect()
	assert.Equal(t, effect.TypeInvalidateCache, back.Type)
	assert.Equal(t, []string{"sub:user-1", "plan:pro"}, back.CacheKeys)
}

func TestNewEntry_AnalyticsRoundTrip(t *testing.T) {
	recordID := uuid.New()
	entry := NewEntry(effect.Analytics(recordID, "payment_completed", map[string]any{"amount_cents": int64(2500)}))

	back := entry.Effect()
	assert.Equal(t, effect.TypeRecordAnalyticsEvent, back.Type)
	assert.Equal(t, "payment_completed", back.EventName)
	assert.Equal(t, map[string]any{"amount_cents": int64(2500)}, back.Properties)
}
