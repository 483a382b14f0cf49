package testutil

import (
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/google/uuid"
)

func NewTestPayment(provider event.Provider, externalID string, amountCents int64, currency string) *payment.Record {
	now := time.Now()
	return &payment.Record{
		ID:         uuid.New(),
		ExternalID: externalID,
		Provider:   provider,
		Amount:     payment.Amount{ValueCents: amountCents, Currency: currency},
		Status:     payment.StatusPending,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewCompletedPayment(provider event.Provider, externalID string, amountCents int64, currency string) *payment.Record {
	p := NewTestPayment(provider, externalID, amountCents, currency)
	p.Status = payment.StatusCompleted
	completedAt := time.Now()
	p.CompletedAt = &completedAt
	return p
}

func NewTestSubscription(provider event.Provider, externalID, ownerID, planID string, status subscription.Status, periodEnd time.Time) *subscription.Record {
	now := time.Now()
	return &subscription.Record{
		ID:               uuid.New(),
		ExternalID:       externalID,
		Provider:         provider,
		OwnerID:          ownerID,
		PlanID:           planID,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func NewPaymentEvent(provider event.Provider, eventID, externalID, transition string, amountCents int64) *event.Verified {
	return &event.Verified{
		Provider: provider,
		ID:       eventID,
		Type:     transition,
		Payload: event.Payload{
			Kind:        event.KindPayment,
			ExternalID:  externalID,
			Transition:  transition,
			AmountCents: amountCents,
			Currency:    "USD",
			OccurredAt:  time.Now(),
		},
	}
}

func NewSubscriptionEvent(provider event.Provider, eventID, externalID, transition string, periodEnd time.Time) *event.Verified {
	return &event.Verified{
		Provider: provider,
		ID:       eventID,
		Type:     transition,
		Payload: event.Payload{
			Kind:             event.KindSubscription,
			ExternalID:       externalID,
			Transition:       transition,
			CurrentPeriodEnd: periodEnd,
			OccurredAt:       time.Now(),
		},
	}
}
