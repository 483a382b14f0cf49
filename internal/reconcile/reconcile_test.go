package reconcile

import (
	"testing"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentEvent(transition string) *event.Verified {
	return &event.Verified{
		Provider: event.ProviderCardGate,
		ID:       "evt_1",
		Type:     "payment." + transition,
		Payload: event.Payload{
			Kind:       event.KindPayment,
			ExternalID: "pay_1",
			Transition: transition,
		},
	}
}

func subEvent(transition string, periodEnd time.Time) *event.Verified {
	return &event.Verified{
		Provider: event.ProviderCardGate,
		ID:       "evt_2",
		Type:     "subscription." + transition,
		Payload: event.Payload{
			Kind:             event.KindSubscription,
			ExternalID:       "sub_1",
			Transition:       transition,
			OwnerID:          "user-1",
			PlanID:           "plan-pro",
			CurrentPeriodEnd: periodEnd,
		},
	}
}

func pendingPayment(t *testing.T) *payment.Record {
	t.Helper()
	r, err := payment.NewRecord(event.ProviderCardGate, "pay_1", payment.Amount{ValueCents: 2500, Currency: "USD"})
	require.NoError(t, err)
	return r
}

func activeSub(t *testing.T, externalID string) *subscription.Record {
	t.Helper()
	r, err := subscription.NewRecord(event.ProviderCardGate, externalID, "user-1", "plan-pro")
	require.NoError(t, err)
	require.NoError(t, r.TransitionTo(subscription.StatusActive, time.Now()))
	return r
}

func TestApplyPayment_Completed(t *testing.T) {
	rec := pendingPayment(t)

	res, err := ApplyPayment(rec, paymentEvent(event.TransitionCompleted))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, payment.StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)

	types := effectTypes(res.Effects)
	assert.Contains(t, types, effect.TypeSendConfirmationEmail)
	assert.Contains(t, types, effect.TypeRecordAnalyticsEvent)
	assert.Contains(t, types, effect.TypeInvalidateCache)
}

func TestApplyPayment_TerminalRedeliveryIsNoOp(t *testing.T) {
	rec := pendingPayment(t)
	require.NoError(t, rec.MarkFailed())

	res, err := ApplyPayment(rec, paymentEvent(event.TransitionCompleted))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonInvalidTransition, res.Reason)
	assert.Equal(t, payment.StatusFailed, rec.Status)
	assert.Empty(t, res.Effects)
}

func TestApplyPayment_RefundAfterCompleted(t *testing.T) {
	rec := pendingPayment(t)
	require.NoError(t, rec.MarkCompleted())

	res, err := ApplyPayment(rec, paymentEvent(event.TransitionRefunded))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, payment.StatusRefunded, rec.Status)
}

func TestApplyPayment_RefundBeforeCompletedIsNoOp(t *testing.T) {
	rec := pendingPayment(t)

	res, err := ApplyPayment(rec, paymentEvent(event.TransitionRefunded))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, payment.StatusPending, rec.Status)
}

func TestApplyPayment_UnknownTransition(t *testing.T) {
	rec := pendingPayment(t)
	_, err := ApplyPayment(rec, paymentEvent("disputed"))
	assert.Error(t, err)
}

func TestApplySubscription_Activate(t *testing.T) {
	rec, err := subscription.NewRecord(event.ProviderCardGate, "sub_1", "user-1", "plan-pro")
	require.NoError(t, err)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	res, err := ApplySubscription(rec, nil, subEvent(event.TransitionActive, periodEnd))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.Equal(t, periodEnd, rec.CurrentPeriodEnd)
	assert.Empty(t, res.Demoted)
}

func TestApplySubscription_StaleIsNoOp(t *testing.T) {
	rec := activeSub(t, "sub_1")
	stored := rec.CurrentPeriodEnd

	res, err := ApplySubscription(rec, nil, subEvent(event.TransitionPastDue, stored.Add(-time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonStale, res.Reason)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.Equal(t, stored, rec.CurrentPeriodEnd)
}

func TestApplySubscription_DemotesActiveSibling(t *testing.T) {
	sibling := activeSub(t, "sub_A")

	rec, err := subscription.NewRecord(event.ProviderCardGate, "sub_B", "user-1", "plan-pro")
	require.NoError(t, err)

	periodEnd := time.Now().Add(60 * 24 * time.Hour)
	res, err := ApplySubscription(rec, []*subscription.Record{sibling}, subEvent(event.TransitionActive, periodEnd))
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	require.Len(t, res.Demoted, 1)
	assert.Equal(t, subscription.StatusCanceled, sibling.Status)
}

func TestApplySubscription_NonActiveTransitionKeepsSiblings(t *testing.T) {
	sibling := activeSub(t, "sub_A")
	rec := activeSub(t, "sub_B")

	res, err := ApplySubscription(rec, []*subscription.Record{sibling},
		subEvent(event.TransitionPastDue, rec.CurrentPeriodEnd.Add(time.Hour)))
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, subscription.StatusPastDue, rec.Status)
	assert.Empty(t, res.Demoted)
	assert.Equal(t, subscription.StatusActive, sibling.Status)
}

func TestApplySubscription_CanceledIsTerminal(t *testing.T) {
	rec := activeSub(t, "sub_1")
	require.NoError(t, rec.TransitionTo(subscription.StatusCanceled, rec.CurrentPeriodEnd))

	res, err := ApplySubscription(rec, nil,
		subEvent(event.TransitionActive, rec.CurrentPeriodEnd.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonInvalidTransition, res.Reason)
}

func TestApplySubscription_CancelEmitsEffects(t *testing.T) {
	rec := activeSub(t, "sub_1")

	res, err := ApplySubscription(rec, nil,
		subEvent(event.TransitionCanceled, rec.CurrentPeriodEnd.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	types := effectTypes(res.Effects)
	assert.Contains(t, types, effect.TypeSendConfirmationEmail)
	assert.Contains(t, types, effect.TypeInvalidateCache)
}

func effectTypes(effects []effect.Effect) []effect.Type {
	types := make([]effect.Type, len(effects))
	for i, e := range effects {
		types[i] = e.Type
	}
	return types
}
