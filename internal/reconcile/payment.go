package reconcile

import (
	"fmt"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
)

// paymentTargets maps normalized transitions onto payment statuses.
var paymentTargets = map[string]payment.Status{
	event.TransitionCompleted: payment.StatusCompleted,
	event.TransitionFailed:    payment.StatusFailed,
	event.TransitionRefunded:  payment.StatusRefunded,
}

// ApplyPayment applies a verified payment event to a ledger record. Invalid
// transitions (terminal-state redeliveries) are a no-op: the record is left
// untouched and the caller still finalizes the event as processed.
func ApplyPayment(rec *payment.Record, ev *event.Verified) (Result, error) {
	target, ok := paymentTargets[ev.Payload.Transition]
	if !ok {
		return Result{}, fmt.Errorf("payment event %s: unknown transition %q", ev.QualifiedID(), ev.Payload.Transition)
	}

	if !rec.CanTransitionTo(target) {
		return noOp(ReasonInvalidTransition), nil
	}
	if err := rec.TransitionTo(target); err != nil {
		return Result{}, err
	}

	return Result{
		Applied: true,
		Reason:  ReasonApplied,
		Effects: paymentEffects(rec, target),
	}, nil
}

func paymentEffects(rec *payment.Record, target payment.Status) []effect.Effect {
	props := map[string]any{
		"provider":     string(rec.Provider),
		"external_id":  rec.ExternalID,
		"amount_cents": rec.Amount.ValueCents,
		"currency":     rec.Amount.Currency,
	}

	switch target {
	case payment.StatusCompleted:
		return []effect.Effect{
			effect.Email(rec.ID, rec.ExternalID, "Payment received"),
			effect.Analytics(rec.ID, "payment_completed", props),
			effect.CacheInvalidation(rec.ID, "payment:"+rec.ExternalID),
		}
	case payment.StatusFailed:
		return []effect.Effect{
			effect.Analytics(rec.ID, "payment_failed", props),
		}
	case payment.StatusRefunded:
		return []effect.Effect{
			effect.Email(rec.ID, rec.ExternalID, "Payment refunded"),
			effect.Analytics(rec.ID, "payment_refunded", props),
			effect.CacheInvalidation(rec.ID, "payment:"+rec.ExternalID),
		}
	}
	return nil
}
