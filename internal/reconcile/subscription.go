package reconcile

import (
	stderrors "errors"
	"fmt"

	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
)

// subscriptionTargets maps normalized transitions onto subscription statuses.
var subscriptionTargets = map[string]subscription.Status{
	event.TransitionTrialing: subscription.StatusTrialing,
	event.TransitionActive:   subscription.StatusActive,
	event.TransitionPastDue:  subscription.StatusPastDue,
	event.TransitionCanceled: subscription.StatusCanceled,
}

// ApplySubscription applies a verified subscription event to a ledger record.
// siblings are the caller-loaded ACTIVE/TRIALING records for the same
// (owner, plan); when the event promotes rec to an active-like state, every
// sibling is demoted to CANCELED in the same result so the commit never leaves
// two active siblings, even transiently.
func ApplySubscription(rec *subscription.Record, siblings []*subscription.Record, ev *event.Verified) (Result, error) {
	target, ok := subscriptionTargets[ev.Payload.Transition]
	if !ok {
		return Result{}, fmt.Errorf("subscription event %s: unknown transition %q", ev.QualifiedID(), ev.Payload.Transition)
	}

	if !rec.CanTransitionTo(target) {
		return noOp(ReasonInvalidTransition), nil
	}

	if err := rec.TransitionTo(target, ev.Payload.CurrentPeriodEnd); err != nil {
		if stderrors.Is(err, errors.ErrStaleTransition) {
			return noOp(ReasonStale), nil
		}
		return Result{}, err
	}
	if ev.Payload.CancelAt != nil {
		rec.CancelAt = ev.Payload.CancelAt
	}

	result := Result{
		Applied: true,
		Reason:  ReasonApplied,
	}

	if rec.IsActiveLike() {
		for _, sib := range siblings {
			if sib.ID == rec.ID || !sib.IsActiveLike() {
				continue
			}
			if err := sib.Demote(); err != nil {
				return Result{}, fmt.Errorf("demote sibling %s: %w", sib.ID, err)
			}
			result.Demoted = append(result.Demoted, sib)
		}
	}

	result.Effects = subscriptionEffects(rec, target, result.Demoted)
	return result, nil
}

func subscriptionEffects(rec *subscription.Record, target subscription.Status, demoted []*subscription.Record) []effect.Effect {
	props := map[string]any{
		"provider":    string(rec.Provider),
		"external_id": rec.ExternalID,
		"plan_id":     rec.PlanID,
		"status":      string(target),
	}
	if len(demoted) > 0 {
		ids := make([]string, len(demoted))
		for i, d := range demoted {
			ids[i] = d.ExternalID
		}
		props["superseded"] = ids
	}

	cacheKeys := []string{"entitlements:" + rec.OwnerID}

	switch target {
	case subscription.StatusTrialing, subscription.StatusActive:
		return []effect.Effect{
			effect.Email(rec.ID, rec.OwnerID, "Subscription active"),
			effect.Analytics(rec.ID, "subscription_"+string(target), props),
			effect.CacheInvalidation(rec.ID, cacheKeys...),
		}
	case subscription.StatusCanceled:
		return []effect.Effect{
			effect.Email(rec.ID, rec.OwnerID, "Subscription canceled"),
			effect.Analytics(rec.ID, "subscription_canceled", props),
			effect.CacheInvalidation(rec.ID, cacheKeys...),
		}
	default:
		return []effect.Effect{
			effect.Analytics(rec.ID, "subscription_"+string(target), props),
			effect.CacheInvalidation(rec.ID, cacheKeys...),
		}
	}
}
