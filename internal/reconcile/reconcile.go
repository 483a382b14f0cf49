// Package reconcile computes ledger state transitions from verified provider
// events. It is pure: callers load the affected records (and any active
// siblings) up front, and the reconciler returns the mutations plus the side
// effects to enqueue, without touching storage.
package reconcile

import (
	"github.com/cassiomorais/payment-events/internal/domain/effect"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
)

// Reason says why an event did or did not mutate a record.
type Reason string

const (
	ReasonApplied Reason = "applied"
	// ReasonInvalidTransition covers provider redelivery of stale events
	// requesting transitions out of a terminal state. The event is still
	// recorded as processed.
	ReasonInvalidTransition Reason = "invalid_transition"
	// ReasonStale covers subscription events carrying a period end older than
	// the stored value.
	ReasonStale Reason = "stale_transition"
)

// Result is the reconciler's verdict for one event.
type Result struct {
	Applied bool
	Reason  Reason
	Effects []effect.Effect

	// Demoted are active-like siblings canceled in the same commit to keep
	// the at-most-one-active invariant; only set for subscription events.
	Demoted []*subscription.Record
}

func noOp(reason Reason) Result {
	return Result{Applied: false, Reason: reason}
}
