package ingest

import (
	"context"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Outcome classifies what ingesting one event did to the ledger.
type Outcome string

const (
	// OutcomeApplied means the event mutated a record and its effects were
	// enqueued in the same transaction.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyProcessed means the event id was seen before; nothing
	// was written.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeOrphan means no record matches the event's external id. The
	// event is finalized as processed so redeliveries stay cheap.
	OutcomeOrphan Outcome = "orphan"
	// OutcomeNoOp means the requested transition is invalid from the stored
	// state (terminal-state redelivery). The event is finalized as processed.
	OutcomeNoOp Outcome = "no_op"
	// OutcomeStale means the event carried an older billing period than the
	// stored record. The event is finalized as processed.
	OutcomeStale Outcome = "stale"
)

// Result reports the ingestion verdict for one delivery.
type Result struct {
	Outcome Outcome
	EventID string // provider-qualified event id
}
