package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/outbox"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/cassiomorais/payment-events/internal/infrastructure/observability"
	"github.com/cassiomorais/payment-events/internal/reconcile"
	"github.com/cassiomorais/payment-events/internal/verify"
)

// UseCase ingests one provider webhook delivery: verify the signature, reserve
// the event id, reconcile the target record and commit the mutation together
// with its outbox effects. Safe for concurrent use.
type UseCase struct {
	verifiers        *verify.Registry
	dedup            event.DedupStore
	paymentRepo      payment.Repository
	subscriptionRepo subscription.Repository
	outboxRepo       outbox.Repository
	txManager        TransactionManager
	metrics          *observability.Metrics

	storageTimeout  time.Duration
	conflictRetries int
}

// NewUseCase creates an ingestion use case. metrics may be nil in tests.
func NewUseCase(
	verifiers *verify.Registry,
	dedup event.DedupStore,
	paymentRepo payment.Repository,
	subscriptionRepo subscription.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	metrics *observability.Metrics,
	storageTimeout time.Duration,
	conflictRetries int,
) *UseCase {
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	if conflictRetries <= 0 {
		conflictRetries = 3
	}
	return &UseCase{
		verifiers:        verifiers,
		dedup:            dedup,
		paymentRepo:      paymentRepo,
		subscriptionRepo: subscriptionRepo,
		outboxRepo:       outboxRepo,
		txManager:        txManager,
		metrics:          metrics,
		storageTimeout:   storageTimeout,
		conflictRetries:  conflictRetries,
	}
}

// Execute ingests a single raw delivery for the named provider.
//
// Verification failures return errors.ErrUnauthorized-wrapped errors and write
// nothing. Redeliveries resolve to OutcomeAlreadyProcessed. Orphan, no-op and
// stale events finalize the dedup reservation without touching any record.
// Storage failures release the reservation so the provider's retry can land.
func (uc *UseCase) Execute(ctx context.Context, providerToken string, headers http.Header, rawBody []byte) (*Result, error) {
	provider, err := event.ParseProvider(providerToken)
	if err != nil {
		return nil, err
	}

	verifier, err := uc.verifiers.Get(provider)
	if err != nil {
		return nil, err
	}

	ev, err := verifier.Verify(headers, rawBody, time.Now())
	if err != nil {
		return nil, err
	}

	res := &Result{EventID: ev.QualifiedID()}

	// The dedup insert is the only serialization point against concurrent
	// deliveries of the same event id: exactly one caller wins the reserve.
	if err := uc.reserve(ctx, ev); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateEvent) {
			res.Outcome = OutcomeAlreadyProcessed
			return res, nil
		}
		return nil, err
	}

	outcome, err := uc.apply(ctx, ev)
	if err != nil {
		// The event was never applied; drop the reservation so the
		// provider's redelivery is not permanently swallowed.
		uc.release(ev)
		return nil, err
	}

	res.Outcome = outcome
	return res, nil
}

func (uc *UseCase) reserve(ctx context.Context, ev *event.Verified) error {
	ctx, cancel := context.WithTimeout(ctx, uc.storageTimeout)
	defer cancel()

	if err := uc.dedup.Reserve(ctx, event.NewProcessed(ev)); err != nil {
		return uc.storageErr(err)
	}
	return nil
}

// release drops a dedup reservation after a failed apply. Best effort on a
// fresh context: the original one may already be canceled.
func (uc *UseCase) release(ev *event.Verified) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.storageTimeout)
	defer cancel()
	_ = uc.dedup.Release(ctx, ev.QualifiedID())
}

// apply loads the target record, reconciles and commits. Optimistic lock
// conflicts reload and retry up to conflictRetries times.
func (uc *UseCase) apply(ctx context.Context, ev *event.Verified) (Outcome, error) {
	var lastErr error

	for attempt := 0; attempt < uc.conflictRetries; attempt++ {
		outcome, err := uc.attempt(ctx, ev)
		if err == nil {
			return outcome, nil
		}
		if !stderrors.Is(err, errors.ErrOptimisticLockFailed) {
			return "", err
		}

		lastErr = err
		if uc.metrics != nil {
			uc.metrics.ConflictRetries.WithLabelValues(string(ev.Payload.Kind)).Inc()
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", errors.ErrConflictRetryExhausted, uc.conflictRetries, lastErr)
}

func (uc *UseCase) attempt(ctx context.Context, ev *event.Verified) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.storageTimeout)
	defer cancel()

	switch ev.Payload.Kind {
	case event.KindPayment:
		return uc.attemptPayment(ctx, ev)
	case event.KindSubscription:
		return uc.attemptSubscription(ctx, ev)
	default:
		return "", fmt.Errorf("event %s: unknown kind %q: %w", ev.QualifiedID(), ev.Payload.Kind, errors.ErrInvalidInput)
	}
}

func (uc *UseCase) attemptPayment(ctx context.Context, ev *event.Verified) (Outcome, error) {
	rec, err := uc.paymentRepo.GetByExternalID(ctx, ev.Provider, ev.Payload.ExternalID)
	if err != nil {
		if stderrors.Is(err, errors.ErrPaymentNotFound) {
			return OutcomeOrphan, nil
		}
		return "", uc.storageErr(err)
	}

	result, err := reconcile.ApplyPayment(rec, ev)
	if err != nil {
		return "", err
	}
	if !result.Applied {
		return outcomeOf(result.Reason), nil
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Update(txCtx, rec); err != nil {
			return err
		}
		return uc.insertEffects(txCtx, result)
	})
	if err != nil {
		return "", uc.storageErr(err)
	}

	uc.recordTransition(ev)
	return OutcomeApplied, nil
}

func (uc *UseCase) attemptSubscription(ctx context.Context, ev *event.Verified) (Outcome, error) {
	rec, err := uc.subscriptionRepo.GetByExternalID(ctx, ev.Provider, ev.Payload.ExternalID)
	if err != nil {
		if stderrors.Is(err, errors.ErrSubscriptionNotFound) {
			return OutcomeOrphan, nil
		}
		return "", uc.storageErr(err)
	}

	var (
		result  reconcile.Result
		outcome Outcome
	)
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Sibling rows are read and locked in the same transaction as the
		// commit. Two concurrent activations for the same (owner, plan)
		// cannot both slip through: the partial unique index on active-like
		// rows rejects the second one, which surfaces here as an optimistic
		// lock failure and retries against the fresh sibling view.
		siblings, err := uc.subscriptionRepo.ListActiveSiblings(txCtx, rec.OwnerID, rec.PlanID, rec.ID)
		if err != nil {
			return err
		}

		result, err = reconcile.ApplySubscription(rec, siblings, ev)
		if err != nil {
			return err
		}
		if !result.Applied {
			outcome = outcomeOf(result.Reason)
			return nil
		}

		// Demotions land before the activation so the unique index never
		// sees two active-like rows, even transiently.
		for _, sib := range result.Demoted {
			if err := uc.subscriptionRepo.Update(txCtx, sib); err != nil {
				return err
			}
		}
		if err := uc.subscriptionRepo.Update(txCtx, rec); err != nil {
			return err
		}
		if err := uc.insertEffects(txCtx, result); err != nil {
			return err
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return "", uc.storageErr(err)
	}
	if outcome != OutcomeApplied {
		return outcome, nil
	}

	uc.recordTransition(ev)
	if uc.metrics != nil && len(result.Demoted) > 0 {
		uc.metrics.SiblingsDemoted.Add(float64(len(result.Demoted)))
	}
	return OutcomeApplied, nil
}

func (uc *UseCase) insertEffects(ctx context.Context, result reconcile.Result) error {
	for _, eff := range result.Effects {
		if err := uc.outboxRepo.Insert(ctx, outbox.NewEntry(eff)); err != nil {
			return err
		}
	}
	return nil
}

func (uc *UseCase) recordTransition(ev *event.Verified) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.TransitionsTotal.WithLabelValues(string(ev.Payload.Kind), ev.Payload.Transition).Inc()
}

// storageErr maps storage-level failures onto the retryable sentinel so the
// controller answers 503 and the provider redelivers.
func (uc *UseCase) storageErr(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	return err
}

func outcomeOf(reason reconcile.Reason) Outcome {
	if reason == reconcile.ReasonStale {
		return OutcomeStale
	}
	return OutcomeNoOp
}
