package ingest

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/outbox"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/cassiomorais/payment-events/internal/testutil"
	"github.com/cassiomorais/payment-events/internal/verify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier lets tests feed pre-verified events into the pipeline without
// signing real payloads.
type stubVerifier struct {
	provider event.Provider
	ev       *event.Verified
	err      error
}

func (s *stubVerifier) Provider() event.Provider { return s.provider }

func (s *stubVerifier) Verify(_ http.Header, _ []byte, _ time.Time) (*event.Verified, error) {
	if s.err != nil {
		return nil, s.err
	}
	ev := *s.ev
	return &ev, nil
}

type fixture struct {
	uc       *UseCase
	verifier *stubVerifier
	dedup    *testutil.MockDedupStore
	payments *testutil.MockPaymentRepository
	subs     *testutil.MockSubscriptionRepository
	outbox   *testutil.MockOutboxRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		verifier: &stubVerifier{provider: event.ProviderCardGate},
		dedup:    testutil.NewMockDedupStore(),
		payments: testutil.NewMockPaymentRepository(),
		subs:     testutil.NewMockSubscriptionRepository(),
		outbox:   testutil.NewMockOutboxRepository(),
	}
	f.uc = NewUseCase(
		verify.NewRegistry(f.verifier),
		f.dedup,
		f.payments,
		f.subs,
		f.outbox,
		&testutil.MockTxManager{},
		nil,
		time.Second,
		3,
	)
	return f
}

func (f *fixture) ingest(t *testing.T) (*Result, error) {
	t.Helper()
	return f.uc.Execute(context.Background(), "cardgate", http.Header{}, []byte(`{}`))
}

func TestExecute_AppliesPaymentCompletion(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "cardgate:evt_1", res.EventID)

	stored, err := f.payments.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, int64(1), stored.Version)

	entries := f.outbox.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, outbox.StatusPending, e.Status)
		assert.Equal(t, rec.ID, e.RecordID)
	}
}

func TestExecute_DuplicateDeliveryShortCircuits(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	first, err := f.ingest(t)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, first.Outcome)

	second, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)

	// Only the first delivery wrote effects.
	assert.Len(t, f.outbox.Entries(), 3)
}

func TestExecute_OrphanEventIsFinalized(t *testing.T) {
	f := newFixture(t)
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_9", "pay_missing", event.TransitionCompleted, 100)

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrphan, res.Outcome)

	// The dedup row stays so the provider's redelivery is cheap.
	assert.Equal(t, 1, f.dedup.Len())
	assert.Empty(t, f.outbox.Entries())
}

func TestExecute_TerminalRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewCompletedPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_late", "pay_1", event.TransitionCompleted, 2500)

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, res.Outcome)

	stored, err := f.payments.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
	assert.Empty(t, f.outbox.Entries())
}

func TestExecute_StaleSubscriptionEventIsIgnored(t *testing.T) {
	f := newFixture(t)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	rec := testutil.NewTestSubscription(event.ProviderCardGate, "sub_1", "user_1", "plan_pro", subscription.StatusActive, periodEnd)
	require.NoError(t, f.subs.Create(context.Background(), rec))

	f.verifier.ev = testutil.NewSubscriptionEvent(event.ProviderCardGate, "evt_old", "sub_1", event.TransitionPastDue, periodEnd.Add(-24*time.Hour))

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)

	stored, err := f.subs.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, stored.Status)
}

func TestExecute_ActivationDemotesSibling(t *testing.T) {
	f := newFixture(t)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	old := testutil.NewTestSubscription(event.ProviderCardGate, "sub_old", "user_1", "plan_pro", subscription.StatusActive, periodEnd)
	next := testutil.NewTestSubscription(event.ProviderCardGate, "sub_new", "user_1", "plan_pro", subscription.StatusIncomplete, time.Time{})
	require.NoError(t, f.subs.Create(context.Background(), old))
	require.NoError(t, f.subs.Create(context.Background(), next))

	f.verifier.ev = testutil.NewSubscriptionEvent(event.ProviderCardGate, "evt_act", "sub_new", event.TransitionActive, periodEnd.Add(24*time.Hour))

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	promoted, err := f.subs.GetByID(context.Background(), next.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, promoted.Status)

	demoted, err := f.subs.GetByID(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCanceled, demoted.Status)
}

func TestExecute_BadSignatureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = domainErrors.ErrBadSignature

	_, err := f.ingest(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
	assert.Equal(t, 0, f.dedup.Len())
}

func TestExecute_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Execute(context.Background(), "acmepay", http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, domainErrors.ErrUnknownProvider)
}

func TestExecute_CommitFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	f.payments.UpdateFunc = func(ctx context.Context, r *payment.Record) error {
		return context.DeadlineExceeded
	}

	_, err := f.ingest(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrStorageUnavailable)
	assert.True(t, domainErrors.Retryable(err))

	// The reservation is gone, so the provider's retry can land.
	assert.Equal(t, 0, f.dedup.Len())
}

func TestExecute_ConflictRetryExhausted(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	attempts := 0
	f.payments.UpdateFunc = func(ctx context.Context, r *payment.Record) error {
		attempts++
		return domainErrors.ErrOptimisticLockFailed
	}

	_, err := f.ingest(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrConflictRetryExhausted)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, f.dedup.Len())
}

func TestExecute_ConflictRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	attempts := 0
	f.payments.UpdateFunc = func(ctx context.Context, r *payment.Record) error {
		attempts++
		if attempts < 3 {
			return domainErrors.ErrOptimisticLockFailed
		}
		return nil
	}

	res, err := f.ingest(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 3, attempts)
}

func TestExecute_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewTestPayment(event.ProviderCardGate, "pay_1", 2500, "USD")
	require.NoError(t, f.payments.Create(context.Background(), rec))
	f.verifier.ev = testutil.NewPaymentEvent(event.ProviderCardGate, "evt_1", "pay_1", event.TransitionCompleted, 2500)

	const workers = 16
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.ingest(t)
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeApplied {
			applied++
		} else {
			assert.Equal(t, OutcomeAlreadyProcessed, outcomes[i])
		}
	}
	assert.Equal(t, 1, applied)

	// Exactly one delivery wrote the record and its effects.
	stored, err := f.payments.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Len(t, f.outbox.Entries(), 3)
}

func TestExecute_ConcurrentActivationsKeepOneActive(t *testing.T) {
	f := newFixture(t)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	subB := testutil.NewTestSubscription(event.ProviderCardGate, "sub_b", "user_1", "plan_pro", subscription.StatusIncomplete, time.Time{})
	subC := testutil.NewTestSubscription(event.ProviderCardGate, "sub_c", "user_1", "plan_pro", subscription.StatusIncomplete, time.Time{})
	require.NoError(t, f.subs.Create(context.Background(), subB))
	require.NoError(t, f.subs.Create(context.Background(), subC))

	f.verifier.ev = testutil.NewSubscriptionEvent(event.ProviderCardGate, "evt_b", "sub_b", event.TransitionActive, periodEnd)

	// A second ingester sharing the same stores, delivering the activation
	// for the other record.
	ucC := NewUseCase(
		verify.NewRegistry(&stubVerifier{
			provider: event.ProviderCardGate,
			ev:       testutil.NewSubscriptionEvent(event.ProviderCardGate, "evt_c", "sub_c", event.TransitionActive, periodEnd),
		}),
		f.dedup,
		f.payments,
		f.subs,
		f.outbox,
		&testutil.MockTxManager{},
		nil,
		time.Second,
		3,
	)

	// Hold both first sibling reads at an empty view until each ingester has
	// read, so neither commit can see the other's activation coming. Retries
	// see the live view and can demote.
	var listCalls int32
	barrier := make(chan struct{})
	f.subs.ListActiveSiblingsFunc = func(_ context.Context, ownerID, planID string, exclude uuid.UUID) ([]*subscription.Record, error) {
		if n := atomic.AddInt32(&listCalls, 1); n <= 2 {
			if n == 2 {
				close(barrier)
			}
			<-barrier
			return nil, nil
		}
		var out []*subscription.Record
		for _, r := range f.subs.Records() {
			if r.ID != exclude && r.OwnerID == ownerID && r.PlanID == planID && r.IsActiveLike() {
				out = append(out, r)
			}
		}
		return out, nil
	}

	results := make([]*Result, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i, uc := range []*UseCase{f.uc, ucC} {
		wg.Add(1)
		go func(i int, uc *UseCase) {
			defer wg.Done()
			results[i], errs[i] = uc.Execute(context.Background(), "cardgate", http.Header{}, []byte(`{}`))
		}(i, uc)
	}
	wg.Wait()

	// Both deliveries land: the second activation retries, demotes the
	// first record and wins.
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, OutcomeApplied, results[i].Outcome)
	}

	activeLike := 0
	for _, r := range f.subs.Records() {
		if r.IsActiveLike() {
			activeLike++
		}
	}
	assert.Equal(t, 1, activeLike, "one active-like record for (user_1, plan_pro)")
}
