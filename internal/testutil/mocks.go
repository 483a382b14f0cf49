package testutil

import (
	"context"
	"sync"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/cassiomorais/payment-events/internal/domain/outbox"
	"github.com/cassiomorais/payment-events/internal/domain/payment"
	"github.com/cassiomorais/payment-events/internal/domain/subscription"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is a mock implementation of payment.Repository. The
// default behavior stores records in memory and enforces the version
// compare-and-swap on Update, so concurrency tests exercise real conflicts.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Record

	CreateFunc          func(ctx context.Context, r *payment.Record) error
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*payment.Record, error)
	GetByExternalIDFunc func(ctx context.Context, provider event.Provider, externalID string) (*payment.Record, error)
	UpdateFunc          func(ctx context.Context, r *payment.Record) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Record),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, r *payment.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.payments[r.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Record, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockPaymentRepository) GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*payment.Record, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, provider, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.payments {
		if r.Provider == provider && r.ExternalID == externalID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (m *MockPaymentRepository) Update(ctx context.Context, r *payment.Record) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[r.ID]
	if !ok || stored.Version != r.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	r.Version++
	cp := *r
	m.payments[r.ID] = &cp
	return nil
}

// --- Subscription Repository Mock ---

// MockSubscriptionRepository is a mock implementation of
// subscription.Repository with the same CAS-enforcing default as the payment
// mock.
type MockSubscriptionRepository struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*subscription.Record

	CreateFunc             func(ctx context.Context, r *subscription.Record) error
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*subscription.Record, error)
	GetByExternalIDFunc    func(ctx context.Context, provider event.Provider, externalID string) (*subscription.Record, error)
	ListActiveSiblingsFunc func(ctx context.Context, ownerID, planID string, exclude uuid.UUID) ([]*subscription.Record, error)
	UpdateFunc             func(ctx context.Context, r *subscription.Record) error
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		subscriptions: make(map[uuid.UUID]*subscription.Record),
	}
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, r *subscription.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.subscriptions[r.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Record, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.subscriptions[id]
	if !ok {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockSubscriptionRepository) GetByExternalID(ctx context.Context, provider event.Provider, externalID string) (*subscription.Record, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, provider, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.subscriptions {
		if r.Provider == provider && r.ExternalID == externalID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrSubscriptionNotFound
}

func (m *MockSubscriptionRepository) ListActiveSiblings(ctx context.Context, ownerID, planID string, exclude uuid.UUID) ([]*subscription.Record, error) {
	if m.ListActiveSiblingsFunc != nil {
		return m.ListActiveSiblingsFunc(ctx, ownerID, planID, exclude)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscription.Record
	for _, r := range m.subscriptions {
		if r.ID == exclude || r.OwnerID != ownerID || r.PlanID != planID {
			continue
		}
		if !r.IsActiveLike() {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, r *subscription.Record) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subscriptions[r.ID]
	if !ok || stored.Version != r.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	// Mirrors the partial unique index on active-like (owner, plan) rows:
	// an update that would create a second active-like record fails the
	// same way a 23505 does in the real repository.
	if r.IsActiveLike() {
		for _, other := range m.subscriptions {
			if other.ID != r.ID && other.OwnerID == r.OwnerID && other.PlanID == r.PlanID && other.IsActiveLike() {
				return domainErrors.ErrOptimisticLockFailed
			}
		}
	}
	r.Version++
	cp := *r
	m.subscriptions[r.ID] = &cp
	return nil
}

// Records returns a snapshot of all stored subscription records.
func (m *MockSubscriptionRepository) Records() []*subscription.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*subscription.Record, 0, len(m.subscriptions))
	for _, r := range m.subscriptions {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// --- Dedup Store Mock ---

// MockDedupStore is a mock implementation of event.DedupStore. The default
// behavior mirrors the unique-constraint semantics of the real store.
type MockDedupStore struct {
	mu        sync.Mutex
	processed map[string]*event.Processed

	ReserveFunc func(ctx context.Context, p *event.Processed) error
	ReleaseFunc func(ctx context.Context, qualifiedID string) error
	GetFunc     func(ctx context.Context, qualifiedID string) (*event.Processed, error)
}

func NewMockDedupStore() *MockDedupStore {
	return &MockDedupStore{
		processed: make(map[string]*event.Processed),
	}
}

func (m *MockDedupStore) Reserve(ctx context.Context, p *event.Processed) error {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[p.ID]; ok {
		return domainErrors.ErrDuplicateEvent
	}
	cp := *p
	m.processed[p.ID] = &cp
	return nil
}

func (m *MockDedupStore) Release(ctx context.Context, qualifiedID string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, qualifiedID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processed, qualifiedID)
	return nil
}

func (m *MockDedupStore) Get(ctx context.Context, qualifiedID string) (*event.Processed, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, qualifiedID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processed[qualifiedID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Len reports how many event ids are currently reserved.
func (m *MockDedupStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processed)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	CountPendingFunc  func(ctx context.Context) (int64, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.entries {
		if e.Status != outbox.StatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	if m.CountPendingFunc != nil {
		return m.CountPendingFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending {
			n++
		}
	}
	return n, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusPublished
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				e.Status = outbox.StatusFailed
			}
			return nil
		}
	}
	return nil
}

// Entries returns a snapshot of everything inserted so far.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*outbox.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// --- Transaction Manager Mock ---

// MockTxManager is a mock transaction manager; the default just runs the
// function on the caller's context.
type MockTxManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}
