package notify

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	domainErrors "github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/google/uuid"
)

type behavior struct {
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
}

type Option func(*behavior)

func WithFailureRate(rate float64) Option {
	return func(b *behavior) { b.failureRate = rate }
}

func WithLatency(d time.Duration) Option {
	return func(b *behavior) { b.latency = d }
}

func WithTimeoutRate(rate float64) Option {
	return func(b *behavior) { b.timeoutRate = rate }
}

func newBehavior(opts ...Option) behavior {
	b := behavior{latency: 50 * time.Millisecond}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// simulate applies latency and the configured failure modes.
func (b behavior) simulate(ctx context.Context, name string) error {
	select {
	case <-time.After(b.latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	if rand.Float64() < b.timeoutRate {
		return fmt.Errorf("%s: %w", name, domainErrors.ErrNotifierUnavailable)
	}
	if rand.Float64() < b.failureRate {
		return fmt.Errorf("%s: simulated delivery failure: %w", name, domainErrors.ErrNotifierUnavailable)
	}
	return nil
}

// MockEmailer is a stand-in email service.
type MockEmailer struct {
	name string
	behavior
}

func NewMockEmailer(name string, opts ...Option) *MockEmailer {
	return &MockEmailer{name: name, behavior: newBehavior(opts...)}
}

func (m *MockEmailer) Name() string { return m.name }

func (m *MockEmailer) SendEmail(ctx context.Context, req EmailRequest) (*Result, error) {
	if err := m.simulate(ctx, m.name); err != nil {
		return &Result{Status: "failed", ErrorMessage: err.Error()}, err
	}
	return &Result{
		DeliveryID: fmt.Sprintf("%s_msg_%s", m.name, uuid.New().String()[:8]),
		Status:     "delivered",
	}, nil
}

// MockTracker is a stand-in analytics service.
type MockTracker struct {
	name string
	behavior
}

func NewMockTracker(name string, opts ...Option) *MockTracker {
	return &MockTracker{name: name, behavior: newBehavior(opts...)}
}

func (m *MockTracker) Name() string { return m.name }

func (m *MockTracker) RecordEvent(ctx context.Context, req AnalyticsRequest) (*Result, error) {
	if err := m.simulate(ctx, m.name); err != nil {
		return &Result{Status: "failed", ErrorMessage: err.Error()}, err
	}
	return &Result{
		DeliveryID: fmt.Sprintf("%s_evt_%s", m.name, uuid.New().String()[:8]),
		Status:     "delivered",
	}, nil
}
