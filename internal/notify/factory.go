package notify

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Factory pairs each delivery sink with its circuit breaker. Breakers are
// per-sink so a melting email service does not block analytics.
type Factory struct {
	emailer  Emailer
	tracker  Tracker
	breakers map[string]*gobreaker.CircuitBreaker[*Result]
}

// NewFactory builds a factory around the given sinks. Nil sinks fall back to
// mocks with mild simulated failure, which is what local runs use.
func NewFactory(emailer Emailer, tracker Tracker) *Factory {
	if emailer == nil {
		emailer = NewMockEmailer("email-service",
			WithLatency(100*time.Millisecond),
			WithFailureRate(0.05),
		)
	}
	if tracker == nil {
		tracker = NewMockTracker("analytics-service",
			WithLatency(50*time.Millisecond),
			WithFailureRate(0.02),
		)
	}

	f := &Factory{
		emailer:  emailer,
		tracker:  tracker,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Result]),
	}
	f.breakers[emailer.Name()] = newBreaker(emailer.Name())
	f.breakers[tracker.Name()] = newBreaker(tracker.Name())
	return f
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*Result] {
	return gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

func (f *Factory) Email() (Emailer, *gobreaker.CircuitBreaker[*Result]) {
	return f.emailer, f.breakers[f.emailer.Name()]
}

func (f *Factory) Tracker() (Tracker, *gobreaker.CircuitBreaker[*Result]) {
	return f.tracker, f.breakers[f.tracker.Name()]
}
