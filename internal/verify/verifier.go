package verify

import (
	"net/http"
	"time"

	"github.com/cassiomorais/payment-events/internal/domain/errors"
	"github.com/cassiomorais/payment-events/internal/domain/event"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Verifier authenticates an inbound webhook delivery for one provider.
// Verification is computed over the raw request bytes; the body is never
// parsed before the signature check passes.
type Verifier interface {
	// Provider returns the provider this verifier handles.
	Provider() event.Provider

	// Verify checks the signature header against the raw body and, on
	// success, decodes the event. Fails with ErrMalformedSignature,
	// ErrMissingSecret or ErrBadSignature.
	Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (*event.Verified, error)
}

// Registry holds the closed set of provider verifiers. Adding a provider means
// adding a variant to the event.Provider enum plus its verifier here.
type Registry struct {
	verifiers map[event.Provider]Verifier
}

// NewRegistry builds a registry from the given verifiers.
func NewRegistry(verifiers ...Verifier) *Registry {
	r := &Registry{verifiers: make(map[event.Provider]Verifier)}
	for _, v := range verifiers {
		r.verifiers[v.Provider()] = v
	}
	return r
}

// Get returns the verifier for a provider.
func (r *Registry) Get(p event.Provider) (Verifier, error) {
	v, ok := r.verifiers[p]
	if !ok {
		return nil, errors.ErrUnknownProvider
	}
	return v, nil
}
