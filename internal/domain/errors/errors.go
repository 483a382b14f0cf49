package errors

import (
	"errors"
	"fmt"
)

var (
	// Verification errors. The specific sentinels wrap ErrUnauthorized so
	// callers can match the whole family with one errors.Is check.
	ErrUnauthorized       = errors.New("webhook signature verification failed")
	ErrBadSignature       = fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	ErrMissingSecret      = fmt.Errorf("no secret configured for provider: %w", ErrUnauthorized)
	ErrMalformedSignature = fmt.Errorf("signature header missing or malformed: %w", ErrUnauthorized)
	ErrUnknownProvider    = errors.New("unknown provider")

	// Ingestion errors
	ErrDuplicateEvent         = errors.New("event already processed")
	ErrOrphanEvent            = errors.New("event references unknown record")
	ErrStaleTransition        = errors.New("stale transition ignored")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflictRetryExhausted = errors.New("record contention retry budget exhausted")
	ErrStorageUnavailable     = errors.New("storage unavailable")

	// Record errors
	ErrPaymentNotFound      = errors.New("payment record not found")
	ErrSubscriptionNotFound = errors.New("subscription record not found")
	ErrOptimisticLockFailed = errors.New("optimistic lock conflict")

	// Dispatch errors
	ErrEffectRetriesExhausted = errors.New("effect delivery retries exhausted")
	ErrNotifierUnavailable    = errors.New("notifier unavailable")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Retryable reports whether the failure should surface to the provider as
// retryable, so its redelivery can succeed once the condition clears.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrConflictRetryExhausted)
}
