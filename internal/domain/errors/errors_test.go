package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "commit_failed",
				Message: "could not commit transition",
				Err:     errors.New("connection reset"),
			},
			expected: "could not commit transition: connection reset",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invalid_state",
				Message: "cannot apply event in current state",
				Err:     nil,
			},
			expected: "cannot apply event in current state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	domainErr := &DomainError{
		Code:    "test",
		Message: "test message",
		Err:     originalErr,
	}

	unwrapped := domainErr.Unwrap()
	assert.Equal(t, originalErr, unwrapped)
}

func TestNewDomainError(t *testing.T) {
	originalErr := errors.New("underlying error")
	err := NewDomainError("test_code", "test message", originalErr)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "event_id",
		Message: "cannot be empty",
	}

	expected := "validation failed for field event_id: cannot be empty"
	assert.Equal(t, expected, err.Error())
}

func TestErrorConstants(t *testing.T) {
	// Verification errors
	assert.NotNil(t, ErrUnauthorized)
	assert.NotNil(t, ErrBadSignature)
	assert.NotNil(t, ErrMissingSecret)
	assert.NotNil(t, ErrMalformedSignature)
	assert.NotNil(t, ErrUnknownProvider)

	// Specific verification failures match the family sentinel.
	assert.ErrorIs(t, ErrBadSignature, ErrUnauthorized)
	assert.ErrorIs(t, ErrMissingSecret, ErrUnauthorized)
	assert.ErrorIs(t, ErrMalformedSignature, ErrUnauthorized)

	// Ingestion errors
	assert.NotNil(t, ErrDuplicateEvent)
	assert.NotNil(t, ErrOrphanEvent)
	assert.NotNil(t, ErrStaleTransition)
	assert.NotNil(t, ErrInvalidStateTransition)
	assert.NotNil(t, ErrConflictRetryExhausted)
	assert.NotNil(t, ErrStorageUnavailable)

	// Record errors
	assert.NotNil(t, ErrPaymentNotFound)
	assert.NotNil(t, ErrSubscriptionNotFound)
	assert.NotNil(t, ErrOptimisticLockFailed)
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := ErrStorageUnavailable
	wrappedErr := NewDomainError("storage_error", "dedup reserve failed", baseErr)

	assert.True(t, errors.Is(wrappedErr, baseErr))
	assert.ErrorIs(t, wrappedErr, ErrStorageUnavailable)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrStorageUnavailable))
	assert.True(t, Retryable(ErrConflictRetryExhausted))
	assert.True(t, Retryable(fmt.Errorf("commit: %w", ErrStorageUnavailable)))
	assert.False(t, Retryable(ErrUnauthorized))
	assert.False(t, Retryable(ErrDuplicateEvent))
	assert.False(t, Retryable(nil))
}
