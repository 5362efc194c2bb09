package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	cause := errors.New("40001")
	tests := []struct {
		name       string
		err        error
		notFound   bool
		validation bool
		retryable  bool
	}{
		{"not found", NewDomainError("student", "GetByID", ErrNotFound, "missing"), true, false, false},
		{"out of range", NewDomainError("student", "Grant", ErrValueOutOfRange, "too big"), false, true, false},
		{"conflict", WrapError("store", "WithinTx", ErrConcurrentModification, "transaction conflict", cause), false, false, true},
		{"wrapped conflict", fmt.Errorf("grant: %w", WrapError("store", "WithinTx", ErrConcurrentModification, "x", cause)), false, false, true},
		{"plain", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestDomainError_KeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := WrapError("store", "WithinTx", ErrConcurrentModification, "transaction conflict", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, "store.WithinTx: transaction conflict: deadlock detected", err.Error())
}
