// Package shared holds the error taxonomy and the domain events every
// aggregate package uses. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Aggregates wrap one of them in a DomainError, and the HTTP
// layer maps the kind to a status code.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidState rejects an operation the current state forbids:
	// buying without enough gold, completing a step out of order.
	ErrInvalidState = errors.New("invalid state")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrConcurrentModification marks a write that lost a race with another
	// writer or a dropped connection. The same request may succeed if repeated.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// DomainError carries the aggregate and operation that failed.
//
//	shared.NewDomainError("shop", "Purchase", shared.ErrInvalidState, "not enough gold")
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error // optional cause
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError creates a DomainError without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError creates a DomainError around err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsInvalidState(err error) bool  { return errors.Is(err, ErrInvalidState) }

// IsRetryable reports whether repeating the same operation may succeed.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }

// IsValidation reports any of the input kinds.
func IsValidation(err error) bool {
	for _, kind := range []error{ErrValidation, ErrInvalidID, ErrInvalidInput, ErrNegativeValue, ErrValueOutOfRange} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
