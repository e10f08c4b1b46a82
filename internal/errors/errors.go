// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. It also carries the retryable/definite
// error taxonomy used to decide whether a failed outbox operation is driven
// through another attempt or settled immediately.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., an entry
	// already claimed by another state transition).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	// Outbox entries failing with this error are never retried.
	ErrInvalidInput = errors.New("invalid input")
)

// retryableError marks an error as transient infrastructure trouble
// (RPC timeout, connection refused, store unavailable) that another
// attempt may resolve.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// Retryable wraps err so that IsRetryable reports true for it.
// Returns nil if err is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err (or any error in its tree) was marked
// with Retryable. Definite failures, such as a transaction mined but
// reverted, must never carry this mark.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
