package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateEvent marks an event whose ID is already in the durable log.
// The event's effects were applied by an earlier delivery and must not be
// applied again.
var ErrDuplicateEvent = errors.New("duplicate event id")

// ValidationError marks a structurally invalid event. It is terminal: the
// event is dropped, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: field %q %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a cache or durable store I/O failure. It propagates to
// the caller of ProcessEvent, which owns the retry decision.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
