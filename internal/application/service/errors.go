package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. Callers branch with errors.Is; the HTTP
// layer maps them onto response statuses. Every operation returns a definite
// success value or one of these kinds.
var (
	// ErrValidation marks malformed input: a bad form-number format, an
	// invalid status transition, missing required item fields. Never
	// retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced request, supplier, or voucher that
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks an operation the acting user's role may
	// not perform.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict marks a form-number uniqueness violation during
	// creation. Generated numbers are retried internally; a caller-supplied
	// duplicate is surfaced immediately.
	ErrConflict = errors.New("form number conflict")

	// ErrPartialFailure marks an update that replaced the parent or
	// removed old items but failed before the item re-insert completed.
	// The record is definitely inconsistent; callers must re-fetch to
	// assess.
	ErrPartialFailure = errors.New("items incompletely replaced")
)

// ErrNumberExhausted is returned when creation still collides after the
// retry bound. No partial record persists; the caller may simply try again.
var ErrNumberExhausted = fmt.Errorf("%w: generation attempts exhausted", ErrConflict)

// Logger is the minimal logging dependency services require.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
