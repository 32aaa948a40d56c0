package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not a valid lifecycle status
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNotPermitted is returned when the acting user's role fails a
	// transition guard
	ErrNotPermitted = errors.New("transition not permitted for role")
)
