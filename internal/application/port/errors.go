package port

import (
	"errors"
	"fmt"
)

// StoreErrorKind classifies failures surfaced by the persistence layer.
type StoreErrorKind int

const (
	// StoreFailure is any unclassified store failure
	StoreFailure StoreErrorKind = iota

	// StoreConstraintViolation is a uniqueness or integrity constraint
	// failure; Constraint names the violated constraint
	StoreConstraintViolation
)

// StoreError is the structured failure type repositories return so callers
// can branch on kind instead of matching error text.
type StoreError struct {
	Kind       StoreErrorKind
	Constraint string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Kind == StoreConstraintViolation && e.Constraint != "" {
		return fmt.Sprintf("store: constraint %s violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("store: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation returns true if err is a constraint failure on the
// named constraint. An empty name matches any constraint.
func IsConstraintViolation(err error, constraint string) bool {
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Kind != StoreConstraintViolation {
		return false
	}
	return constraint == "" || storeErr.Constraint == constraint
}
