package repository

import (
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/opsfinance/formflow/internal/application/port"
)

// mapError classifies a driver error into a port.StoreError so callers can
// branch on kind and constraint name instead of matching error text.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if sqliteErr, ok := err.(sqlite3.Error); ok {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return &port.StoreError{
				Kind:       port.StoreConstraintViolation,
				Constraint: constraintName(sqliteErr.Error()),
				Err:        fmt.Errorf("%s: %w", op, err),
			}
		}
	}

	return &port.StoreError{
		Kind: port.StoreFailure,
		Err:  fmt.Errorf("%s: %w", op, err),
	}
}

// constraintName extracts "table.column" from a driver message of the form
// "UNIQUE constraint failed: requests.form_number". An unrecognized message
// yields an empty name, which matches any constraint check.
func constraintName(msg string) string {
	const marker = "constraint failed: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	name := msg[idx+len(marker):]
	if cut := strings.IndexAny(name, " ("); cut >= 0 {
		name = name[:cut]
	}
	return strings.TrimSpace(name)
}
