package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records a single mutating action against a request. The trail is
// append-only: entries are never updated or deleted.
type AuditEntry struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Action    string    `json:"action"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
