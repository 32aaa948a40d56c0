package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/database"
)

// AuditRepository implements port.AuditRepository. The table is append-only;
// no update or delete statement exists here.
type AuditRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (request_id, action, user_id, user_name, details)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.RequestID,
		entry.Action,
		entry.UserID.String(),
		entry.UserName,
		entry.Details,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.Int64("request_id", entry.RequestID), zap.Error(err))
		return mapError(err, "append audit entry")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// GetByRequestID retrieves the audit trail for a request, newest first
func (r *AuditRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, request_id, action, user_id, user_name, details, created_at
		FROM audit_entries
		WHERE request_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get audit trail",
			zap.Int64("request_id", requestID), zap.Error(err))
		return nil, mapError(err, "get audit trail")
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		var userID string

		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Action,
			&userID,
			&entry.UserName,
			&entry.Details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if entry.UserID, err = uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
