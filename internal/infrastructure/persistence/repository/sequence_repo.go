package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/pkg/database"
)

// SequenceRepository implements port.SequenceRepository on a single counter
// table. The upsert increments atomically, so concurrent callers on the same
// scope always observe distinct values.
type SequenceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *database.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments and returns the counter for the scope, creating it at 1 on
// first use.
func (r *SequenceRepository) Next(ctx context.Context, scope string) (int64, error) {
	query := `
		INSERT INTO sequences (scope, value) VALUES (?, 1)
		ON CONFLICT(scope) DO UPDATE SET value = value + 1
		RETURNING value
	`

	var value int64
	err := database.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, scope).Scan(&value)
	if err != nil {
		r.logger.Error("Failed to advance sequence", zap.String("scope", scope), zap.Error(err))
		return 0, mapError(err, "advance sequence")
	}
	return value, nil
}
