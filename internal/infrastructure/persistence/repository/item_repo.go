package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/database"
)

// RequestItemRepository implements port.RequestItemRepository
type RequestItemRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRequestItemRepository creates a new request item repository
func NewRequestItemRepository(db *database.DB, logger *zap.Logger) port.RequestItemRepository {
	return &RequestItemRepository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch stores all items for a request
func (r *RequestItemRepository) InsertBatch(ctx context.Context, requestID int64, items []*entity.RequestItem) error {
	query := `
		INSERT INTO request_items (
			request_id, description, quantity, unit, unit_price,
			total, account_code, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := database.ExecutorFrom(ctx, r.db)
	for _, item := range items {
		result, err := exec.ExecContext(ctx, query,
			requestID,
			item.Description,
			item.Quantity.String(),
			item.Unit,
			item.UnitPrice.String(),
			item.Total.String(),
			item.AccountCode,
			item.Remarks,
		)
		if err != nil {
			r.logger.Error("Failed to insert request item",
				zap.Int64("request_id", requestID), zap.Error(err))
			return mapError(err, "insert request item")
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.RequestID = requestID
	}
	return nil
}

// GetByRequestID retrieves all items of a request in insertion order
func (r *RequestItemRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestItem, error) {
	query := `
		SELECT id, request_id, description, quantity, unit, unit_price,
			total, account_code, remarks, created_at, updated_at
		FROM request_items
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get request items",
			zap.Int64("request_id", requestID), zap.Error(err))
		return nil, mapError(err, "get request items")
	}
	defer rows.Close()

	var items []*entity.RequestItem
	for rows.Next() {
		var item entity.RequestItem
		var quantity, unitPrice, total string

		err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.Description,
			&quantity,
			&item.Unit,
			&unitPrice,
			&total,
			&item.AccountCode,
			&item.Remarks,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request item: %w", err)
		}

		if item.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("invalid unit price %q: %w", unitPrice, err)
		}
		if item.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invalid total %q: %w", total, err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// DeleteByRequestID removes all items of a request
func (r *RequestItemRepository) DeleteByRequestID(ctx context.Context, requestID int64) error {
	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		"DELETE FROM request_items WHERE request_id = ?", requestID)
	if err != nil {
		r.logger.Error("Failed to delete request items",
			zap.Int64("request_id", requestID), zap.Error(err))
		return mapError(err, "delete request items")
	}
	return nil
}
