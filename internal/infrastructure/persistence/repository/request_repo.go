package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/database"
)

// RequestRepository implements port.RequestRepository on SQLite. Monetary
// amounts are stored as TEXT to keep decimal values exact.
type RequestRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *database.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates a new request record
func (r *RequestRepository) Insert(ctx context.Context, req *entity.Request) error {
	query := `
		INSERT INTO requests (
			form_number, form_type, requestor_id, supplier_id, payee,
			status, total_amount, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.FormNumber,
		req.FormType.String(),
		req.RequestorID.String(),
		nullableID(req.SupplierID),
		req.Payee,
		req.Status.String(),
		req.TotalAmount.String(),
		req.Remarks,
	)
	if err != nil {
		r.logger.Error("Failed to insert request",
			zap.String("form_number", req.FormNumber), zap.Error(err))
		return mapError(err, "insert request")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// Update replaces the mutable fields of a request record
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	query := `
		UPDATE requests
		SET supplier_id = ?, payee = ?, total_amount = ?, remarks = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullableID(req.SupplierID),
		req.Payee,
		req.TotalAmount.String(),
		req.Remarks,
		req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.Int64("id", req.ID), zap.Error(err))
		return mapError(err, "update request")
	}
	return nil
}

// GetByID retrieves a request by ID, without items. Returns (nil, nil) when
// the record does not exist.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `
		SELECT id, form_number, form_type, requestor_id, supplier_id, payee,
			status, total_amount, remarks, created_at, updated_at
		FROM requests
		WHERE id = ?
	`

	req, err := scanRequest(database.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.Int64("id", id), zap.Error(err))
		return nil, mapError(err, "get request")
	}
	return req, nil
}

// UpdateStatus sets the status of a request and, when remarks are given,
// replaces the remarks as well.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id int64, status entity.Status, remarks string) error {
	query := `
		UPDATE requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	args := []interface{}{status.String(), id}
	if remarks != "" {
		query = `
			UPDATE requests
			SET status = ?, remarks = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		args = []interface{}{status.String(), remarks, id}
	}

	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.Int64("id", id), zap.String("status", status.String()), zap.Error(err))
		return mapError(err, "update request status")
	}
	return nil
}

// Delete removes a request record. Returns false when no record matched.
func (r *RequestRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		"DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.Int64("id", id), zap.Error(err))
		return false, mapError(err, "delete request")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// List retrieves requests matching the filter, newest first, with the total
// count of matching records for pagination.
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter, page port.Page) ([]*entity.Request, int, error) {
	where, args := buildRequestFilter(filter)

	countQuery := "SELECT COUNT(*) FROM requests" + where
	var total int
	if err := database.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count requests", zap.Error(err))
		return nil, 0, mapError(err, "count requests")
	}

	query := `
		SELECT id, form_number, form_type, requestor_id, supplier_id, payee,
			status, total_amount, remarks, created_at, updated_at
		FROM requests` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, page.Limit(), page.Offset())

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, 0, mapError(err, "list requests")
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

func buildRequestFilter(filter port.RequestFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.FormType != "" {
		conds = append(conds, "form_type = ?")
		args = append(args, filter.FormType.String())
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s.String())
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.RequestorID != nil {
		conds = append(conds, "requestor_id = ?")
		args = append(args, filter.RequestorID.String())
	}
	if filter.Search != "" {
		conds = append(conds, "form_number LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, *filter.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var formType, requestorID, status, totalAmount string
	var supplierID sql.NullInt64

	err := row.Scan(
		&req.ID,
		&req.FormNumber,
		&formType,
		&requestorID,
		&supplierID,
		&req.Payee,
		&status,
		&totalAmount,
		&req.Remarks,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.FormType = entity.FormType(formType)
	req.Status = entity.Status(status)
	if req.RequestorID, err = uuid.Parse(requestorID); err != nil {
		return nil, fmt.Errorf("invalid requestor id %q: %w", requestorID, err)
	}
	if req.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total amount %q: %w", totalAmount, err)
	}
	if supplierID.Valid {
		req.SupplierID = &supplierID.Int64
	}
	return &req, nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
