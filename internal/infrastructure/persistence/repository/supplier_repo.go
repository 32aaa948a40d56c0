package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/database"
)

// SupplierRepository implements port.SupplierRepository
type SupplierRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB, logger *zap.Logger) port.SupplierRepository {
	return &SupplierRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates a new supplier record
func (r *SupplierRepository) Insert(ctx context.Context, supplier *entity.Supplier) error {
	query := `
		INSERT INTO suppliers (
			name, contact_person, phone, email, address,
			tax_id, payment_method, bank_details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		supplier.Name,
		supplier.ContactPerson,
		supplier.Phone,
		supplier.Email,
		supplier.Address,
		supplier.TaxID,
		supplier.PaymentMethod,
		supplier.BankDetails,
	)
	if err != nil {
		r.logger.Error("Failed to insert supplier", zap.String("name", supplier.Name), zap.Error(err))
		return mapError(err, "insert supplier")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	supplier.ID = id
	return nil
}

// Update replaces a supplier record
func (r *SupplierRepository) Update(ctx context.Context, supplier *entity.Supplier) error {
	query := `
		UPDATE suppliers
		SET name = ?, contact_person = ?, phone = ?, email = ?, address = ?,
			tax_id = ?, payment_method = ?, bank_details = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		supplier.Name,
		supplier.ContactPerson,
		supplier.Phone,
		supplier.Email,
		supplier.Address,
		supplier.TaxID,
		supplier.PaymentMethod,
		supplier.BankDetails,
		supplier.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update supplier", zap.Int64("id", supplier.ID), zap.Error(err))
		return mapError(err, "update supplier")
	}
	return nil
}

// Delete removes a supplier record. Returns false when no record matched.
func (r *SupplierRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		"DELETE FROM suppliers WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete supplier", zap.Int64("id", id), zap.Error(err))
		return false, mapError(err, "delete supplier")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByID retrieves a supplier by ID. Returns (nil, nil) when the record
// does not exist.
func (r *SupplierRepository) GetByID(ctx context.Context, id int64) (*entity.Supplier, error) {
	query := `
		SELECT id, name, contact_person, phone, email, address,
			tax_id, payment_method, bank_details, created_at, updated_at
		FROM suppliers
		WHERE id = ?
	`

	var supplier entity.Supplier
	err := database.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&supplier.ID,
		&supplier.Name,
		&supplier.ContactPerson,
		&supplier.Phone,
		&supplier.Email,
		&supplier.Address,
		&supplier.TaxID,
		&supplier.PaymentMethod,
		&supplier.BankDetails,
		&supplier.CreatedAt,
		&supplier.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get supplier by ID", zap.Int64("id", id), zap.Error(err))
		return nil, mapError(err, "get supplier")
	}
	return &supplier, nil
}

// List retrieves suppliers ordered by name, optionally filtered by a search
// term matched against name and contact person.
func (r *SupplierRepository) List(ctx context.Context, search string) ([]*entity.Supplier, error) {
	query := `
		SELECT id, name, contact_person, phone, email, address,
			tax_id, payment_method, bank_details, created_at, updated_at
		FROM suppliers
	`
	var args []interface{}
	if search != "" {
		query += " WHERE name LIKE ? OR contact_person LIKE ?"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY name ASC"

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list suppliers", zap.Error(err))
		return nil, mapError(err, "list suppliers")
	}
	defer rows.Close()

	var suppliers []*entity.Supplier
	for rows.Next() {
		var supplier entity.Supplier
		err := rows.Scan(
			&supplier.ID,
			&supplier.Name,
			&supplier.ContactPerson,
			&supplier.Phone,
			&supplier.Email,
			&supplier.Address,
			&supplier.TaxID,
			&supplier.PaymentMethod,
			&supplier.BankDetails,
			&supplier.CreatedAt,
			&supplier.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, &supplier)
	}
	return suppliers, rows.Err()
}
