package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/database"
)

// VoucherRepository implements port.VoucherRepository
type VoucherRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *database.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates a new voucher record
func (r *VoucherRepository) Insert(ctx context.Context, voucher *entity.Voucher) error {
	query := `
		INSERT INTO vouchers (
			voucher_number, date, payee, total_amount, particulars,
			prepared_by, bank_name, transaction_type, reference_number,
			form_type, form_number, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		voucher.VoucherNumber,
		voucher.Date,
		voucher.Payee,
		voucher.TotalAmount.String(),
		voucher.Particulars,
		voucher.PreparedBy.String(),
		voucher.BankName,
		voucher.TransactionType,
		voucher.ReferenceNumber,
		voucher.FormType.String(),
		voucher.FormNumber,
		voucher.Status.String(),
	)
	if err != nil {
		r.logger.Error("Failed to insert voucher",
			zap.String("voucher_number", voucher.VoucherNumber), zap.Error(err))
		return mapError(err, "insert voucher")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	voucher.ID = id
	return nil
}

// Update replaces the mutable fields of a voucher record
func (r *VoucherRepository) Update(ctx context.Context, voucher *entity.Voucher) error {
	query := `
		UPDATE vouchers
		SET date = ?, payee = ?, total_amount = ?, particulars = ?,
			bank_name = ?, transaction_type = ?, reference_number = ?,
			form_type = ?, form_number = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		voucher.Date,
		voucher.Payee,
		voucher.TotalAmount.String(),
		voucher.Particulars,
		voucher.BankName,
		voucher.TransactionType,
		voucher.ReferenceNumber,
		voucher.FormType.String(),
		voucher.FormNumber,
		voucher.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update voucher", zap.Int64("id", voucher.ID), zap.Error(err))
		return mapError(err, "update voucher")
	}
	return nil
}

// GetByID retrieves a voucher by ID, without entries. Returns (nil, nil)
// when the record does not exist.
func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*entity.Voucher, error) {
	query := `
		SELECT id, voucher_number, date, payee, total_amount, particulars,
			prepared_by, bank_name, transaction_type, reference_number,
			form_type, form_number, status, created_at, updated_at
		FROM vouchers
		WHERE id = ?
	`

	voucher, err := scanVoucher(database.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher by ID", zap.Int64("id", id), zap.Error(err))
		return nil, mapError(err, "get voucher")
	}
	return voucher, nil
}

// List retrieves vouchers newest first, optionally filtered by status
func (r *VoucherRepository) List(ctx context.Context, status entity.Status) ([]*entity.Voucher, error) {
	query := `
		SELECT id, voucher_number, date, payee, total_amount, particulars,
			prepared_by, bank_name, transaction_type, reference_number,
			form_type, form_number, status, created_at, updated_at
		FROM vouchers
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status.String())
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, mapError(err, "list vouchers")
	}
	defer rows.Close()

	var vouchers []*entity.Voucher
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, voucher)
	}
	return vouchers, rows.Err()
}

// InsertEntries stores all debit/credit entries for a voucher
func (r *VoucherRepository) InsertEntries(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error {
	query := `
		INSERT INTO voucher_entries (voucher_id, account_title, activity, debit, credit)
		VALUES (?, ?, ?, ?, ?)
	`

	exec := database.ExecutorFrom(ctx, r.db)
	for _, entry := range entries {
		result, err := exec.ExecContext(ctx, query,
			voucherID,
			entry.AccountTitle,
			entry.Activity,
			entry.Debit.String(),
			entry.Credit.String(),
		)
		if err != nil {
			r.logger.Error("Failed to insert voucher entry",
				zap.Int64("voucher_id", voucherID), zap.Error(err))
			return mapError(err, "insert voucher entry")
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		entry.ID = id
		entry.VoucherID = voucherID
	}
	return nil
}

// DeleteEntriesByVoucherID removes all entries of a voucher
func (r *VoucherRepository) DeleteEntriesByVoucherID(ctx context.Context, voucherID int64) error {
	_, err := database.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		"DELETE FROM voucher_entries WHERE voucher_id = ?", voucherID)
	if err != nil {
		r.logger.Error("Failed to delete voucher entries",
			zap.Int64("voucher_id", voucherID), zap.Error(err))
		return mapError(err, "delete voucher entries")
	}
	return nil
}

// GetEntriesByVoucherID retrieves the entries of a voucher in insertion order
func (r *VoucherRepository) GetEntriesByVoucherID(ctx context.Context, voucherID int64) ([]*entity.VoucherEntry, error) {
	query := `
		SELECT id, voucher_id, account_title, activity, debit, credit,
			created_at, updated_at
		FROM voucher_entries
		WHERE voucher_id = ?
		ORDER BY id ASC
	`

	rows, err := database.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, voucherID)
	if err != nil {
		r.logger.Error("Failed to get voucher entries",
			zap.Int64("voucher_id", voucherID), zap.Error(err))
		return nil, mapError(err, "get voucher entries")
	}
	defer rows.Close()

	var entries []*entity.VoucherEntry
	for rows.Next() {
		var entry entity.VoucherEntry
		var debit, credit string

		err := rows.Scan(
			&entry.ID,
			&entry.VoucherID,
			&entry.AccountTitle,
			&entry.Activity,
			&debit,
			&credit,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher entry: %w", err)
		}

		if entry.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("invalid debit amount %q: %w", debit, err)
		}
		if entry.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("invalid credit amount %q: %w", credit, err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func scanVoucher(row rowScanner) (*entity.Voucher, error) {
	var voucher entity.Voucher
	var totalAmount, preparedBy, formType, status string

	err := row.Scan(
		&voucher.ID,
		&voucher.VoucherNumber,
		&voucher.Date,
		&voucher.Payee,
		&totalAmount,
		&voucher.Particulars,
		&preparedBy,
		&voucher.BankName,
		&voucher.TransactionType,
		&voucher.ReferenceNumber,
		&formType,
		&voucher.FormNumber,
		&status,
		&voucher.CreatedAt,
		&voucher.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	voucher.FormType = entity.FormType(formType)
	voucher.Status = entity.Status(status)
	if voucher.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total amount %q: %w", totalAmount, err)
	}
	if voucher.PreparedBy, err = uuid.Parse(preparedBy); err != nil {
		return nil, fmt.Errorf("invalid preparer id %q: %w", preparedBy, err)
	}
	return &voucher, nil
}
