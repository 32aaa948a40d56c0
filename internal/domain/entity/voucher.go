package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherEntry is a debit/credit line of a payment voucher. Entries are owned
// by their voucher and replaced as a unit on every update.
type VoucherEntry struct {
	ID           int64           `json:"id"`
	VoucherID    int64           `json:"voucher_id"`
	AccountTitle string          `json:"account_title"`
	Activity     string          `json:"activity,omitempty"`
	Debit        decimal.Decimal `json:"debit_amount"`
	Credit       decimal.Decimal `json:"credit_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Normalize applies monetary normalization to both sides of the entry.
func (e *VoucherEntry) Normalize() {
	e.Debit = NormalizeAmount(e.Debit)
	e.Credit = NormalizeAmount(e.Credit)
}

// Validate checks the fields a voucher entry must carry.
func (e *VoucherEntry) Validate() error {
	if strings.TrimSpace(e.AccountTitle) == "" {
		return errors.New("entry account title is required")
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return errors.New("entry amounts must not be negative")
	}
	if e.Debit.IsZero() && e.Credit.IsZero() {
		return errors.New("entry must carry a debit or a credit amount")
	}
	return nil
}

// Voucher is a payment voucher prepared from an approved request.
type Voucher struct {
	ID              int64           `json:"id"`
	VoucherNumber   string          `json:"voucher_number"`
	Date            time.Time       `json:"date"`
	Payee           string          `json:"payee"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Particulars     string          `json:"particulars,omitempty"`
	PreparedBy      uuid.UUID       `json:"prepared_by"`
	BankName        string          `json:"bank_name,omitempty"`
	TransactionType string          `json:"transaction_type,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	FormType        FormType        `json:"form_type,omitempty"`
	FormNumber      string          `json:"form_number,omitempty"`
	Status          Status          `json:"status"`
	Entries         []*VoucherEntry `json:"entries,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Normalize applies monetary normalization to every entry and, when entries
// are present, recomputes the voucher total as the sum of debits. Without
// entries the stored total is kept, normalized.
func (v *Voucher) Normalize() {
	for _, e := range v.Entries {
		e.Normalize()
	}
	if len(v.Entries) > 0 {
		sum := decimal.Zero
		for _, e := range v.Entries {
			sum = sum.Add(e.Debit)
		}
		v.TotalAmount = NormalizeAmount(sum)
		return
	}
	v.TotalAmount = NormalizeAmount(v.TotalAmount)
}

// Validate checks the voucher and all of its entries.
func (v *Voucher) Validate() error {
	if strings.TrimSpace(v.Payee) == "" {
		return errors.New("voucher payee is required")
	}
	if v.PreparedBy == uuid.Nil {
		return errors.New("voucher preparer is required")
	}
	for idx, e := range v.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", idx+1, err)
		}
	}
	return nil
}
