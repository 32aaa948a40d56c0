// Package formnum generates and validates the display numbers assigned to
// purchase requests, expense reimbursement forms, and payment vouchers. The
// text formats are byte-exact contracts: existing records and downstream
// parsers depend on them.
package formnum

import (
	"fmt"
	"regexp"
	"time"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

var (
	purchasePattern = regexp.MustCompile(`^PROF-[0-9]{4}-[0-9]{2}-[0-9]{4}$`)
	expensePattern  = regexp.MustCompile(`^[0-9]{4}-[0-9]{3}$`)
	voucherPattern  = regexp.MustCompile(`^CV-[0-9]{4}-[0-9]{4}$`)
)

// Scope returns the sequence counter a form number of the given type draws
// from: purchase requests use one counter per calendar month, expense forms
// one per calendar year.
func Scope(formType entity.FormType, t time.Time) string {
	if formType == entity.FormTypePurchase {
		return fmt.Sprintf("prf-%04d-%02d", t.Year(), int(t.Month()))
	}
	return fmt.Sprintf("erf-%04d", t.Year())
}

// Format renders a form number for the given type, date, and sequence value.
// Purchase requests render as PROF-YYYY-MM-NNNN, expense forms as YYYY-NNN.
func Format(formType entity.FormType, t time.Time, seq int64) string {
	if formType == entity.FormTypePurchase {
		return fmt.Sprintf("PROF-%04d-%02d-%04d", t.Year(), int(t.Month()), seq)
	}
	return fmt.Sprintf("%04d-%03d", t.Year(), seq)
}

// Validate rejects any value that is not byte-exact for the form type. A
// non-conforming number is refused at the boundary, never coerced.
func Validate(formType entity.FormType, number string) error {
	switch formType {
	case entity.FormTypePurchase:
		if !purchasePattern.MatchString(number) {
			return fmt.Errorf("invalid purchase request number %q, want PROF-YYYY-MM-NNNN", number)
		}
	case entity.FormTypeExpense:
		if !expensePattern.MatchString(number) {
			return fmt.Errorf("invalid expense form number %q, want YYYY-NNN", number)
		}
	default:
		return fmt.Errorf("unknown form type %q", formType)
	}
	return nil
}

// VoucherScope returns the sequence counter for voucher numbers, one per
// calendar year.
func VoucherScope(t time.Time) string {
	return fmt.Sprintf("cv-%04d", t.Year())
}

// FormatVoucher renders a voucher number as CV-YYYY-NNNN.
func FormatVoucher(t time.Time, seq int64) string {
	return fmt.Sprintf("CV-%04d-%04d", t.Year(), seq)
}

// ValidateVoucher rejects any value that is not byte-exact CV-YYYY-NNNN.
func ValidateVoucher(number string) error {
	if !voucherPattern.MatchString(number) {
		return fmt.Errorf("invalid voucher number %q, want CV-YYYY-NNNN", number)
	}
	return nil
}
