package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FormType distinguishes the two form shapes that share the request lifecycle.
type FormType string

const (
	FormTypePurchase FormType = "purchase"
	FormTypeExpense  FormType = "expense"
)

// IsValid returns true if the form type is known
func (t FormType) IsValid() bool {
	return t == FormTypePurchase || t == FormTypeExpense
}

// String returns the string representation of the form type
func (t FormType) String() string {
	return string(t)
}

// Status represents the lifecycle status of a request
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusDraft:    true,
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// RequestItem is a line item of a purchase request or expense form. Items are
// owned exclusively by their parent request and are replaced as a unit on
// every update.
type RequestItem struct {
	ID          int64           `json:"id"`
	RequestID   int64           `json:"request_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	AccountCode string          `json:"account_code,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Normalize recomputes the line total as quantity × unit price, rounded to two
// digits. The product is rounded, not the inputs. A caller-supplied total that
// disagrees with the derived value is overwritten rather than rejected, to
// tolerate stale client-side computations.
func (i *RequestItem) Normalize() {
	i.Total = NormalizeAmount(i.Quantity.Mul(i.UnitPrice))
}

// Validate checks the fields a line item must carry before it can be stored.
func (i *RequestItem) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return errors.New("item description is required")
	}
	if !i.Quantity.IsPositive() {
		return fmt.Errorf("item quantity must be greater than zero, got %s", i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("item unit price must not be negative, got %s", i.UnitPrice)
	}
	return nil
}

// Request is a purchase request or expense reimbursement form. Both shapes
// share the same lifecycle; FormType selects the form-number format and the
// counterparty field that applies (SupplierID for purchases, Payee for
// expenses).
type Request struct {
	ID          int64           `json:"id"`
	FormNumber  string          `json:"form_number"`
	FormType    FormType        `json:"form_type"`
	RequestorID uuid.UUID       `json:"requestor_id"`
	SupplierID  *int64          `json:"supplier_id,omitempty"`
	Payee       string          `json:"payee,omitempty"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Remarks     string          `json:"remarks,omitempty"`
	Items       []*RequestItem  `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Normalize applies monetary normalization to every item and, when items are
// present, recomputes the request total as the sum of item totals. Stored
// totals are never trusted verbatim. When no items are loaded (a summary
// view), the persisted total is kept, normalized.
func (r *Request) Normalize() {
	for _, item := range r.Items {
		item.Normalize()
	}
	if len(r.Items) > 0 {
		sum := decimal.Zero
		for _, item := range r.Items {
			sum = sum.Add(item.Total)
		}
		r.TotalAmount = NormalizeAmount(sum)
		return
	}
	r.TotalAmount = NormalizeAmount(r.TotalAmount)
}

// Validate checks the request and all of its items.
func (r *Request) Validate() error {
	if !r.FormType.IsValid() {
		return fmt.Errorf("unknown form type %q", r.FormType)
	}
	if r.RequestorID == uuid.Nil {
		return errors.New("requestor is required")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	for idx, item := range r.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", idx+1, err)
		}
	}
	return nil
}
