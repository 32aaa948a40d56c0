package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

// RequestFilter narrows List results. Zero-valued fields apply no filtering.
type RequestFilter struct {
	FormType    entity.FormType
	Statuses    []entity.Status
	RequestorID *uuid.UUID
	Search      string // matched against the form number
	From        *time.Time
	To          *time.Time
}

// Page is 1-based pagination.
type Page struct {
	Number int
	Size   int
}

// Limit returns the page size, bounded to a sane default.
func (p Page) Limit() int {
	if p.Size <= 0 || p.Size > 100 {
		return 20
	}
	return p.Size
}

// Offset returns the number of records to skip.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}

// RequestRepository defines persistence operations for Request. GetByID
// returns (nil, nil) when the record does not exist.
type RequestRepository interface {
	Insert(ctx context.Context, req *entity.Request) error
	Update(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	UpdateStatus(ctx context.Context, id int64, status entity.Status, remarks string) error
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter RequestFilter, page Page) ([]*entity.Request, int, error)
}

// RequestItemRepository defines persistence operations for RequestItem.
// Items have no independent lifecycle: they are written and removed only
// through their parent request.
type RequestItemRepository interface {
	InsertBatch(ctx context.Context, requestID int64, items []*entity.RequestItem) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestItem, error)
	DeleteByRequestID(ctx context.Context, requestID int64) error
}

// AuditRepository defines persistence operations for the append-only audit
// trail. GetByRequestID returns entries newest first.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.AuditEntry, error)
}

// SupplierRepository defines persistence operations for Supplier.
type SupplierRepository interface {
	Insert(ctx context.Context, supplier *entity.Supplier) error
	Update(ctx context.Context, supplier *entity.Supplier) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*entity.Supplier, error)
	List(ctx context.Context, search string) ([]*entity.Supplier, error)
}

// VoucherRepository defines persistence operations for Voucher and its
// entries. Entries are replaced as a unit with their parent.
type VoucherRepository interface {
	Insert(ctx context.Context, voucher *entity.Voucher) error
	Update(ctx context.Context, voucher *entity.Voucher) error
	GetByID(ctx context.Context, id int64) (*entity.Voucher, error)
	List(ctx context.Context, status entity.Status) ([]*entity.Voucher, error)
	InsertEntries(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error
	DeleteEntriesByVoucherID(ctx context.Context, voucherID int64) error
	GetEntriesByVoucherID(ctx context.Context, voucherID int64) ([]*entity.VoucherEntry, error)
}

// SequenceRepository is the atomic counter primitive behind form numbering.
type SequenceRepository interface {
	// Next increments and returns the counter for the scope. Concurrent
	// callers never observe the same value for the same scope.
	Next(ctx context.Context, scope string) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
