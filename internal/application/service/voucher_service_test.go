package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

type mockVoucherRepo struct {
	insertFn        func(ctx context.Context, voucher *entity.Voucher) error
	updateFn        func(ctx context.Context, voucher *entity.Voucher) error
	getByIDFn       func(ctx context.Context, id int64) (*entity.Voucher, error)
	listFn          func(ctx context.Context, status entity.Status) ([]*entity.Voucher, error)
	insertEntriesFn func(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error
	deleteEntriesFn func(ctx context.Context, voucherID int64) error
	getEntriesFn    func(ctx context.Context, voucherID int64) ([]*entity.VoucherEntry, error)
}

func (m *mockVoucherRepo) Insert(ctx context.Context, voucher *entity.Voucher) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, voucher)
	}
	voucher.ID = 1
	return nil
}

func (m *mockVoucherRepo) Update(ctx context.Context, voucher *entity.Voucher) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, voucher)
	}
	return nil
}

func (m *mockVoucherRepo) GetByID(ctx context.Context, id int64) (*entity.Voucher, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockVoucherRepo) List(ctx context.Context, status entity.Status) ([]*entity.Voucher, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	return nil, nil
}

func (m *mockVoucherRepo) InsertEntries(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error {
	if m.insertEntriesFn != nil {
		return m.insertEntriesFn(ctx, voucherID, entries)
	}
	return nil
}

func (m *mockVoucherRepo) DeleteEntriesByVoucherID(ctx context.Context, voucherID int64) error {
	if m.deleteEntriesFn != nil {
		return m.deleteEntriesFn(ctx, voucherID)
	}
	return nil
}

func (m *mockVoucherRepo) GetEntriesByVoucherID(ctx context.Context, voucherID int64) ([]*entity.VoucherEntry, error) {
	if m.getEntriesFn != nil {
		return m.getEntriesFn(ctx, voucherID)
	}
	return nil, nil
}

func newTestVoucherService(repo *mockVoucherRepo, seqRepo *mockSeqRepo) *voucherServiceImpl {
	return &voucherServiceImpl{
		voucherRepo: repo,
		seqRepo:     seqRepo,
		logger:      noopLogger{},
		now:         func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
}

func newTestVoucher() *entity.Voucher {
	return &entity.Voucher{
		Payee:      "Acme Supplies",
		PreparedBy: uuid.New(),
		Entries: []*entity.VoucherEntry{
			{AccountTitle: "Office Expenses", Debit: decimal.RequireFromString("100.005")},
			{AccountTitle: "Cash", Credit: decimal.RequireFromString("100.01")},
		},
	}
}

func TestVoucherCreateGeneratesNumber(t *testing.T) {
	var stored *entity.Voucher
	repo := &mockVoucherRepo{
		insertFn: func(ctx context.Context, v *entity.Voucher) error {
			v.ID = 11
			copied := *v
			stored = &copied
			return nil
		},
		getByIDFn: func(ctx context.Context, id int64) (*entity.Voucher, error) {
			return stored, nil
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	created, err := svc.Create(context.Background(), newTestVoucher())
	require.NoError(t, err)

	assert.Equal(t, "CV-2024-0001", created.VoucherNumber)
	assert.Equal(t, entity.StatusDraft, created.Status)
	// Sum of debits, normalized half up
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("100.01")),
		"total = %s", stored.TotalAmount)
}

func TestVoucherCreateRetriesOnCollision(t *testing.T) {
	var attempted []string
	var stored *entity.Voucher
	repo := &mockVoucherRepo{
		insertFn: func(ctx context.Context, v *entity.Voucher) error {
			attempted = append(attempted, v.VoucherNumber)
			if len(attempted) < 2 {
				return constraintErr("vouchers.voucher_number")
			}
			v.ID = 11
			copied := *v
			stored = &copied
			return nil
		},
		getByIDFn: func(ctx context.Context, id int64) (*entity.Voucher, error) {
			return stored, nil
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	created, err := svc.Create(context.Background(), newTestVoucher())
	require.NoError(t, err)
	require.Len(t, attempted, 2)
	assert.NotEqual(t, attempted[0], attempted[1])
	assert.Equal(t, attempted[1], created.VoucherNumber)
}

func TestVoucherCreateSuppliedDuplicate(t *testing.T) {
	repo := &mockVoucherRepo{
		insertFn: func(ctx context.Context, v *entity.Voucher) error {
			return constraintErr("vouchers.voucher_number")
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	v := newTestVoucher()
	v.VoucherNumber = "CV-2024-0099"

	_, err := svc.Create(context.Background(), v)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNumberExhausted)
}

func TestVoucherCreateValidation(t *testing.T) {
	svc := newTestVoucherService(&mockVoucherRepo{}, &mockSeqRepo{})

	noPayee := newTestVoucher()
	noPayee.Payee = ""
	_, err := svc.Create(context.Background(), noPayee)
	assert.ErrorIs(t, err, ErrValidation)

	badNumber := newTestVoucher()
	badNumber.VoucherNumber = "CV-24-1"
	_, err = svc.Create(context.Background(), badNumber)
	assert.ErrorIs(t, err, ErrValidation)

	emptyEntry := newTestVoucher()
	emptyEntry.Entries[0].Debit = decimal.Zero
	emptyEntry.Entries[0].Credit = decimal.Zero
	_, err = svc.Create(context.Background(), emptyEntry)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVoucherUpdateReplacesEntriesAsUnit(t *testing.T) {
	existing := &entity.Voucher{
		ID:            11,
		VoucherNumber: "CV-2024-0011",
		Payee:         "Acme Supplies",
		PreparedBy:    uuid.New(),
		Status:        entity.StatusPending,
	}
	entriesDeleted := false
	entriesInserted := false
	repo := &mockVoucherRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Voucher, error) {
			return existing, nil
		},
		deleteEntriesFn: func(ctx context.Context, voucherID int64) error {
			entriesDeleted = true
			return nil
		},
		insertEntriesFn: func(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error {
			entriesInserted = true
			return nil
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	update := newTestVoucher()
	update.ID = 11
	update.VoucherNumber = "CV-9999-9999" // must be ignored

	updated, err := svc.Update(context.Background(), update)
	require.NoError(t, err)
	assert.True(t, entriesDeleted, "old entries were not removed")
	assert.True(t, entriesInserted, "new entries were not written")
	assert.Equal(t, "CV-2024-0011", updated.VoucherNumber, "stored voucher number must be kept")
	assert.Equal(t, entity.StatusPending, updated.Status, "stored status must be kept")
}

func TestVoucherUpdatePartialFailure(t *testing.T) {
	existing := &entity.Voucher{
		ID:            11,
		VoucherNumber: "CV-2024-0011",
		Payee:         "Acme Supplies",
		PreparedBy:    uuid.New(),
		Status:        entity.StatusDraft,
	}
	repo := &mockVoucherRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Voucher, error) {
			return existing, nil
		},
		insertEntriesFn: func(ctx context.Context, voucherID int64, entries []*entity.VoucherEntry) error {
			return errors.New("write failed")
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	update := newTestVoucher()
	update.ID = 11

	_, err := svc.Update(context.Background(), update)
	assert.ErrorIs(t, err, ErrPartialFailure)
}

func TestVoucherGetNormalizes(t *testing.T) {
	repo := &mockVoucherRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Voucher, error) {
			return &entity.Voucher{
				ID:          id,
				Payee:       "Acme",
				PreparedBy:  uuid.New(),
				TotalAmount: decimal.RequireFromString("500"), // stale
			}, nil
		},
		getEntriesFn: func(ctx context.Context, voucherID int64) ([]*entity.VoucherEntry, error) {
			return []*entity.VoucherEntry{
				{AccountTitle: "Travel", Debit: decimal.RequireFromString("74.995")},
			}, nil
		},
	}
	svc := newTestVoucherService(repo, &mockSeqRepo{})

	v, err := svc.Get(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, v.TotalAmount.Equal(decimal.RequireFromString("75")), "total = %s", v.TotalAmount)
}

func TestVoucherListRejectsUnknownStatus(t *testing.T) {
	svc := newTestVoucherService(&mockVoucherRepo{}, &mockSeqRepo{})

	_, err := svc.List(context.Background(), entity.Status("archived"))
	assert.ErrorIs(t, err, ErrValidation)
}
