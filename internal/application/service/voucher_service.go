package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/internal/domain/formnum"
)

const voucherNumberConstraint = "vouchers.voucher_number"

// VoucherService manages payment vouchers prepared from approved requests.
type VoucherService interface {
	Create(ctx context.Context, voucher *entity.Voucher) (*entity.Voucher, error)
	Update(ctx context.Context, voucher *entity.Voucher) (*entity.Voucher, error)
	Get(ctx context.Context, id int64) (*entity.Voucher, error)
	List(ctx context.Context, status entity.Status) ([]*entity.Voucher, error)
}

type voucherServiceImpl struct {
	voucherRepo port.VoucherRepository
	seqRepo     port.SequenceRepository
	logger      Logger
	now         func() time.Time
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(voucherRepo port.VoucherRepository, seqRepo port.SequenceRepository, logger Logger) VoucherService {
	return &voucherServiceImpl{
		voucherRepo: voucherRepo,
		seqRepo:     seqRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores a new voucher together with its debit/credit entries. An
// empty voucher number is generated; a caller-supplied one must already be in
// the canonical format and is surfaced as a conflict if taken.
func (s *voucherServiceImpl) Create(ctx context.Context, voucher *entity.Voucher) (*entity.Voucher, error) {
	if err := voucher.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if voucher.VoucherNumber != "" {
		if err := formnum.ValidateVoucher(voucher.VoucherNumber); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	voucher.Normalize()
	if voucher.Date.IsZero() {
		voucher.Date = s.now()
	}
	voucher.Status = entity.StatusDraft

	generated := voucher.VoucherNumber == ""
	for attempt := 1; ; attempt++ {
		if generated {
			number, err := s.nextVoucherNumber(ctx)
			if err != nil {
				return nil, err
			}
			voucher.VoucherNumber = number
		}

		err := s.voucherRepo.Insert(ctx, voucher)
		if err == nil {
			break
		}
		if !port.IsConstraintViolation(err, voucherNumberConstraint) {
			s.logger.Error("Failed to insert voucher", "error", err)
			return nil, fmt.Errorf("insert voucher: %w", err)
		}
		if !generated {
			return nil, fmt.Errorf("%w: voucher number %s already in use", ErrConflict, voucher.VoucherNumber)
		}
		s.logger.Info("Voucher number collision, retrying",
			"number", voucher.VoucherNumber, "attempt", attempt)
		if attempt >= maxNumberAttempts {
			return nil, ErrNumberExhausted
		}
		voucher.VoucherNumber = ""
	}

	if len(voucher.Entries) > 0 {
		if err := s.voucherRepo.InsertEntries(ctx, voucher.ID, voucher.Entries); err != nil {
			s.logger.Error("Failed to insert voucher entries",
				"error", err, "voucher_id", voucher.ID)
			return nil, fmt.Errorf("%w: voucher %d stored without entries: %v",
				ErrPartialFailure, voucher.ID, err)
		}
	}

	s.logger.Info("Voucher created", "id", voucher.ID, "number", voucher.VoucherNumber)
	return s.Get(ctx, voucher.ID)
}

// Update replaces a voucher and its entries as a unit. The voucher number and
// status of the stored record are kept.
func (s *voucherServiceImpl) Update(ctx context.Context, voucher *entity.Voucher) (*entity.Voucher, error) {
	if err := voucher.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	existing, err := s.voucherRepo.GetByID(ctx, voucher.ID)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: voucher %d", ErrNotFound, voucher.ID)
	}

	voucher.VoucherNumber = existing.VoucherNumber
	voucher.Status = existing.Status
	voucher.Normalize()

	if err := s.voucherRepo.Update(ctx, voucher); err != nil {
		s.logger.Error("Failed to update voucher", "error", err, "id", voucher.ID)
		return nil, fmt.Errorf("update voucher: %w", err)
	}
	if err := s.voucherRepo.DeleteEntriesByVoucherID(ctx, voucher.ID); err != nil {
		return nil, fmt.Errorf("delete voucher entries: %w", err)
	}
	if len(voucher.Entries) > 0 {
		if err := s.voucherRepo.InsertEntries(ctx, voucher.ID, voucher.Entries); err != nil {
			s.logger.Error("Failed to replace voucher entries",
				"error", err, "voucher_id", voucher.ID)
			return nil, fmt.Errorf("%w: voucher %d left with zero entries: %v",
				ErrPartialFailure, voucher.ID, err)
		}
	}

	s.logger.Info("Voucher updated", "id", voucher.ID)
	return s.Get(ctx, voucher.ID)
}

// Get retrieves a voucher with its entries. Amounts are renormalized on the
// way out so stored values are never trusted verbatim.
func (s *voucherServiceImpl) Get(ctx context.Context, id int64) (*entity.Voucher, error) {
	voucher, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get voucher", "error", err, "id", id)
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if voucher == nil {
		return nil, fmt.Errorf("%w: voucher %d", ErrNotFound, id)
	}

	entries, err := s.voucherRepo.GetEntriesByVoucherID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get voucher entries: %w", err)
	}
	voucher.Entries = entries
	voucher.Normalize()
	return voucher, nil
}

// List retrieves voucher summaries, optionally filtered by status. Entries
// are not loaded.
func (s *voucherServiceImpl) List(ctx context.Context, status entity.Status) ([]*entity.Voucher, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	vouchers, err := s.voucherRepo.List(ctx, status)
	if err != nil {
		s.logger.Error("Failed to list vouchers", "error", err)
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	for _, v := range vouchers {
		v.TotalAmount = entity.NormalizeAmount(v.TotalAmount)
	}
	return vouchers, nil
}

func (s *voucherServiceImpl) nextVoucherNumber(ctx context.Context) (string, error) {
	now := s.now()
	seq, err := s.seqRepo.Next(ctx, formnum.VoucherScope(now))
	if err != nil {
		return "", fmt.Errorf("next voucher sequence: %w", err)
	}
	return formnum.FormatVoucher(now, seq), nil
}
