package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/internal/domain/formnum"
	"github.com/opsfinance/formflow/internal/domain/workflow"
)

// maxNumberAttempts bounds how often a create regenerates a colliding form
// number before giving up.
const maxNumberAttempts = 3

// requestFormNumberConstraint is the unique constraint backing form numbers,
// as reported by the store.
const requestFormNumberConstraint = "requests.form_number"

// RequestService is the lifecycle engine for purchase requests and expense
// reimbursement forms: creation with idempotent form numbering, item
// replacement, status transitions, and the audit trail.
type RequestService interface {
	Create(ctx context.Context, actor entity.Actor, req *entity.Request) (*entity.Request, error)
	Get(ctx context.Context, id int64) (*entity.Request, error)
	List(ctx context.Context, filter port.RequestFilter, page port.Page) ([]*entity.Request, int, error)
	Transition(ctx context.Context, actor entity.Actor, id int64, to entity.Status, remarks string) error
	Delete(ctx context.Context, actor entity.Actor, id int64) error
	AuditTrail(ctx context.Context, id int64) ([]*entity.AuditEntry, error)
}

type requestServiceImpl struct {
	requestRepo port.RequestRepository
	itemRepo    port.RequestItemRepository
	auditRepo   port.AuditRepository
	seqRepo     port.SequenceRepository
	txManager   port.TransactionManager
	logger      Logger
	now         func() time.Time
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo port.RequestRepository,
	itemRepo port.RequestItemRepository,
	auditRepo port.AuditRepository,
	seqRepo port.SequenceRepository,
	txManager port.TransactionManager,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		requestRepo: requestRepo,
		itemRepo:    itemRepo,
		auditRepo:   auditRepo,
		seqRepo:     seqRepo,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}
}

// Create creates a new request, or fully replaces an existing one when an ID
// is supplied. Items always travel with their parent: on update the old item
// set is removed and the supplied set inserted in its place.
func (s *requestServiceImpl) Create(ctx context.Context, actor entity.Actor, req *entity.Request) (*entity.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.FormNumber != "" {
		if err := formnum.Validate(req.FormType, req.FormNumber); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	req.Normalize()

	if req.ID != 0 {
		return s.replace(ctx, actor, req)
	}
	return s.createNew(ctx, actor, req)
}

func (s *requestServiceImpl) createNew(ctx context.Context, actor entity.Actor, req *entity.Request) (*entity.Request, error) {
	if req.Status == "" {
		req.Status = entity.StatusDraft
	}

	generated := req.FormNumber == ""
	inserted := false
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		if req.FormNumber == "" {
			number, err := s.nextFormNumber(ctx, req.FormType)
			if err != nil {
				return nil, err
			}
			req.FormNumber = number
		}

		err := s.requestRepo.Insert(ctx, req)
		if err == nil {
			inserted = true
			break
		}
		if !port.IsConstraintViolation(err, requestFormNumberConstraint) {
			s.logger.Error("Failed to insert request", "error", err, "form_number", req.FormNumber)
			return nil, fmt.Errorf("insert request: %w", err)
		}
		if !generated {
			return nil, fmt.Errorf("%w: form number %s already exists", ErrConflict, req.FormNumber)
		}
		s.logger.Info("Form number already taken, regenerating",
			"form_number", req.FormNumber, "attempt", attempt)
		req.FormNumber = ""
	}
	if !inserted {
		return nil, ErrNumberExhausted
	}

	if len(req.Items) > 0 {
		if err := s.itemRepo.InsertBatch(ctx, req.ID, req.Items); err != nil {
			s.logger.Error("Request created without items", "error", err, "id", req.ID)
			return nil, fmt.Errorf("%w: request %d has no items: %v", ErrPartialFailure, req.ID, err)
		}
	}

	if err := s.appendAudit(ctx, req.ID, actor, "Created "+formLabel(req.FormType), ""); err != nil {
		return nil, err
	}

	s.logger.Info("Request created", "id", req.ID, "form_number", req.FormNumber, "form_type", req.FormType)
	return s.Get(ctx, req.ID)
}

// replace updates the parent record and swaps the full item set. The three
// store calls are issued sequentially; a failure between the item delete and
// the item insert leaves the request with zero items and is surfaced as
// ErrPartialFailure rather than success.
func (s *requestServiceImpl) replace(ctx context.Context, actor entity.Actor, req *entity.Request) (*entity.Request, error) {
	existing, err := s.requestRepo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, req.ID)
	}
	if req.FormNumber == "" {
		req.FormNumber = existing.FormNumber
	}
	if req.Status == "" {
		req.Status = existing.Status
	}

	if err := s.requestRepo.Update(ctx, req); err != nil {
		s.logger.Error("Failed to update request", "error", err, "id", req.ID)
		return nil, fmt.Errorf("update request: %w", err)
	}
	if err := s.itemRepo.DeleteByRequestID(ctx, req.ID); err != nil {
		s.logger.Error("Failed to delete old items", "error", err, "id", req.ID)
		return nil, fmt.Errorf("delete items: %w", err)
	}
	if len(req.Items) > 0 {
		if err := s.itemRepo.InsertBatch(ctx, req.ID, req.Items); err != nil {
			s.logger.Error("Request left without items", "error", err, "id", req.ID)
			return nil, fmt.Errorf("%w: request %d left with zero items: %v", ErrPartialFailure, req.ID, err)
		}
	}

	if err := s.appendAudit(ctx, req.ID, actor, "Updated "+formLabel(req.FormType), ""); err != nil {
		return nil, err
	}

	s.logger.Info("Request updated", "id", req.ID, "form_number", req.FormNumber)
	return s.Get(ctx, req.ID)
}

// Get retrieves a request with its items. Monetary values are renormalized on
// load so a stored total that disagrees with its items is corrected, never
// returned verbatim.
func (s *requestServiceImpl) Get(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get request", "error", err, "id", id)
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}

	items, err := s.itemRepo.GetByRequestID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get items", "error", err, "id", id)
		return nil, fmt.Errorf("get items: %w", err)
	}
	req.Items = items
	req.Normalize()
	return req, nil
}

// List retrieves a summary page of requests without their items. Persisted
// totals are preserved (normalized) since the items are not loaded.
func (s *requestServiceImpl) List(ctx context.Context, filter port.RequestFilter, page port.Page) ([]*entity.Request, int, error) {
	requests, total, err := s.requestRepo.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("Failed to list requests", "error", err)
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	for _, req := range requests {
		req.TotalAmount = entity.NormalizeAmount(req.TotalAmount)
	}
	return requests, total, nil
}

// Transition moves a request to the target status when the lifecycle table
// allows it and the actor's role passes the guard. A successful transition
// appends exactly one audit entry, atomically with the status write.
func (s *requestServiceImpl) Transition(ctx context.Context, actor entity.Actor, id int64, to entity.Status, remarks string) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("%w: request %d", ErrNotFound, id)
	}

	machine, err := workflow.NewRequestLifecycle(req.Status)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	trigger, ok := workflow.TriggerFor(req.Status, to)
	if !ok {
		return fmt.Errorf("%w: no transition from %s to %s", ErrValidation, req.Status, to)
	}
	if err := machine.Fire(trigger, actor); err != nil {
		if errors.Is(err, workflow.ErrNotPermitted) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.UpdateStatus(txCtx, id, to, remarks); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		entry := &entity.AuditEntry{
			RequestID: id,
			Action:    "Updated status to " + to.String(),
			UserID:    actor.UserID,
			UserName:  actor.Name,
			Details:   remarks,
			CreatedAt: s.now(),
		}
		if err := s.auditRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to transition request", "error", err, "id", id, "to", to)
		return err
	}

	s.logger.Info("Status updated", "id", id, "from", req.Status, "to", to)
	return nil
}

// Delete removes a draft and its items. Requests that have left draft are
// never hard-deleted.
func (s *requestServiceImpl) Delete(ctx context.Context, actor entity.Actor, id int64) error {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if req.Status != entity.StatusDraft {
		return fmt.Errorf("%w: only draft requests can be deleted, status is %s", ErrValidation, req.Status)
	}
	if !actor.CanDelete(req) {
		return fmt.Errorf("%w: only the requestor or an elevated role may delete a draft", ErrPermissionDenied)
	}

	// Items go first; they cannot outlive their parent.
	if err := s.itemRepo.DeleteByRequestID(ctx, id); err != nil {
		s.logger.Error("Failed to delete items", "error", err, "id", id)
		return fmt.Errorf("delete items: %w", err)
	}
	deleted, err := s.requestRepo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete request", "error", err, "id", id)
		return fmt.Errorf("delete request: %w", err)
	}
	if !deleted {
		return fmt.Errorf("request %d was not deleted", id)
	}

	s.logger.Info("Request deleted", "id", id, "form_number", req.FormNumber)
	return nil
}

// AuditTrail returns the audit entries for a request, newest first.
func (s *requestServiceImpl) AuditTrail(ctx context.Context, id int64) ([]*entity.AuditEntry, error) {
	entries, err := s.auditRepo.GetByRequestID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get audit trail", "error", err, "id", id)
		return nil, fmt.Errorf("get audit trail: %w", err)
	}
	return entries, nil
}

func (s *requestServiceImpl) nextFormNumber(ctx context.Context, formType entity.FormType) (string, error) {
	now := s.now()
	seq, err := s.seqRepo.Next(ctx, formnum.Scope(formType, now))
	if err != nil {
		s.logger.Error("Failed to advance form number sequence", "error", err, "form_type", formType)
		return "", fmt.Errorf("next form number: %w", err)
	}
	return formnum.Format(formType, now, seq), nil
}

func (s *requestServiceImpl) appendAudit(ctx context.Context, requestID int64, actor entity.Actor, action, details string) error {
	entry := &entity.AuditEntry{
		RequestID: requestID,
		Action:    action,
		UserID:    actor.UserID,
		UserName:  actor.Name,
		Details:   details,
		CreatedAt: s.now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", "error", err, "request_id", requestID)
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func formLabel(formType entity.FormType) string {
	if formType == entity.FormTypeExpense {
		return "expense reimbursement form"
	}
	return "purchase request"
}
