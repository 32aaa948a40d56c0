package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
)

// Mock repositories with overridable function fields.

type mockRequestRepo struct {
	insertFn       func(ctx context.Context, req *entity.Request) error
	updateFn       func(ctx context.Context, req *entity.Request) error
	getByIDFn      func(ctx context.Context, id int64) (*entity.Request, error)
	updateStatusFn func(ctx context.Context, id int64, status entity.Status, remarks string) error
	deleteFn       func(ctx context.Context, id int64) (bool, error)
	listFn         func(ctx context.Context, filter port.RequestFilter, page port.Page) ([]*entity.Request, int, error)
}

func (m *mockRequestRepo) Insert(ctx context.Context, req *entity.Request) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, req)
	}
	req.ID = 1
	return nil
}

func (m *mockRequestRepo) Update(ctx context.Context, req *entity.Request) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, req)
	}
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id int64, status entity.Status, remarks string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, remarks)
	}
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return true, nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter, page port.Page) ([]*entity.Request, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, page)
	}
	return nil, 0, nil
}

type mockItemRepo struct {
	insertBatchFn func(ctx context.Context, requestID int64, items []*entity.RequestItem) error
	getFn         func(ctx context.Context, requestID int64) ([]*entity.RequestItem, error)
	deleteFn      func(ctx context.Context, requestID int64) error
}

func (m *mockItemRepo) InsertBatch(ctx context.Context, requestID int64, items []*entity.RequestItem) error {
	if m.insertBatchFn != nil {
		return m.insertBatchFn(ctx, requestID, items)
	}
	return nil
}

func (m *mockItemRepo) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, requestID)
	}
	return nil, nil
}

func (m *mockItemRepo) DeleteByRequestID(ctx context.Context, requestID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requestID)
	}
	return nil
}

type mockAuditRepo struct {
	entries  []*entity.AuditEntry
	appendFn func(ctx context.Context, entry *entity.AuditEntry) error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.AuditEntry, error) {
	return m.entries, nil
}

type mockSeqRepo struct {
	next   int64
	nextFn func(ctx context.Context, scope string) (int64, error)
}

func (m *mockSeqRepo) Next(ctx context.Context, scope string) (int64, error) {
	if m.nextFn != nil {
		return m.nextFn(ctx, scope)
	}
	m.next++
	return m.next, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func constraintErr(name string) error {
	return &port.StoreError{
		Kind:       port.StoreConstraintViolation,
		Constraint: name,
		Err:        errors.New("UNIQUE constraint failed: " + name),
	}
}

func newTestService(reqRepo *mockRequestRepo, itemRepo *mockItemRepo, auditRepo *mockAuditRepo, seqRepo *mockSeqRepo) *requestServiceImpl {
	return &requestServiceImpl{
		requestRepo: reqRepo,
		itemRepo:    itemRepo,
		auditRepo:   auditRepo,
		seqRepo:     seqRepo,
		txManager:   &mockTxManager{},
		logger:      noopLogger{},
		now:         func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
}

func newDraft() *entity.Request {
	return &entity.Request{
		FormType:    entity.FormTypePurchase,
		RequestorID: uuid.New(),
		Items: []*entity.RequestItem{
			{Description: "Laptop", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("999.99")},
		},
	}
}

func TestCreateGeneratesFormNumber(t *testing.T) {
	reqRepo := &mockRequestRepo{}
	itemRepo := &mockItemRepo{}
	auditRepo := &mockAuditRepo{}
	seqRepo := &mockSeqRepo{}

	var stored *entity.Request
	reqRepo.insertFn = func(ctx context.Context, req *entity.Request) error {
		req.ID = 42
		copied := *req
		stored = &copied
		return nil
	}
	reqRepo.getByIDFn = func(ctx context.Context, id int64) (*entity.Request, error) {
		return stored, nil
	}

	svc := newTestService(reqRepo, itemRepo, auditRepo, seqRepo)
	actor := entity.Actor{UserID: uuid.New(), Name: "Ana", Role: entity.RoleRequestor}

	created, err := svc.Create(context.Background(), actor, newDraft())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.FormNumber != "PROF-2024-03-0001" {
		t.Errorf("form number = %q, want PROF-2024-03-0001", created.FormNumber)
	}
	if created.Status != entity.StatusDraft {
		t.Errorf("status = %s, want draft", created.Status)
	}
	if len(auditRepo.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditRepo.entries))
	}
	if auditRepo.entries[0].Action != "Created purchase request" {
		t.Errorf("audit action = %q", auditRepo.entries[0].Action)
	}
}

func TestCreateRetriesOnNumberCollision(t *testing.T) {
	reqRepo := &mockRequestRepo{}
	itemRepo := &mockItemRepo{}
	auditRepo := &mockAuditRepo{}
	seqRepo := &mockSeqRepo{}

	var attempted []string
	var stored *entity.Request
	reqRepo.insertFn = func(ctx context.Context, req *entity.Request) error {
		attempted = append(attempted, req.FormNumber)
		if len(attempted) < 2 {
			return constraintErr("requests.form_number")
		}
		req.ID = 7
		copied := *req
		stored = &copied
		return nil
	}
	reqRepo.getByIDFn = func(ctx context.Context, id int64) (*entity.Request, error) {
		return stored, nil
	}

	svc := newTestService(reqRepo, itemRepo, auditRepo, seqRepo)
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	created, err := svc.Create(context.Background(), actor, newDraft())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if len(attempted) != 2 {
		t.Fatalf("insert attempts = %d, want 2", len(attempted))
	}
	if attempted[0] == attempted[1] {
		t.Errorf("retry reused the colliding number %q", attempted[0])
	}
	if created.FormNumber != attempted[1] {
		t.Errorf("created with %q, want %q", created.FormNumber, attempted[1])
	}
}

func TestCreateGivesUpAfterRetryBound(t *testing.T) {
	reqRepo := &mockRequestRepo{}
	attempts := 0
	reqRepo.insertFn = func(ctx context.Context, req *entity.Request) error {
		attempts++
		return constraintErr("requests.form_number")
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	_, err := svc.Create(context.Background(), actor, newDraft())
	if !errors.Is(err, ErrNumberExhausted) {
		t.Fatalf("error = %v, want ErrNumberExhausted", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("ErrNumberExhausted should wrap ErrConflict")
	}
	if attempts != maxNumberAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxNumberAttempts)
	}
}

func TestCreateSuppliedDuplicateNotRetried(t *testing.T) {
	reqRepo := &mockRequestRepo{}
	attempts := 0
	reqRepo.insertFn = func(ctx context.Context, req *entity.Request) error {
		attempts++
		return constraintErr("requests.form_number")
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	req := newDraft()
	req.FormNumber = "PROF-2024-03-0099"

	_, err := svc.Create(context.Background(), actor, req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	if errors.Is(err, ErrNumberExhausted) {
		t.Error("caller-supplied duplicate should not exhaust retries")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCreateNonConflictErrorNotRetried(t *testing.T) {
	reqRepo := &mockRequestRepo{}
	attempts := 0
	reqRepo.insertFn = func(ctx context.Context, req *entity.Request) error {
		attempts++
		return &port.StoreError{Kind: port.StoreFailure, Err: errors.New("disk full")}
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	_, err := svc.Create(context.Background(), actor, newDraft())
	if err == nil {
		t.Fatal("Create succeeded, want error")
	}
	if errors.Is(err, ErrConflict) {
		t.Errorf("plain store failure surfaced as conflict: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCreateRejectsMalformedFormNumber(t *testing.T) {
	svc := newTestService(&mockRequestRepo{}, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	req := newDraft()
	req.FormNumber = "PROF-2024-3-1"

	_, err := svc.Create(context.Background(), actor, req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestReplaceUnknownRequest(t *testing.T) {
	svc := newTestService(&mockRequestRepo{}, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}

	req := newDraft()
	req.ID = 404

	_, err := svc.Create(context.Background(), actor, req)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestReplaceSurfacesPartialFailure(t *testing.T) {
	owner := uuid.New()
	existing := &entity.Request{
		ID:          5,
		FormNumber:  "PROF-2024-03-0005",
		FormType:    entity.FormTypePurchase,
		RequestorID: owner,
		Status:      entity.StatusDraft,
	}

	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return existing, nil
		},
	}
	itemRepo := &mockItemRepo{
		insertBatchFn: func(ctx context.Context, requestID int64, items []*entity.RequestItem) error {
			return errors.New("write failed")
		},
	}

	svc := newTestService(reqRepo, itemRepo, &mockAuditRepo{}, &mockSeqRepo{})
	actor := entity.Actor{UserID: owner, Role: entity.RoleRequestor}

	req := newDraft()
	req.ID = 5
	req.RequestorID = owner

	_, err := svc.Create(context.Background(), actor, req)
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("error = %v, want ErrPartialFailure", err)
	}
}

func TestTransitionAppendsOneAuditEntry(t *testing.T) {
	pending := &entity.Request{ID: 3, Status: entity.StatusPending, RequestorID: uuid.New()}
	var statusWritten entity.Status
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return pending, nil
		},
		updateStatusFn: func(ctx context.Context, id int64, status entity.Status, remarks string) error {
			statusWritten = status
			return nil
		},
	}
	auditRepo := &mockAuditRepo{}

	svc := newTestService(reqRepo, &mockItemRepo{}, auditRepo, &mockSeqRepo{})
	finance := entity.Actor{UserID: uuid.New(), Name: "Mo", Role: entity.RoleFinance}

	if err := svc.Transition(context.Background(), finance, 3, entity.StatusApproved, "looks good"); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if statusWritten != entity.StatusApproved {
		t.Errorf("status written = %s, want approved", statusWritten)
	}
	if len(auditRepo.entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(auditRepo.entries))
	}
	entry := auditRepo.entries[0]
	if entry.Action != "Updated status to approved" {
		t.Errorf("audit action = %q", entry.Action)
	}
	if entry.Details != "looks good" {
		t.Errorf("audit details = %q", entry.Details)
	}
}

func TestTransitionInvalidPair(t *testing.T) {
	draft := &entity.Request{ID: 3, Status: entity.StatusDraft, RequestorID: uuid.New()}
	statusWrites := 0
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return draft, nil
		},
		updateStatusFn: func(ctx context.Context, id int64, status entity.Status, remarks string) error {
			statusWrites++
			return nil
		},
	}
	auditRepo := &mockAuditRepo{}

	svc := newTestService(reqRepo, &mockItemRepo{}, auditRepo, &mockSeqRepo{})
	admin := entity.Actor{UserID: uuid.New(), Role: entity.RoleAdmin}

	// draft -> approved skips the pending stage
	err := svc.Transition(context.Background(), admin, 3, entity.StatusApproved, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if statusWrites != 0 || len(auditRepo.entries) != 0 {
		t.Error("failed transition produced side effects")
	}
}

func TestTransitionRequiresElevatedRole(t *testing.T) {
	pending := &entity.Request{ID: 3, Status: entity.StatusPending, RequestorID: uuid.New()}
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return pending, nil
		},
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	requestor := entity.Actor{UserID: pending.RequestorID, Role: entity.RoleRequestor}

	err := svc.Transition(context.Background(), requestor, 3, entity.StatusApproved, "")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc := newTestService(&mockRequestRepo{}, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})
	admin := entity.Actor{UserID: uuid.New(), Role: entity.RoleAdmin}

	err := svc.Transition(context.Background(), admin, 3, entity.Status("archived"), "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestDeleteOnlyDrafts(t *testing.T) {
	owner := uuid.New()
	pending := &entity.Request{ID: 9, Status: entity.StatusPending, RequestorID: owner}
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return pending, nil
		},
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})

	err := svc.Delete(context.Background(), entity.Actor{UserID: owner, Role: entity.RoleRequestor}, 9)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	owner := uuid.New()
	draft := &entity.Request{ID: 9, Status: entity.StatusDraft, RequestorID: owner}
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return draft, nil
		},
	}

	svc := newTestService(reqRepo, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})

	stranger := entity.Actor{UserID: uuid.New(), Role: entity.RoleRequestor}
	if err := svc.Delete(context.Background(), stranger, 9); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("stranger delete: error = %v, want ErrPermissionDenied", err)
	}

	if err := svc.Delete(context.Background(), entity.Actor{UserID: owner, Role: entity.RoleRequestor}, 9); err != nil {
		t.Errorf("owner delete failed: %v", err)
	}
	if err := svc.Delete(context.Background(), entity.Actor{UserID: uuid.New(), Role: entity.RoleFinance}, 9); err != nil {
		t.Errorf("finance delete failed: %v", err)
	}
}

func TestGetRenormalizesTotals(t *testing.T) {
	reqRepo := &mockRequestRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Request, error) {
			return &entity.Request{
				ID:          1,
				Status:      entity.StatusDraft,
				RequestorID: uuid.New(),
				TotalAmount: decimal.RequireFromString("999"), // stale
			}, nil
		},
	}
	itemRepo := &mockItemRepo{
		getFn: func(ctx context.Context, requestID int64) ([]*entity.RequestItem, error) {
			return []*entity.RequestItem{
				{Description: "Chair", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.345")},
			}, nil
		},
	}

	svc := newTestService(reqRepo, itemRepo, &mockAuditRepo{}, &mockSeqRepo{})

	req, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	// 2 x 12.345 = 24.69: product rounded, stale total discarded
	if !req.TotalAmount.Equal(decimal.RequireFromString("24.69")) {
		t.Errorf("total = %s, want 24.69", req.TotalAmount)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(&mockRequestRepo{}, &mockItemRepo{}, &mockAuditRepo{}, &mockSeqRepo{})

	_, err := svc.Get(context.Background(), 12345)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
