package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/pkg/utils"
)

// SupplierService manages supplier records and name lookups.
type SupplierService interface {
	Create(ctx context.Context, supplier *entity.Supplier) (*entity.Supplier, error)
	Update(ctx context.Context, supplier *entity.Supplier) (*entity.Supplier, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*entity.Supplier, error)
	List(ctx context.Context, search string) ([]*entity.Supplier, error)
	Name(ctx context.Context, id int64) (string, error)
}

type supplierServiceImpl struct {
	supplierRepo port.SupplierRepository
	logger       Logger

	// names is a read-through cache for display lookups. It is advisory
	// only: a stale name never feeds an invariant, so entries are refreshed
	// on writes but otherwise kept indefinitely.
	mu    sync.RWMutex
	names map[int64]string
}

// NewSupplierService creates a new SupplierService
func NewSupplierService(supplierRepo port.SupplierRepository, logger Logger) SupplierService {
	return &supplierServiceImpl{
		supplierRepo: supplierRepo,
		logger:       logger,
		names:        make(map[int64]string),
	}
}

// Create stores a new supplier record.
func (s *supplierServiceImpl) Create(ctx context.Context, supplier *entity.Supplier) (*entity.Supplier, error) {
	if err := validateSupplier(supplier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.supplierRepo.Insert(ctx, supplier); err != nil {
		s.logger.Error("Failed to create supplier", "error", err, "name", supplier.Name)
		return nil, fmt.Errorf("insert supplier: %w", err)
	}

	s.cacheName(supplier.ID, supplier.Name)
	s.logger.Info("Supplier created", "id", supplier.ID, "name", supplier.Name)
	return supplier, nil
}

// Update replaces an existing supplier record.
func (s *supplierServiceImpl) Update(ctx context.Context, supplier *entity.Supplier) (*entity.Supplier, error) {
	if supplier.ID == 0 {
		return nil, fmt.Errorf("%w: supplier id is required for update", ErrValidation)
	}
	if err := validateSupplier(supplier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	existing, err := s.supplierRepo.GetByID(ctx, supplier.ID)
	if err != nil {
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, supplier.ID)
	}

	if err := s.supplierRepo.Update(ctx, supplier); err != nil {
		s.logger.Error("Failed to update supplier", "error", err, "id", supplier.ID)
		return nil, fmt.Errorf("update supplier: %w", err)
	}

	s.cacheName(supplier.ID, supplier.Name)
	s.logger.Info("Supplier updated", "id", supplier.ID)
	return supplier, nil
}

// Delete removes a supplier record.
func (s *supplierServiceImpl) Delete(ctx context.Context, id int64) error {
	deleted, err := s.supplierRepo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete supplier", "error", err, "id", id)
		return fmt.Errorf("delete supplier: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: supplier %d", ErrNotFound, id)
	}

	s.mu.Lock()
	delete(s.names, id)
	s.mu.Unlock()

	s.logger.Info("Supplier deleted", "id", id)
	return nil
}

// Get retrieves a supplier by ID.
func (s *supplierServiceImpl) Get(ctx context.Context, id int64) (*entity.Supplier, error) {
	supplier, err := s.supplierRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get supplier", "error", err, "id", id)
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, id)
	}
	return supplier, nil
}

// List retrieves suppliers, optionally filtered by a search term matched
// against name and contact person.
func (s *supplierServiceImpl) List(ctx context.Context, search string) ([]*entity.Supplier, error) {
	suppliers, err := s.supplierRepo.List(ctx, search)
	if err != nil {
		s.logger.Error("Failed to list suppliers", "error", err)
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}

// Name returns the display name for a supplier, serving repeated lookups
// from the cache.
func (s *supplierServiceImpl) Name(ctx context.Context, id int64) (string, error) {
	s.mu.RLock()
	name, ok := s.names[id]
	s.mu.RUnlock()
	if ok {
		return name, nil
	}

	supplier, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	s.cacheName(id, supplier.Name)
	return supplier.Name, nil
}

func validateSupplier(supplier *entity.Supplier) error {
	if err := supplier.Validate(); err != nil {
		return err
	}
	if supplier.Email != "" {
		return utils.ValidateEmail(supplier.Email)
	}
	return nil
}

func (s *supplierServiceImpl) cacheName(id int64, name string) {
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
}
