// Package infrastructure provides the GORM and messaging adapters of the
// CRM context.
package infrastructure

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// GormCustomerRepository implements domain.CustomerRepository.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByIDForTenant finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sharedkernel.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ExistsByCode checks if a customer code is taken within a tenant
func (r *GormCustomerRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAllForTenant lists customers ordered by code.
func (r *GormCustomerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.CustomerFilter) ([]domain.Customer, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Customer{}).Where("tenant_id = ?", tenantID)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if filter.Segment != "" {
		query = query.Where("segment = ?", filter.Segment)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Customer
	err := query.
		Order("code ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Create inserts a customer.
func (r *GormCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sharedkernel.ErrAlreadyExists
	}
	return err
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, c *domain.Customer, loadedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("tenant_id = ? AND id = ? AND version = ?", c.TenantID, c.ID, loadedVersion).
		Updates(map[string]any{
			"name":           c.Name,
			"email":          c.Email,
			"phone":          c.Phone,
			"segment":        c.Segment,
			"status":         c.Status,
			"order_count":    c.OrderCount,
			"lifetime_value": c.LifetimeValue,
			"version":        c.Version,
			"updated_at":     c.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sharedkernel.NewDomainError("CONCURRENCY_CONFLICT", "Customer was modified by another transaction")
	}
	return nil
}

var _ domain.CustomerRepository = (*GormCustomerRepository)(nil)
