// Package infrastructure provides the GORM adapters of the inventory context.
package infrastructure

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/inventory/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// GormStockItemRepository implements domain.StockItemRepository.
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

// FindByIDForTenant finds a stock item by ID within a tenant
func (r *GormStockItemRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.StockItem, error) {
	var item domain.StockItem
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sharedkernel.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ExistsBySKU checks the tenant+warehouse+SKU uniqueness rule.
func (r *GormStockItemRepository) ExistsBySKU(ctx context.Context, tenantID uuid.UUID, warehouseCode, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.StockItem{}).
		Where("tenant_id = ? AND warehouse_code = ? AND sku = ?", tenantID, warehouseCode, sku).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAllForTenant lists stock items matching filter, ordered by SKU.
func (r *GormStockItemRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.ItemFilter) ([]domain.StockItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.StockItem{}).Where("tenant_id = ?", tenantID)
	if filter.WarehouseCode != "" {
		query = query.Where("warehouse_code = ?", filter.WarehouseCode)
	}
	if filter.SKU != "" {
		query = query.Where("sku LIKE ?", filter.SKU+"%")
	}
	if filter.LowStockOnly {
		query = query.Where("on_hand - reserved <= reorder_level")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.StockItem
	err := query.
		Order("sku ASC, warehouse_code ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Create inserts a new stock item. A unique index violation is reported
// as ErrAlreadyExists.
func (r *GormStockItemRepository) Create(ctx context.Context, item *domain.StockItem) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sharedkernel.ErrAlreadyExists
	}
	return err
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockItemRepository) SaveWithLock(ctx context.Context, item *domain.StockItem) error {
	result := r.db.WithContext(ctx).
		Model(&domain.StockItem{}).
		Where("tenant_id = ? AND id = ? AND version = ?", item.TenantID, item.ID, item.Version-1).
		Updates(map[string]any{
			"on_hand":       item.OnHand,
			"reserved":      item.Reserved,
			"reorder_level": item.ReorderLevel,
			"name":          item.Name,
			"version":       item.Version,
			"updated_at":    item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sharedkernel.NewDomainError("CONCURRENCY_CONFLICT",
			"Stock item was modified by another transaction")
	}
	return nil
}

var _ domain.StockItemRepository = (*GormStockItemRepository)(nil)
