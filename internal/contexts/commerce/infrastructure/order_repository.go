// Package infrastructure provides the GORM and messaging adapters of the
// commerce context.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// GormOrderRepository implements domain.OrderRepository.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, sku ASC")
}

// FindByIDForTenant finds an order by ID within a tenant
func (r *GormOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sharedkernel.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindAllForTenant lists orders, newest first.
func (r *GormOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Order{}).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Order
	err := query.
		Preload("Lines", orderedLines).
		Order("created_at DESC, number DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GenerateNumber returns the next order number of the month for the
// tenant, SO-YYYYMM-NNNNN. The unique index rejects a concurrent duplicate.
func (r *GormOrderRepository) GenerateNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var count int64
	yearMonth := time.Now().UTC().Format("200601")
	if err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("tenant_id = ? AND number LIKE ?", tenantID, fmt.Sprintf("SO-%s-%%", yearMonth)).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("SO-%s-%05d", yearMonth, count+1), nil
}

// Create inserts an order together with its lines.
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sharedkernel.ErrAlreadyExists
	}
	return err
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *domain.Order, loadedVersion int) error {
	db := r.db.WithContext(ctx)
	result := db.
		Model(&domain.Order{}).
		Where("tenant_id = ? AND id = ? AND version = ?", order.TenantID, order.ID, loadedVersion).
		Updates(map[string]any{
			"status":        order.Status,
			"total":         order.Total,
			"cancel_reason": order.CancelReason,
			"placed_at":     order.PlacedAt,
			"cancelled_at":  order.CancelledAt,
			"version":       order.Version,
			"updated_at":    order.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sharedkernel.NewDomainError("CONCURRENCY_CONFLICT", "Order was modified by another transaction")
	}

	var stored []uuid.UUID
	if err := db.Model(&domain.OrderLine{}).Where("order_id = ?", order.ID).Pluck("id", &stored).Error; err != nil {
		return err
	}
	known := make(map[uuid.UUID]struct{}, len(stored))
	for _, id := range stored {
		known[id] = struct{}{}
	}
	for i := range order.Lines {
		if _, ok := known[order.Lines[i].ID]; ok {
			continue
		}
		order.Lines[i].OrderID = order.ID
		if err := db.Create(&order.Lines[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)
