package infrastructure

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/inventory/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// GormMovementRepository implements domain.MovementRepository.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a ledger row.
func (r *GormMovementRepository) Create(ctx context.Context, movement *domain.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindByItem returns the item's ledger, newest first.
func (r *GormMovementRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, page sharedkernel.Pagination) ([]domain.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.StockMovement{}).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.StockMovement
	err := query.
		Order("item_version DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

var _ domain.MovementRepository = (*GormMovementRepository)(nil)
