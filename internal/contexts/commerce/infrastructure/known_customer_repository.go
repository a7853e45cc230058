package infrastructure

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// GormKnownCustomerRepository implements domain.KnownCustomerRepository.
type GormKnownCustomerRepository struct {
	db *gorm.DB
}

// NewGormKnownCustomerRepository creates a new GormKnownCustomerRepository
func NewGormKnownCustomerRepository(db *gorm.DB) *GormKnownCustomerRepository {
	return &GormKnownCustomerRepository{db: db}
}

// Find returns the projected customer.
func (r *GormKnownCustomerRepository) Find(ctx context.Context, tenantID, customerID uuid.UUID) (*domain.KnownCustomer, error) {
	var c domain.KnownCustomer
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sharedkernel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts or refreshes the row. An empty code keeps the stored one,
// since status events do not carry it.
func (r *GormKnownCustomerRepository) Upsert(ctx context.Context, c *domain.KnownCustomer) error {
	updates := append(
		clause.AssignmentColumns([]string{"name", "status", "changed_at", "updated_at"}),
		clause.Assignment{
			Column: clause.Column{Name: "code"},
			Value:  gorm.Expr("COALESCE(NULLIF(excluded.code, ''), known_customers.code)"),
		},
	)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "customer_id"}},
		DoUpdates: updates,
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("known_customers.changed_at <= excluded.changed_at"),
		}},
	}).Create(c).Error
}

var _ domain.KnownCustomerRepository = (*GormKnownCustomerRepository)(nil)
