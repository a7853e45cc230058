// Package infrastructure provides the GORM and messaging adapters of
// bi-ingestion.
package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chiro/erp/internal/contexts/biingestion/domain"
)

// GormIngestedEventRepository implements domain.IngestedEventRepository.
type GormIngestedEventRepository struct {
	db *gorm.DB
}

// NewGormIngestedEventRepository creates a new GormIngestedEventRepository
func NewGormIngestedEventRepository(db *gorm.DB) *GormIngestedEventRepository {
	return &GormIngestedEventRepository{db: db}
}

// Record inserts the ledger row; a conflicting event id inserts nothing.
func (r *GormIngestedEventRepository) Record(ctx context.Context, e *domain.IngestedEvent) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GormFactRepository implements domain.FactRepository with upserts that
// add the delta to the stored row.
type GormFactRepository struct {
	db *gorm.DB
}

// NewGormFactRepository creates a new GormFactRepository
func NewGormFactRepository(db *gorm.DB) *GormFactRepository {
	return &GormFactRepository{db: db}
}

func accumulate(table string, columns ...string) clause.Set {
	values := make(map[string]any, len(columns)+1)
	for _, c := range columns {
		values[c] = gorm.Expr(table + "." + c + " + excluded." + c)
	}
	values["updated_at"] = gorm.Expr("excluded.updated_at")
	return clause.Assignments(values)
}

// AddSales adds delta to the sales row of its tenant, day and currency.
func (r *GormFactRepository) AddSales(ctx context.Context, delta domain.DailySales) error {
	delta.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "day"}, {Name: "currency"}},
		DoUpdates: accumulate("bi_daily_sales", "orders_placed", "orders_cancelled", "gross_amount", "cancelled_amount"),
	}).Create(&delta).Error
}

// AddCustomers adds delta to the customer row of its tenant and day.
func (r *GormFactRepository) AddCustomers(ctx context.Context, delta domain.DailyCustomers) error {
	delta.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "day"}},
		DoUpdates: accumulate("bi_daily_customers", "registrations", "suspensions", "reactivations"),
	}).Create(&delta).Error
}

// Sales returns the sales facts of [from, to].
func (r *GormFactRepository) Sales(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.DailySales, error) {
	var rows []domain.DailySales
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND day >= ? AND day <= ?", tenantID, from, to).
		Order("day ASC, currency ASC").
		Find(&rows).Error
	return rows, err
}

// Customers returns the customer facts of [from, to].
func (r *GormFactRepository) Customers(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.DailyCustomers, error) {
	var rows []domain.DailyCustomers
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND day >= ? AND day <= ?", tenantID, from, to).
		Order("day ASC").
		Find(&rows).Error
	return rows, err
}

var (
	_ domain.IngestedEventRepository = (*GormIngestedEventRepository)(nil)
	_ domain.FactRepository          = (*GormFactRepository)(nil)
)
