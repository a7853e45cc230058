package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/inventory/application"
	"github.com/chiro/erp/internal/contexts/inventory/domain"
)

// GormTransactionScope implements application.TransactionScope using GORM
// transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside a transaction; an error from fn rolls it back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos application.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Items() domain.StockItemRepository {
	return NewGormStockItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() domain.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

var _ application.TransactionScope = (*GormTransactionScope)(nil)
