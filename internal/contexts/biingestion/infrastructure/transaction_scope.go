package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/biingestion/application"
	"github.com/chiro/erp/internal/contexts/biingestion/domain"
)

// GormTransactionScope implements application.TransactionScope.
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
		return fn(gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r gormTransactionalRepositories) Ingested() domain.IngestedEventRepository {
	return NewGormIngestedEventRepository(r.tx)
}

func (r gormTransactionalRepositories) Facts() domain.FactRepository {
	return NewGormFactRepository(r.tx)
}

var _ application.TransactionScope = (*GormTransactionScope)(nil)
