package application

import (
	"context"

	"github.com/chiro/erp/internal/contexts/inventory/domain"
)

// TransactionScope runs fn with repositories bound to one database
// transaction. An error from fn rolls the transaction back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the repositories sharing the
// current transaction.
type TransactionalRepositories interface {
	Items() domain.StockItemRepository
	Movements() domain.MovementRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a
// transaction. Tests use it with in-memory repositories.
type NoOpTransactionScope struct {
	items     domain.StockItemRepository
	movements domain.MovementRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(items domain.StockItemRepository, movements domain.MovementRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{items: items, movements: movements}
}

// Execute implements TransactionScope.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Items() domain.StockItemRepository    { return s.items }
func (s *NoOpTransactionScope) Movements() domain.MovementRepository { return s.movements }
