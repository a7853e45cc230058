package application

import (
	"context"

	"github.com/chiro/erp/internal/contexts/biingestion/domain"
)

// TransactionScope runs fn with repositories bound to one database
// transaction, so the ledger row and the fact deltas commit together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the stores sharing the
// current transaction.
type TransactionalRepositories interface {
	Ingested() domain.IngestedEventRepository
	Facts() domain.FactRepository
}
