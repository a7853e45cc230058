package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// TransactionScope runs fn with repositories bound to one database
// transaction. An error from fn rolls everything back, outbox rows included.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the stores sharing the
// current transaction.
type TransactionalRepositories interface {
	Orders() domain.OrderRepository
	Customers() domain.KnownCustomerRepository
	Outbox() EventOutbox
	Processed() ProcessedEvents
}

// EventOutbox stores domain events for asynchronous publication.
type EventOutbox interface {
	Append(ctx context.Context, events ...sharedkernel.DomainEvent) error
}

// ProcessedEvents remembers which integration events were applied.
type ProcessedEvents interface {
	TryRecord(ctx context.Context, eventID uuid.UUID, eventType string) (bool, error)
}
