package infrastructure

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/customerrelation/application"
	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// ConsumerName identifies the CRM in processed_events.
const ConsumerName = "customer-relation-service"

// GormTransactionScope implements application.TransactionScope. Outbox
// rows and processed-event records share the business transaction.
type GormTransactionScope struct {
	db        *gorm.DB
	outbox    *messaging.EventOutbox
	processed *messaging.ProcessedEventStore
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, outbox *messaging.EventOutbox) *GormTransactionScope {
	return &GormTransactionScope{
		db:        db,
		outbox:    outbox,
		processed: messaging.NewProcessedEventStore(ConsumerName),
	}
}

// Execute runs fn inside a transaction; an error from fn rolls it back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos application.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, scope: s})
	})
}

type gormTransactionalRepositories struct {
	tx    *gorm.DB
	scope *GormTransactionScope
}

func (r *gormTransactionalRepositories) Customers() domain.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Outbox() application.EventOutbox {
	return txOutbox{tx: r.tx, outbox: r.scope.outbox}
}

func (r *gormTransactionalRepositories) Processed() application.ProcessedEvents {
	return txProcessed{tx: r.tx, store: r.scope.processed}
}

type txOutbox struct {
	tx     *gorm.DB
	outbox *messaging.EventOutbox
}

func (o txOutbox) Append(ctx context.Context, events ...sharedkernel.DomainEvent) error {
	return o.outbox.Append(ctx, o.tx, events...)
}

type txProcessed struct {
	tx    *gorm.DB
	store *messaging.ProcessedEventStore
}

func (p txProcessed) TryRecord(ctx context.Context, eventID uuid.UUID, eventType string) (bool, error) {
	return p.store.TryRecord(ctx, p.tx, eventID, eventType)
}

var _ application.TransactionScope = (*GormTransactionScope)(nil)
