package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// OrderFilter narrows an order listing.
type OrderFilter struct {
	Status     OrderStatus
	CustomerID *uuid.UUID
	sharedkernel.Pagination
}

// OrderRepository persists orders with their lines.
type OrderRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]Order, int64, error)
	GenerateNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
	Create(ctx context.Context, order *Order) error
	// SaveWithLock fails with ErrConcurrencyConflict when the stored
	// version is not loadedVersion. New lines are inserted.
	SaveWithLock(ctx context.Context, order *Order, loadedVersion int) error
}

// KnownCustomerRepository stores the customer projection.
type KnownCustomerRepository interface {
	Find(ctx context.Context, tenantID, customerID uuid.UUID) (*KnownCustomer, error)
	// Upsert writes c unless the stored row has a later ChangedAt.
	Upsert(ctx context.Context, c *KnownCustomer) error
}
