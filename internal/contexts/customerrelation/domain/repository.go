package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	Search  string
	Segment Segment
	Status  Status
	sharedkernel.Pagination
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter CustomerFilter) ([]Customer, int64, error)
	Create(ctx context.Context, customer *Customer) error
	// SaveWithLock fails with ErrConcurrencyConflict when the stored
	// version is not the one the customer was loaded at.
	SaveWithLock(ctx context.Context, customer *Customer, loadedVersion int) error
}
