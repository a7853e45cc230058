package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// ItemFilter narrows a stock item listing.
type ItemFilter struct {
	WarehouseCode string
	SKU           string
	LowStockOnly  bool
	sharedkernel.Pagination
}

// StockItemRepository persists stock items.
type StockItemRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*StockItem, error)
	ExistsBySKU(ctx context.Context, tenantID uuid.UUID, warehouseCode, sku string) (bool, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ItemFilter) ([]StockItem, int64, error)
	Create(ctx context.Context, item *StockItem) error
	// SaveWithLock writes quantities only if the stored version is the
	// one the item was loaded at; otherwise ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, item *StockItem) error
}

// MovementRepository appends and reads the stock ledger.
type MovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, page sharedkernel.Pagination) ([]StockMovement, int64, error)
}
