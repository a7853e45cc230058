// Package application implements the inventory use cases.
package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/inventory/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// Service coordinates stock items and their ledger.
type Service struct {
	items     domain.StockItemRepository
	movements domain.MovementRepository
	txScope   TransactionScope
}

// NewService creates a new inventory service
func NewService(items domain.StockItemRepository, movements domain.MovementRepository, txScope TransactionScope) *Service {
	return &Service{items: items, movements: movements, txScope: txScope}
}

// CreateItem registers a SKU in a warehouse with zero stock.
func (s *Service) CreateItem(ctx context.Context, tenantID uuid.UUID, req CreateItemRequest) (*ItemResponse, error) {
	item, err := domain.NewStockItem(tenantID, req.SKU, req.WarehouseCode, req.Name, req.ReorderLevel)
	if err != nil {
		return nil, err
	}

	exists, err := s.items.ExistsBySKU(ctx, tenantID, item.WarehouseCode, item.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, sharedkernel.NewDomainError("ALREADY_EXISTS",
			"SKU "+item.SKU+" already exists in warehouse "+item.WarehouseCode)
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("stock item created",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.String("warehouse_code", item.WarehouseCode))

	resp := ToItemResponse(item)
	return &resp, nil
}

// GetItem returns one stock item.
func (s *Service) GetItem(ctx context.Context, tenantID, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// ListItems returns a page of stock items.
func (s *Service) ListItems(ctx context.Context, tenantID uuid.UUID, filter ItemListFilter) (sharedkernel.Page[ItemResponse], error) {
	page := filter.Pagination.Normalize()
	items, total, err := s.items.FindAllForTenant(ctx, tenantID, domain.ItemFilter{
		WarehouseCode: domain.NormalizeCode(filter.Warehouse),
		SKU:           domain.NormalizeCode(filter.SKU),
		LowStockOnly:  filter.LowStock,
		Pagination:    page,
	})
	if err != nil {
		return sharedkernel.Page[ItemResponse]{}, err
	}

	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i])
	}
	return sharedkernel.NewPage(out, total, page), nil
}

// ListMovements returns a page of the item's ledger, newest first.
func (s *Service) ListMovements(ctx context.Context, tenantID, itemID uuid.UUID, page sharedkernel.Pagination) (sharedkernel.Page[MovementResponse], error) {
	page = page.Normalize()
	if _, err := s.items.FindByIDForTenant(ctx, tenantID, itemID); err != nil {
		return sharedkernel.Page[MovementResponse]{}, err
	}
	rows, total, err := s.movements.FindByItem(ctx, tenantID, itemID, page)
	if err != nil {
		return sharedkernel.Page[MovementResponse]{}, err
	}
	out := make([]MovementResponse, len(rows))
	for i := range rows {
		out[i] = ToMovementResponse(&rows[i])
	}
	return sharedkernel.NewPage(out, total, page), nil
}

// Receive adds goods to on-hand stock.
func (s *Service) Receive(ctx context.Context, tenantID, id uuid.UUID, req MovementRequest) (*MovementResult, error) {
	return s.apply(ctx, tenantID, id, func(item *domain.StockItem) (*domain.StockMovement, error) {
		return item.Receive(req.Quantity, req.Reference)
	})
}

// Issue removes unreserved goods.
func (s *Service) Issue(ctx context.Context, tenantID, id uuid.UUID, req MovementRequest) (*MovementResult, error) {
	return s.apply(ctx, tenantID, id, func(item *domain.StockItem) (*domain.StockMovement, error) {
		return item.Issue(req.Quantity, req.Reference)
	})
}

// Reserve earmarks available goods.
func (s *Service) Reserve(ctx context.Context, tenantID, id uuid.UUID, req MovementRequest) (*MovementResult, error) {
	return s.apply(ctx, tenantID, id, func(item *domain.StockItem) (*domain.StockMovement, error) {
		return item.Reserve(req.Quantity, req.Reference)
	})
}

// Release returns reserved goods to available stock.
func (s *Service) Release(ctx context.Context, tenantID, id uuid.UUID, req MovementRequest) (*MovementResult, error) {
	return s.apply(ctx, tenantID, id, func(item *domain.StockItem) (*domain.StockMovement, error) {
		return item.Release(req.Quantity, req.Reference)
	})
}

// Adjust sets on-hand stock to a physical count.
func (s *Service) Adjust(ctx context.Context, tenantID, id uuid.UUID, req AdjustRequest) (*MovementResult, error) {
	if req.Quantity == nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Counted quantity is required")
	}
	return s.apply(ctx, tenantID, id, func(item *domain.StockItem) (*domain.StockMovement, error) {
		return item.Adjust(*req.Quantity, req.Reference)
	})
}

// apply loads the item, mutates it and writes the item and its ledger row
// in one transaction. A concurrent writer makes SaveWithLock fail with
// ErrConcurrencyConflict and nothing is written.
func (s *Service) apply(ctx context.Context, tenantID, id uuid.UUID, op func(*domain.StockItem) (*domain.StockMovement, error)) (*MovementResult, error) {
	var result MovementResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.Items().FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		movement, err := op(item)
		if err != nil {
			return err
		}
		if err := repos.Items().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if err := repos.Movements().Create(ctx, movement); err != nil {
			return err
		}
		result = MovementResult{Item: ToItemResponse(item), Movement: ToMovementResponse(movement)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("stock movement recorded",
		zap.String("item_id", id.String()),
		zap.String("movement", result.Movement.Type),
		zap.Int64("quantity", result.Movement.Quantity),
		zap.Int64("on_hand", result.Item.OnHand),
		zap.Int64("reserved", result.Item.Reserved))
	return &result, nil
}
