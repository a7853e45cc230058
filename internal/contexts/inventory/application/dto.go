package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/contexts/inventory/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// CreateItemRequest registers a SKU in a warehouse.
type CreateItemRequest struct {
	SKU           string `json:"sku" binding:"required,max=64"`
	WarehouseCode string `json:"warehouse_code" binding:"required,max=32"`
	Name          string `json:"name" binding:"required,max=200"`
	ReorderLevel  int64  `json:"reorder_level" binding:"gte=0"`
}

// MovementRequest is the body of receive, issue, reserve and release.
type MovementRequest struct {
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"max=100"`
}

// AdjustRequest carries a physical count. Zero is a valid count.
type AdjustRequest struct {
	Quantity  *int64 `json:"quantity" binding:"required,gte=0"`
	Reference string `json:"reference" binding:"max=100"`
}

// ItemListFilter is bound from the listing query string.
type ItemListFilter struct {
	Warehouse string `form:"warehouse" binding:"max=32"`
	SKU       string `form:"sku" binding:"max=64"`
	LowStock  bool   `form:"low_stock"`
	sharedkernel.Pagination
}

// ItemResponse represents a stock item in API responses
type ItemResponse struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	SKU           string    `json:"sku"`
	WarehouseCode string    `json:"warehouse_code"`
	Name          string    `json:"name"`
	OnHand        int64     `json:"on_hand"`
	Reserved      int64     `json:"reserved"`
	Available     int64     `json:"available"`
	ReorderLevel  int64     `json:"reorder_level"`
	LowStock      bool      `json:"low_stock"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MovementResponse represents one ledger row.
type MovementResponse struct {
	ID            uuid.UUID `json:"id"`
	ItemID        uuid.UUID `json:"item_id"`
	Type          string    `json:"type"`
	Quantity      int64     `json:"quantity"`
	OnHandAfter   int64     `json:"on_hand_after"`
	ReservedAfter int64     `json:"reserved_after"`
	Reference     string    `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MovementResult is returned by every stock operation.
type MovementResult struct {
	Item     ItemResponse     `json:"item"`
	Movement MovementResponse `json:"movement"`
}

// ToItemResponse converts the domain entity to a response
func ToItemResponse(item *domain.StockItem) ItemResponse {
	return ItemResponse{
		ID:            item.ID,
		TenantID:      item.TenantID,
		SKU:           item.SKU,
		WarehouseCode: item.WarehouseCode,
		Name:          item.Name,
		OnHand:        item.OnHand,
		Reserved:      item.Reserved,
		Available:     item.Available(),
		ReorderLevel:  item.ReorderLevel,
		LowStock:      item.IsLowStock(),
		Version:       item.Version,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// ToMovementResponse converts a ledger row to a response
func ToMovementResponse(m *domain.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		OnHandAfter:   m.OnHandAfter,
		ReservedAfter: m.ReservedAfter,
		Reference:     m.Reference,
		CreatedAt:     m.CreatedAt,
	}
}
