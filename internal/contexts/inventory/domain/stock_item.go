// Package domain holds the stock item aggregate and its movement ledger.
package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

const AggregateTypeStockItem = "StockItem"

// StockItem is the stock of one SKU in one warehouse.
type StockItem struct {
	sharedkernel.TenantAggregateRoot
	SKU           string `gorm:"type:varchar(64);not null"`
	WarehouseCode string `gorm:"type:varchar(32);not null"`
	Name          string `gorm:"type:varchar(200);not null"`
	OnHand        int64  `gorm:"not null;default:0"`
	Reserved      int64  `gorm:"not null;default:0"`
	ReorderLevel  int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockItem) TableName() string {
	return "stock_items"
}

// NewStockItem creates an empty stock item. SKU and warehouse code are
// normalised to upper case.
func NewStockItem(tenantID uuid.UUID, sku, warehouseCode, name string, reorderLevel int64) (*StockItem, error) {
	sku = NormalizeCode(sku)
	warehouseCode = NormalizeCode(warehouseCode)
	name = strings.TrimSpace(name)

	if tenantID == uuid.Nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Tenant ID cannot be empty")
	}
	if sku == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "SKU cannot be empty")
	}
	if len(sku) > 64 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "SKU cannot exceed 64 characters")
	}
	if warehouseCode == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Warehouse code cannot be empty")
	}
	if name == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Name cannot be empty")
	}
	if reorderLevel < 0 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Reorder level cannot be negative")
	}

	return &StockItem{
		TenantAggregateRoot: sharedkernel.NewTenantAggregateRoot(tenantID),
		SKU:                 sku,
		WarehouseCode:       warehouseCode,
		Name:                name,
		ReorderLevel:        reorderLevel,
	}, nil
}

// NormalizeCode trims and upper-cases a SKU or warehouse code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Available is the quantity that can still be issued or reserved.
func (s *StockItem) Available() int64 {
	return s.OnHand - s.Reserved
}

// IsLowStock reports whether available stock is at or below the reorder level.
func (s *StockItem) IsLowStock() bool {
	return s.Available() <= s.ReorderLevel
}

// Receive adds goods to on-hand stock.
func (s *StockItem) Receive(quantity int64, reference string) (*StockMovement, error) {
	if err := requirePositive(quantity); err != nil {
		return nil, err
	}
	if quantity > math.MaxInt64-s.OnHand {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Receiving %d would exceed the maximum on-hand quantity", quantity))
	}
	s.OnHand += quantity
	return s.record(MovementReceipt, quantity, reference), nil
}

// Issue removes goods that were not reserved.
func (s *StockItem) Issue(quantity int64, reference string) (*StockMovement, error) {
	if err := requirePositive(quantity); err != nil {
		return nil, err
	}
	if s.Available() < quantity {
		return nil, insufficient(s.Available(), quantity)
	}
	s.OnHand -= quantity
	return s.record(MovementIssue, quantity, reference), nil
}

// Reserve earmarks available goods without removing them.
func (s *StockItem) Reserve(quantity int64, reference string) (*StockMovement, error) {
	if err := requirePositive(quantity); err != nil {
		return nil, err
	}
	if s.Available() < quantity {
		return nil, insufficient(s.Available(), quantity)
	}
	s.Reserved += quantity
	return s.record(MovementReserve, quantity, reference), nil
}

// Release returns reserved goods to available stock.
func (s *StockItem) Release(quantity int64, reference string) (*StockMovement, error) {
	if err := requirePositive(quantity); err != nil {
		return nil, err
	}
	if quantity > s.Reserved {
		return nil, sharedkernel.NewDomainError("INVALID_STATE",
			"Cannot release more than the reserved quantity")
	}
	s.Reserved -= quantity
	return s.record(MovementRelease, quantity, reference), nil
}

// Adjust sets on-hand stock to a counted quantity. The movement carries
// the signed difference.
func (s *StockItem) Adjust(counted int64, reference string) (*StockMovement, error) {
	if counted < 0 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Counted quantity cannot be negative")
	}
	if counted < s.Reserved {
		return nil, sharedkernel.NewDomainError("INVALID_STATE",
			"Counted quantity cannot be below the reserved quantity")
	}
	delta := counted - s.OnHand
	s.OnHand = counted
	return s.record(MovementAdjustment, delta, reference), nil
}

func (s *StockItem) record(typ MovementType, quantity int64, reference string) *StockMovement {
	s.IncrementVersion()
	return newStockMovement(s, typ, quantity, reference)
}

func requirePositive(quantity int64) error {
	if quantity <= 0 {
		return sharedkernel.NewDomainError("INVALID_INPUT", "Quantity must be greater than zero")
	}
	return nil
}

func insufficient(available, requested int64) error {
	return sharedkernel.NewDomainError("INSUFFICIENT_STOCK",
		fmt.Sprintf("Insufficient stock: %d available, %d requested", available, requested))
}
