package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a ledger row.
type MovementType string

const (
	MovementReceipt    MovementType = "RECEIPT"
	MovementIssue      MovementType = "ISSUE"
	MovementReserve    MovementType = "RESERVE"
	MovementRelease    MovementType = "RELEASE"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceipt, MovementIssue, MovementReserve, MovementRelease, MovementAdjustment:
		return true
	}
	return false
}

// StockMovement is an immutable ledger row written next to every change of
// a stock item. Quantity is signed only for adjustments.
type StockMovement struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_stock_movement_item,priority:1"`
	ItemID        uuid.UUID    `gorm:"type:uuid;not null;index:idx_stock_movement_item,priority:2"`
	Type          MovementType `gorm:"type:varchar(20);not null"`
	Quantity      int64        `gorm:"not null"`
	OnHandAfter   int64        `gorm:"not null"`
	ReservedAfter int64        `gorm:"not null"`
	Reference     string       `gorm:"type:varchar(100)"`
	ItemVersion   int          `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null;index:idx_stock_movement_item,priority:3"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

func newStockMovement(item *StockItem, typ MovementType, quantity int64, reference string) *StockMovement {
	return &StockMovement{
		ID:            uuid.New(),
		TenantID:      item.TenantID,
		ItemID:        item.ID,
		Type:          typ,
		Quantity:      quantity,
		OnHandAfter:   item.OnHand,
		ReservedAfter: item.Reserved,
		Reference:     reference,
		ItemVersion:   item.Version,
		CreatedAt:     item.UpdatedAt,
	}
}
