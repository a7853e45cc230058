// Package domain holds the order aggregate of the commerce context and the
// local projection of CRM customers it relies on.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

const AggregateTypeOrder = "Order"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusPlaced, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusPlaced || target == OrderStatusCancelled
	case OrderStatusPlaced:
		return target == OrderStatusCancelled
	}
	return false
}

// OrderLine is one priced SKU of an order.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"type:varchar(64);not null"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLine) TableName() string {
	return "order_lines"
}

// Order is the commerce aggregate. Total is the sum of the line amounts.
type Order struct {
	sharedkernel.TenantAggregateRoot
	Number       string          `gorm:"type:varchar(30);not null"`
	CustomerID   uuid.UUID       `gorm:"type:uuid;not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	Lines        []OrderLine     `gorm:"foreignKey:OrderID"`
	Status       OrderStatus     `gorm:"type:varchar(20);not null"`
	Total        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CancelReason string          `gorm:"type:varchar(500)"`
	PlacedAt     *time.Time
	CancelledAt  *time.Time
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder opens a draft order. The currency is an ISO 4217 code.
func NewOrder(tenantID uuid.UUID, number string, customerID uuid.UUID, currency string) (*Order, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if tenantID == uuid.Nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Tenant ID cannot be empty")
	}
	if number == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Order number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Customer ID cannot be empty")
	}
	if len(currency) != 3 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid currency %q", currency))
	}

	return &Order{
		TenantAggregateRoot: sharedkernel.NewTenantAggregateRoot(tenantID),
		Number:              number,
		CustomerID:          customerID,
		Currency:            currency,
		Lines:               make([]OrderLine, 0),
		Status:              OrderStatusDraft,
		Total:               decimal.Zero,
	}, nil
}

// AddLine appends a line to a draft. A SKU appears at most once per order.
func (o *Order) AddLine(sku string, quantity int64, unitPrice decimal.Decimal) (*OrderLine, error) {
	if o.Status != OrderStatusDraft {
		return nil, sharedkernel.NewDomainError("INVALID_STATE", "Cannot add lines to a non-draft order")
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "SKU cannot be empty")
	}
	if quantity <= 0 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Unit price cannot be negative")
	}
	for _, l := range o.Lines {
		if l.SKU == sku {
			return nil, sharedkernel.NewDomainError("ALREADY_EXISTS", "Order already has a line for "+sku)
		}
	}

	line := OrderLine{
		ID:        uuid.New(),
		OrderID:   o.ID,
		SKU:       sku,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Amount:    unitPrice.Mul(decimal.NewFromInt(quantity)),
		CreatedAt: time.Now().UTC(),
	}
	o.Lines = append(o.Lines, line)
	o.recalculateTotal()
	o.IncrementVersion()
	return &line, nil
}

// Place submits a draft for a known, active customer and records
// OrderPlaced.
func (o *Order) Place(customer *KnownCustomer) error {
	if !o.Status.CanTransitionTo(OrderStatusPlaced) {
		return sharedkernel.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot place order in %s status", o.Status))
	}
	if len(o.Lines) == 0 {
		return sharedkernel.NewDomainError("INVALID_STATE", "Cannot place order without lines")
	}
	if customer == nil || customer.CustomerID != o.CustomerID {
		return sharedkernel.NewDomainError("INVALID_STATE", "Customer "+o.CustomerID.String()+" is unknown")
	}
	if !customer.IsActive() {
		return sharedkernel.NewDomainError("INVALID_STATE", "Customer "+customer.Name+" is suspended")
	}

	now := time.Now().UTC()
	o.Status = OrderStatusPlaced
	o.PlacedAt = &now
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderPlacedEvent(o))
	return nil
}

// Cancel cancels a draft or placed order and records OrderCancelled.
func (o *Order) Cancel(reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return sharedkernel.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return sharedkernel.NewDomainError("INVALID_INPUT", "Cancel reason is required")
	}

	wasPlaced := o.Status == OrderStatusPlaced
	now := time.Now().UTC()
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderCancelledEvent(o, wasPlaced))
	return nil
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Amount)
	}
	o.Total = total
}

// TotalQuantity returns the number of units over all lines.
func (o *Order) TotalQuantity() int64 {
	var n int64
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
