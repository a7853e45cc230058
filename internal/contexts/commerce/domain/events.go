package domain

import (
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

const (
	EventTypeOrderPlaced    = "OrderPlaced"
	EventTypeOrderCancelled = "OrderCancelled"
)

// OrderLineInfo is a line as carried by order events.
type OrderLineInfo struct {
	SKU       string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// OrderPlacedEvent is raised when a draft is placed.
type OrderPlacedEvent struct {
	sharedkernel.BaseDomainEvent
	Number     string
	CustomerID string
	Currency   string
	Total      decimal.Decimal
	Lines      []OrderLineInfo
}

// NewOrderPlacedEvent creates the event from the placed order.
func NewOrderPlacedEvent(o *Order) *OrderPlacedEvent {
	lines := make([]OrderLineInfo, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineInfo{SKU: l.SKU, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return &OrderPlacedEvent{
		BaseDomainEvent: sharedkernel.NewBaseDomainEvent(EventTypeOrderPlaced, AggregateTypeOrder, o.ID, o.TenantID),
		Number:          o.Number,
		CustomerID:      o.CustomerID.String(),
		Currency:        o.Currency,
		Total:           o.Total,
		Lines:           lines,
	}
}

// OrderCancelledEvent is raised on cancellation. WasPlaced tells consumers
// whether an OrderPlaced preceded it.
type OrderCancelledEvent struct {
	sharedkernel.BaseDomainEvent
	Number     string
	CustomerID string
	Currency   string
	Total      decimal.Decimal
	WasPlaced  bool
	Reason     string
}

// NewOrderCancelledEvent creates the event from the cancelled order.
func NewOrderCancelledEvent(o *Order, wasPlaced bool) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: sharedkernel.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, o.ID, o.TenantID),
		Number:          o.Number,
		CustomerID:      o.CustomerID.String(),
		Currency:        o.Currency,
		Total:           o.Total,
		WasPlaced:       wasPlaced,
		Reason:          o.CancelReason,
	}
}
