package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// CreateOrderRequest opens a draft, optionally with its first lines.
type CreateOrderRequest struct {
	CustomerID uuid.UUID        `json:"customer_id" binding:"required"`
	Currency   string           `json:"currency" binding:"required,len=3"`
	Lines      []AddLineRequest `json:"lines" binding:"omitempty,max=100,dive"`
}

// AddLineRequest adds a line to a draft. UnitPrice is a decimal string.
type AddLineRequest struct {
	SKU       string `json:"sku" binding:"required,max=64"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	UnitPrice string `json:"unit_price" binding:"required,numeric"`
}

// CancelOrderRequest cancels an order.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// OrderListFilter is bound from the listing query string.
type OrderListFilter struct {
	Status     string `form:"status" binding:"omitempty,oneof=draft placed cancelled"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	sharedkernel.Pagination
}

// OrderLineResponse represents an order line in API responses
type OrderLineResponse struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID           uuid.UUID           `json:"id"`
	TenantID     uuid.UUID           `json:"tenant_id"`
	Number       string              `json:"number"`
	CustomerID   uuid.UUID           `json:"customer_id"`
	Currency     string              `json:"currency"`
	Status       string              `json:"status"`
	Total        decimal.Decimal     `json:"total"`
	Lines        []OrderLineResponse `json:"lines"`
	CancelReason string              `json:"cancel_reason,omitempty"`
	PlacedAt     *time.Time          `json:"placed_at,omitempty"`
	CancelledAt  *time.Time          `json:"cancelled_at,omitempty"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// CustomerSnapshot is a customer event from the CRM, reduced to what the
// projection keeps.
type CustomerSnapshot struct {
	EventID    uuid.UUID
	EventType  string
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Code       string
	Name       string
	Status     string
	ChangedAt  time.Time
}

// ToOrderResponse converts the domain entity to a response
func ToOrderResponse(o *domain.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ID:        l.ID,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Amount:    l.Amount,
		}
	}
	return OrderResponse{
		ID:           o.ID,
		TenantID:     o.TenantID,
		Number:       o.Number,
		CustomerID:   o.CustomerID,
		Currency:     o.Currency,
		Status:       string(o.Status),
		Total:        o.Total,
		Lines:        lines,
		CancelReason: o.CancelReason,
		PlacedAt:     o.PlacedAt,
		CancelledAt:  o.CancelledAt,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}
