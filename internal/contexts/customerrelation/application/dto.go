package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// CreateCustomerRequest registers a customer.
type CreateCustomerRequest struct {
	Code    string  `json:"code" binding:"required,max=50"`
	Name    string  `json:"name" binding:"required,max=200"`
	Email   *string `json:"email" binding:"omitempty,email,max=200"`
	Segment string  `json:"segment" binding:"omitempty,oneof=retail wholesale enterprise"`
}

// UpdateContactRequest replaces the contact details.
type UpdateContactRequest struct {
	Name  string  `json:"name" binding:"required,max=200"`
	Email *string `json:"email" binding:"omitempty,email,max=200"`
	Phone *string `json:"phone" binding:"omitempty,max=50"`
}

// CustomerListFilter is bound from the listing query string.
type CustomerListFilter struct {
	Search  string `form:"search" binding:"max=100"`
	Segment string `form:"segment" binding:"omitempty,oneof=retail wholesale enterprise"`
	Status  string `form:"status" binding:"omitempty,oneof=active suspended"`
	sharedkernel.Pagination
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Email         *string         `json:"email,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Segment       string          `json:"segment"`
	Status        string          `json:"status"`
	OrderCount    int64           `json:"order_count"`
	LifetimeValue decimal.Decimal `json:"lifetime_value"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderActivity is an order event from commerce, reduced to what the CRM
// keeps.
type OrderActivity struct {
	EventID    uuid.UUID
	EventType  string
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	OrderID    uuid.UUID
	Total      decimal.Decimal
}

// ToCustomerResponse converts the domain entity to a response
func ToCustomerResponse(c *domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID,
		TenantID:      c.TenantID,
		Code:          c.Code,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Segment:       string(c.Segment),
		Status:        string(c.Status),
		OrderCount:    c.OrderCount,
		LifetimeValue: c.LifetimeValue,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
