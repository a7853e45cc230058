// Package domain holds the customer aggregate of the CRM context.
package domain

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

const AggregateTypeCustomer = "Customer"

// Segment groups customers by commercial terms.
type Segment string

const (
	SegmentRetail     Segment = "retail"
	SegmentWholesale  Segment = "wholesale"
	SegmentEnterprise Segment = "enterprise"
)

// IsValid checks if the segment is valid
func (s Segment) IsValid() bool {
	switch s {
	case SegmentRetail, SegmentWholesale, SegmentEnterprise:
		return true
	}
	return false
}

// Status is the lifecycle state of a customer. Only active customers can
// place orders.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Customer is the CRM aggregate. OrderCount and LifetimeValue are fed by
// order events from commerce.
type Customer struct {
	sharedkernel.TenantAggregateRoot
	Code          string          `gorm:"type:varchar(50);not null"`
	Name          string          `gorm:"type:varchar(200);not null"`
	Email         *string         `gorm:"type:varchar(200)"`
	Phone         *string         `gorm:"type:varchar(50)"`
	Segment       Segment         `gorm:"type:varchar(20);not null"`
	Status        Status          `gorm:"type:varchar(20);not null"`
	OrderCount    int64           `gorm:"not null;default:0"`
	LifetimeValue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer registers an active customer and records CustomerRegistered.
func NewCustomer(tenantID uuid.UUID, code, name string, email *string, segment Segment) (*Customer, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if segment == "" {
		segment = SegmentRetail
	}

	if tenantID == uuid.Nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Tenant ID cannot be empty")
	}
	if code == "" {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Customer code cannot be empty")
	}
	if len(code) > 50 {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Customer code cannot exceed 50 characters")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !segment.IsValid() {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown segment %q", segment))
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		TenantAggregateRoot: sharedkernel.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Email:               email,
		Segment:             segment,
		Status:              StatusActive,
		LifetimeValue:       decimal.Zero,
	}
	c.AddDomainEvent(NewCustomerRegisteredEvent(c))
	return c, nil
}

// IsActive reports whether the customer may place orders.
func (c *Customer) IsActive() bool {
	return c.Status == StatusActive
}

// UpdateContact replaces name, email and phone. A nil email or phone clears it.
func (c *Customer) UpdateContact(name string, email, phone *string) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if phone != nil {
		p := strings.TrimSpace(*phone)
		if p == "" {
			phone = nil
		} else {
			phone = &p
		}
	}
	c.Name = name
	c.Email = email
	c.Phone = phone
	c.IncrementVersion()
	return nil
}

// Suspend blocks new orders for the customer.
func (c *Customer) Suspend() error {
	return c.changeStatus(StatusSuspended)
}

// Activate lifts a suspension.
func (c *Customer) Activate() error {
	return c.changeStatus(StatusActive)
}

func (c *Customer) changeStatus(to Status) error {
	if c.Status == to {
		return sharedkernel.NewDomainError("INVALID_STATE", fmt.Sprintf("Customer is already %s", to))
	}
	from := c.Status
	c.Status = to
	c.IncrementVersion()
	c.AddDomainEvent(NewCustomerStatusChangedEvent(c, from, to))
	return nil
}

// RecordOrderPlaced counts a placed order.
func (c *Customer) RecordOrderPlaced(total decimal.Decimal) {
	c.OrderCount++
	c.LifetimeValue = c.LifetimeValue.Add(total)
	c.IncrementVersion()
}

// RecordOrderCancelled reverses RecordOrderPlaced. Neither counter goes
// below zero.
func (c *Customer) RecordOrderCancelled(total decimal.Decimal) {
	if c.OrderCount > 0 {
		c.OrderCount--
	}
	c.LifetimeValue = c.LifetimeValue.Sub(total)
	if c.LifetimeValue.IsNegative() {
		c.LifetimeValue = decimal.Zero
	}
	c.IncrementVersion()
}

func validateName(name string) error {
	if name == "" {
		return sharedkernel.NewDomainError("INVALID_INPUT", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return sharedkernel.NewDomainError("INVALID_INPUT", "Customer name cannot exceed 200 characters")
	}
	return nil
}

func normalizeEmail(email *string) (*string, error) {
	if email == nil {
		return nil, nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil, nil
	}
	if _, err := mail.ParseAddress(e); err != nil {
		return nil, sharedkernel.NewDomainError("INVALID_INPUT", "Invalid email address")
	}
	return &e, nil
}
