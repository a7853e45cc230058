package domain

import "github.com/chiro/erp/internal/platform/sharedkernel"

const (
	EventTypeCustomerRegistered    = "CustomerRegistered"
	EventTypeCustomerStatusChanged = "CustomerStatusChanged"
)

// CustomerRegisteredEvent is raised when a customer is created.
type CustomerRegisteredEvent struct {
	sharedkernel.BaseDomainEvent
	Code    string
	Name    string
	Email   *string
	Segment Segment
	Status  Status
}

// NewCustomerRegisteredEvent creates the event from the new customer.
func NewCustomerRegisteredEvent(c *Customer) *CustomerRegisteredEvent {
	return &CustomerRegisteredEvent{
		BaseDomainEvent: sharedkernel.NewBaseDomainEvent(EventTypeCustomerRegistered, AggregateTypeCustomer, c.ID, c.TenantID),
		Code:            c.Code,
		Name:            c.Name,
		Email:           c.Email,
		Segment:         c.Segment,
		Status:          c.Status,
	}
}

// CustomerStatusChangedEvent is raised on suspension and reactivation.
type CustomerStatusChangedEvent struct {
	sharedkernel.BaseDomainEvent
	Name      string
	OldStatus Status
	NewStatus Status
}

// NewCustomerStatusChangedEvent creates a status change event.
func NewCustomerStatusChangedEvent(c *Customer, from, to Status) *CustomerStatusChangedEvent {
	return &CustomerStatusChangedEvent{
		BaseDomainEvent: sharedkernel.NewBaseDomainEvent(EventTypeCustomerStatusChanged, AggregateTypeCustomer, c.ID, c.TenantID),
		Name:            c.Name,
		OldStatus:       from,
		NewStatus:       to,
	}
}
