package testkit

import (
	"time"

	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/contracts"
)

// FixedTime is the timestamp fixtures use; millisecond precision survives
// an Avro timestamp-millis round trip unchanged.
var FixedTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

// OrderPlacedFixture returns a two-line EUR order totalling 59.97.
func OrderPlacedFixture(tenantID, customerID uuid.UUID) contracts.OrderPlaced {
	return contracts.OrderPlaced{
		EventID:     uuid.NewString(),
		OrderID:     uuid.NewString(),
		TenantID:    tenantID.String(),
		CustomerID:  customerID.String(),
		OrderNumber: "SO-000001",
		Currency:    "EUR",
		Total:       "59.97",
		Lines: []contracts.OrderLine{
			{SKU: "SKU-001", Quantity: 2, UnitPrice: "19.99"},
			{SKU: "SKU-002", Quantity: 1, UnitPrice: "19.99"},
		},
		PlacedAt: FixedTime,
	}
}

// OrderCancelledFixture cancels the order described by placed.
func OrderCancelledFixture(placed contracts.OrderPlaced) contracts.OrderCancelled {
	return contracts.OrderCancelled{
		EventID:     uuid.NewString(),
		OrderID:     placed.OrderID,
		TenantID:    placed.TenantID,
		CustomerID:  placed.CustomerID,
		OrderNumber: placed.OrderNumber,
		Currency:    placed.Currency,
		Total:       placed.Total,
		WasPlaced:   true,
		Reason:      "customer request",
		CancelledAt: FixedTime.Add(time.Hour),
	}
}

// CustomerRegisteredFixture returns an active retail customer.
func CustomerRegisteredFixture(tenantID uuid.UUID) contracts.CustomerRegistered {
	email := "jane@example.com"
	return contracts.CustomerRegistered{
		EventID:      uuid.NewString(),
		CustomerID:   uuid.NewString(),
		TenantID:     tenantID.String(),
		Code:         "CUST-001",
		Name:         "Jane Doe",
		Email:        &email,
		Segment:      "retail",
		Status:       "active",
		RegisteredAt: FixedTime,
	}
}

// CustomerStatusChangedFixture moves the registered customer to newStatus.
func CustomerStatusChangedFixture(reg contracts.CustomerRegistered, newStatus string) contracts.CustomerStatusChanged {
	return contracts.CustomerStatusChanged{
		EventID:    uuid.NewString(),
		CustomerID: reg.CustomerID,
		TenantID:   reg.TenantID,
		Name:       reg.Name,
		OldStatus:  reg.Status,
		NewStatus:  newStatus,
		ChangedAt:  FixedTime.Add(time.Hour),
	}
}
