package infrastructure

import (
	"fmt"

	"github.com/chiro/erp/internal/contexts/customerrelation/domain"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// MapCustomerEvent converts customer domain events to their contracts.
// It is the messaging.ContractMapper of the CRM outbox.
func MapCustomerEvent(evt sharedkernel.DomainEvent) (any, error) {
	switch e := evt.(type) {
	case *domain.CustomerRegisteredEvent:
		return contracts.CustomerRegistered{
			EventID:      e.EventID().String(),
			CustomerID:   e.AggregateID().String(),
			TenantID:     e.TenantID().String(),
			Code:         e.Code,
			Name:         e.Name,
			Email:        e.Email,
			Segment:      string(e.Segment),
			Status:       string(e.Status),
			RegisteredAt: e.OccurredAt(),
		}, nil
	case *domain.CustomerStatusChangedEvent:
		return contracts.CustomerStatusChanged{
			EventID:    e.EventID().String(),
			CustomerID: e.AggregateID().String(),
			TenantID:   e.TenantID().String(),
			Name:       e.Name,
			OldStatus:  string(e.OldStatus),
			NewStatus:  string(e.NewStatus),
			ChangedAt:  e.OccurredAt(),
		}, nil
	default:
		return nil, fmt.Errorf("no contract for event %s", evt.EventType())
	}
}
