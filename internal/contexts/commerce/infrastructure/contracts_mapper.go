package infrastructure

import (
	"fmt"

	"github.com/chiro/erp/internal/contexts/commerce/domain"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// MapOrderEvent converts order domain events to their contracts. Amounts
// travel as decimal strings.
func MapOrderEvent(evt sharedkernel.DomainEvent) (any, error) {
	switch e := evt.(type) {
	case *domain.OrderPlacedEvent:
		lines := make([]contracts.OrderLine, len(e.Lines))
		for i, l := range e.Lines {
			lines[i] = contracts.OrderLine{SKU: l.SKU, Quantity: l.Quantity, UnitPrice: l.UnitPrice.String()}
		}
		return contracts.OrderPlaced{
			EventID:     e.EventID().String(),
			OrderID:     e.AggregateID().String(),
			TenantID:    e.TenantID().String(),
			CustomerID:  e.CustomerID,
			OrderNumber: e.Number,
			Currency:    e.Currency,
			Total:       e.Total.String(),
			Lines:       lines,
			PlacedAt:    e.OccurredAt(),
		}, nil
	case *domain.OrderCancelledEvent:
		return contracts.OrderCancelled{
			EventID:     e.EventID().String(),
			OrderID:     e.AggregateID().String(),
			TenantID:    e.TenantID().String(),
			CustomerID:  e.CustomerID,
			OrderNumber: e.Number,
			Currency:    e.Currency,
			Total:       e.Total.String(),
			WasPlaced:   e.WasPlaced,
			Reason:      e.Reason,
			CancelledAt: e.OccurredAt(),
		}, nil
	default:
		return nil, fmt.Errorf("no contract for event %s", evt.EventType())
	}
}
