package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/contexts/biingestion/application"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
)

// EventsHandler decodes order and customer events and hands them to the
// ingestion service.
type EventsHandler struct {
	service *application.Service
	codec   *messaging.EventCodec
}

// NewEventsHandler creates the handler.
func NewEventsHandler(service *application.Service, codec *messaging.EventCodec) *EventsHandler {
	return &EventsHandler{service: service, codec: codec}
}

// Register binds every ingested event type on r.
func (h *EventsHandler) Register(r *messaging.Router) {
	r.Register(contracts.EventOrderPlaced, messaging.HandlerFunc(h.HandleOrderPlaced))
	r.Register(contracts.EventOrderCancelled, messaging.HandlerFunc(h.HandleOrderCancelled))
	r.Register(contracts.EventCustomerRegistered, messaging.HandlerFunc(h.HandleCustomerRegistered))
	r.Register(contracts.EventCustomerStatusChanged, messaging.HandlerFunc(h.HandleCustomerStatusChanged))
}

func (h *EventsHandler) HandleOrderPlaced(ctx context.Context, msg messaging.Message) error {
	var evt contracts.OrderPlaced
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	fact, err := orderFact(msg, evt.TenantID, evt.PlacedAt, evt.Currency, evt.Total)
	if err != nil {
		return err
	}
	fact.WasPlaced = true
	_, err = h.service.IngestOrderPlaced(ctx, fact)
	return err
}

func (h *EventsHandler) HandleOrderCancelled(ctx context.Context, msg messaging.Message) error {
	var evt contracts.OrderCancelled
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	fact, err := orderFact(msg, evt.TenantID, evt.CancelledAt, evt.Currency, evt.Total)
	if err != nil {
		return err
	}
	fact.WasPlaced = evt.WasPlaced
	_, err = h.service.IngestOrderCancelled(ctx, fact)
	return err
}

func (h *EventsHandler) HandleCustomerRegistered(ctx context.Context, msg messaging.Message) error {
	var evt contracts.CustomerRegistered
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	meta, err := eventMeta(msg, evt.TenantID, evt.RegisteredAt)
	if err != nil {
		return err
	}
	_, err = h.service.IngestCustomerRegistered(ctx, application.CustomerFact{EventMeta: meta, NewStatus: evt.Status})
	return err
}

func (h *EventsHandler) HandleCustomerStatusChanged(ctx context.Context, msg messaging.Message) error {
	var evt contracts.CustomerStatusChanged
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	meta, err := eventMeta(msg, evt.TenantID, evt.ChangedAt)
	if err != nil {
		return err
	}
	_, err = h.service.IngestCustomerStatusChanged(ctx, application.CustomerFact{
		EventMeta: meta,
		OldStatus: evt.OldStatus,
		NewStatus: evt.NewStatus,
	})
	return err
}

func eventMeta(msg messaging.Message, tenantID string, at time.Time) (application.EventMeta, error) {
	eventID, err := messaging.ParseEventID(msg)
	if err != nil {
		return application.EventMeta{}, err
	}
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return application.EventMeta{}, messaging.Permanent(fmt.Errorf("invalid tenant_id %q", tenantID))
	}
	return application.EventMeta{
		EventID:    eventID,
		EventType:  msg.EventType(),
		Topic:      msg.Topic,
		TenantID:   tenant,
		OccurredAt: at,
	}, nil
}

func orderFact(msg messaging.Message, tenantID string, at time.Time, currency, total string) (application.OrderFact, error) {
	meta, err := eventMeta(msg, tenantID, at)
	if err != nil {
		return application.OrderFact{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return application.OrderFact{}, messaging.Permanent(fmt.Errorf("invalid total %q", total))
	}
	return application.OrderFact{EventMeta: meta, Currency: currency, Total: amount}, nil
}
