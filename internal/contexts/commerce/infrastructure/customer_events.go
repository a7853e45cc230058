package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/commerce/application"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
)

// CustomerEventsHandler keeps the known-customer projection current.
type CustomerEventsHandler struct {
	service *application.Service
	codec   *messaging.EventCodec
	logger  *zap.Logger
}

// NewCustomerEventsHandler creates the handler.
func NewCustomerEventsHandler(service *application.Service, codec *messaging.EventCodec, log *zap.Logger) *CustomerEventsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CustomerEventsHandler{service: service, codec: codec, logger: log}
}

// Register binds the handled event types on r.
func (h *CustomerEventsHandler) Register(r *messaging.Router) {
	r.Register(contracts.EventCustomerRegistered, messaging.HandlerFunc(h.HandleCustomerRegistered))
	r.Register(contracts.EventCustomerStatusChanged, messaging.HandlerFunc(h.HandleCustomerStatusChanged))
}

// HandleCustomerRegistered adds the customer to the projection.
func (h *CustomerEventsHandler) HandleCustomerRegistered(ctx context.Context, msg messaging.Message) error {
	var evt contracts.CustomerRegistered
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	snap, err := toSnapshot(msg, evt.TenantID, evt.CustomerID, evt.RegisteredAt)
	if err != nil {
		return err
	}
	snap.Code, snap.Name, snap.Status = evt.Code, evt.Name, evt.Status
	_, err = h.service.ApplyCustomerSnapshot(ctx, snap)
	return err
}

// HandleCustomerStatusChanged updates the status of the customer.
func (h *CustomerEventsHandler) HandleCustomerStatusChanged(ctx context.Context, msg messaging.Message) error {
	var evt contracts.CustomerStatusChanged
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	snap, err := toSnapshot(msg, evt.TenantID, evt.CustomerID, evt.ChangedAt)
	if err != nil {
		return err
	}
	snap.Name, snap.Status = evt.Name, evt.NewStatus
	_, err = h.service.ApplyCustomerSnapshot(ctx, snap)
	return err
}

func toSnapshot(msg messaging.Message, tenantID, customerID string, at time.Time) (application.CustomerSnapshot, error) {
	eventID, err := messaging.ParseEventID(msg)
	if err != nil {
		return application.CustomerSnapshot{}, err
	}
	s := application.CustomerSnapshot{EventID: eventID, EventType: msg.EventType(), ChangedAt: at}
	if s.TenantID, err = uuid.Parse(tenantID); err != nil {
		return s, messaging.Permanent(fmt.Errorf("invalid tenant_id %q", tenantID))
	}
	if s.CustomerID, err = uuid.Parse(customerID); err != nil {
		return s, messaging.Permanent(fmt.Errorf("invalid customer_id %q", customerID))
	}
	return s, nil
}
