package infrastructure

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/customerrelation/application"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
)

// OrderEventsHandler folds commerce order events into customer statistics.
type OrderEventsHandler struct {
	service *application.Service
	codec   *messaging.EventCodec
	logger  *zap.Logger
}

// NewOrderEventsHandler creates the handler.
func NewOrderEventsHandler(service *application.Service, codec *messaging.EventCodec, log *zap.Logger) *OrderEventsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderEventsHandler{service: service, codec: codec, logger: log}
}

// Register binds the handled event types on r.
func (h *OrderEventsHandler) Register(r *messaging.Router) {
	r.Register(contracts.EventOrderPlaced, messaging.HandlerFunc(h.HandleOrderPlaced))
	r.Register(contracts.EventOrderCancelled, messaging.HandlerFunc(h.HandleOrderCancelled))
}

// HandleOrderPlaced applies an OrderPlaced event.
func (h *OrderEventsHandler) HandleOrderPlaced(ctx context.Context, msg messaging.Message) error {
	var evt contracts.OrderPlaced
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	activity, err := toActivity(msg, evt.TenantID, evt.CustomerID, evt.OrderID, evt.Total)
	if err != nil {
		return err
	}
	_, err = h.service.ApplyOrderPlaced(ctx, activity)
	return err
}

// HandleOrderCancelled applies an OrderCancelled event. Cancelled drafts
// were never counted and are skipped.
func (h *OrderEventsHandler) HandleOrderCancelled(ctx context.Context, msg messaging.Message) error {
	var evt contracts.OrderCancelled
	if err := h.codec.Decode(ctx, msg, &evt); err != nil {
		return err
	}
	if !evt.WasPlaced {
		h.logger.Debug("cancelled draft ignored", zap.String("order_id", evt.OrderID))
		return nil
	}
	activity, err := toActivity(msg, evt.TenantID, evt.CustomerID, evt.OrderID, evt.Total)
	if err != nil {
		return err
	}
	_, err = h.service.ApplyOrderCancelled(ctx, activity)
	return err
}

// toActivity validates the identifiers of an order event. Malformed
// events can never succeed and are marked permanent.
func toActivity(msg messaging.Message, tenantID, customerID, orderID, total string) (application.OrderActivity, error) {
	eventID, err := messaging.ParseEventID(msg)
	if err != nil {
		return application.OrderActivity{}, err
	}
	a := application.OrderActivity{EventID: eventID, EventType: msg.EventType()}
	if a.TenantID, err = uuid.Parse(tenantID); err != nil {
		return a, messaging.Permanent(fmt.Errorf("invalid tenant_id %q", tenantID))
	}
	if a.CustomerID, err = uuid.Parse(customerID); err != nil {
		return a, messaging.Permanent(fmt.Errorf("invalid customer_id %q", customerID))
	}
	if a.OrderID, err = uuid.Parse(orderID); err != nil {
		return a, messaging.Permanent(fmt.Errorf("invalid order_id %q", orderID))
	}
	if a.Total, err = decimal.NewFromString(total); err != nil {
		return a, messaging.Permanent(fmt.Errorf("invalid total %q", total))
	}
	return a, nil
}
