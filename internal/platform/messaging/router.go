package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// Router dispatches messages to handlers registered per event type.
// Messages with an unregistered type are acknowledged and skipped, so a
// producer may add event types without breaking older consumers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{handlers: make(map[string]Handler), logger: log}
}

// Register binds a handler to an event type, replacing any earlier one.
func (r *Router) Register(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = h
}

// EventTypes lists the registered event types.
func (r *Router) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	r.mu.RLock()
	h, ok := r.handlers[msg.EventType()]
	r.mu.RUnlock()
	if !ok {
		logger.Enrich(ctx, r.logger).Debug("no handler for event type, skipping",
			zap.String("topic", msg.Topic),
			zap.String("event_type", msg.EventType()),
		)
		return nil
	}
	return h.Handle(ctx, msg)
}
