package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryBus is a Publisher that delivers synchronously to handlers
// subscribed in the same process. Used when Kafka is disabled and in tests.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	offsets     map[string]int64
	logger      *zap.Logger
	closed      bool
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *zap.Logger) *InMemoryBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryBus{
		subscribers: make(map[string][]Handler),
		offsets:     make(map[string]int64),
		logger:      log.Named("memory-bus"),
	}
}

// Subscribe registers h for topic.
func (b *InMemoryBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], h)
}

// Publish delivers each message to every subscriber of its topic. Handler
// panics are recovered and reported as errors.
func (b *InMemoryBus) Publish(ctx context.Context, msgs ...Message) error {
	var errs []error
	for _, m := range msgs {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return errors.New("memory bus closed")
		}
		m.Offset = b.offsets[m.Topic]
		b.offsets[m.Topic]++
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now().UTC()
		}
		handlers := append([]Handler(nil), b.subscribers[m.Topic]...)
		b.mu.Unlock()

		for _, h := range handlers {
			if err := b.deliver(ctx, h, m); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) deliver(ctx context.Context, h Handler, m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("topic", m.Topic),
				zap.String("event_type", m.EventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(MessageContext(ctx, m), m.Clone())
}

// Close rejects further publishes.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ Publisher = (*InMemoryBus)(nil)
