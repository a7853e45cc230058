package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// DefaultIdempotencyTTL bounds how long a processed event id is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers which event ids were processed.
type IdempotencyStore interface {
	// MarkProcessed records key and reports whether it was new.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a redelivery is processed again.
	Release(ctx context.Context, key string) error
}

// IdempotentHandler skips messages whose event id was already handled. A
// failed handler releases the id so the redelivered message is retried.
// Store outages do not block consumption: the message is processed and
// the duplicate risk is logged.
type IdempotentHandler struct {
	next    Handler
	store   IdempotencyStore
	ttl     time.Duration
	metrics Metrics
	logger  *zap.Logger
}

// NewIdempotentHandler wraps next.
func NewIdempotentHandler(next Handler, store IdempotencyStore, ttl time.Duration, metrics Metrics, log *zap.Logger) *IdempotentHandler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdempotentHandler{next: next, store: store, ttl: ttl, metrics: metricsOrNop(metrics), logger: log}
}

// Handle implements Handler.
func (h *IdempotentHandler) Handle(ctx context.Context, msg Message) error {
	key := msg.EventID()
	if key == "" {
		return h.next.Handle(ctx, msg)
	}
	log := logger.Enrich(ctx, h.logger)

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	switch {
	case err != nil:
		log.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", key), zap.Error(err))
	case !isNew:
		h.metrics.DuplicateSkipped(msg.Topic, msg.EventType())
		log.Debug("duplicate event skipped",
			zap.String("event_id", key), zap.String("event_type", msg.EventType()))
		return nil
	}

	if err := h.next.Handle(ctx, msg); err != nil {
		if relErr := h.store.Release(ctx, key); relErr != nil {
			log.Warn("failed to release idempotency key", zap.String("event_id", key), zap.Error(relErr))
		}
		return err
	}
	return nil
}

// InMemoryIdempotencyStore keeps keys in process memory. Suitable for tests
// and single-instance deployments.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewInMemoryIdempotencyStore creates an empty store.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Cleanup drops expired keys and returns how many were removed.
func (s *InMemoryIdempotencyStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of remembered keys.
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisIdempotencyStore shares processed ids between instances via SETNX.
type RedisIdempotencyStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisIdempotencyStore namespaces keys by consumer so two services can
// process the same event independently.
func NewRedisIdempotencyStore(client redis.Cmdable, consumer string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, keyPrefix: fmt.Sprintf("erp:idempotency:%s:", consumer)}
}

func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var (
	_ IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
)
