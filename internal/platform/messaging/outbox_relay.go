package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxRelayConfig holds relay settings.
type OutboxRelayConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	ClaimTimeout     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxRelayConfig returns default configuration
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		BatchSize:        100,
		PollInterval:     time.Second,
		MaxRetries:       DefaultOutboxMaxRetries,
		ClaimTimeout:     5 * time.Minute,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxRelay moves committed outbox entries to the Publisher. Delivery is
// at-least-once: an entry is marked SENT only after the publish succeeded.
type OutboxRelay struct {
	repo      OutboxRepository
	publisher Publisher
	config    OutboxRelayConfig
	metrics   Metrics
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(repo OutboxRepository, publisher Publisher, cfg OutboxRelayConfig, metrics Metrics, log *zap.Logger) *OutboxRelay {
	def := DefaultOutboxRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = def.ClaimTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.CleanupRetention <= 0 {
		cfg.CleanupRetention = def.CleanupRetention
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		metrics:   metricsOrNop(metrics),
		logger:    log.Named("outbox-relay"),
	}
}

// Start launches the relay and cleanup loops.
func (r *OutboxRelay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.processLoop(ctx)

	if r.config.CleanupEnabled {
		r.wg.Add(1)
		go r.cleanupLoop(ctx)
	}

	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
}

// Stop cancels the loops and waits for them, bounded by ctx.
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) processLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays one batch of pending and due entries and returns how
// many were published.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) int {
	sent := 0

	pending, err := r.repo.FindPending(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to find pending entries", zap.Error(err))
		return 0
	}
	sent += r.processEntries(ctx, pending)

	retryable, err := r.repo.FindRetryable(ctx, time.Now().UTC(), r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to find retryable entries", zap.Error(err))
		return sent
	}
	sent += r.processEntries(ctx, retryable)

	if counts, err := r.repo.CountByStatus(ctx); err == nil {
		r.metrics.OutboxBacklog(counts[OutboxStatusPending] + counts[OutboxStatusFailed])
	}
	return sent
}

func (r *OutboxRelay) processEntries(ctx context.Context, entries []*OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := r.repo.MarkProcessing(ctx, ids)
	if err != nil {
		r.logger.Error("failed to claim outbox entries", zap.Error(err))
		return 0
	}

	sent := 0
	failed := make(map[string]*OutboxEntry)
	for _, e := range claimed {
		if head, blocked := failed[e.PartitionKey]; blocked {
			r.requeue(ctx, e, head)
			continue
		}
		if r.processEntry(ctx, e) {
			sent++
		} else {
			failed[e.PartitionKey] = e
		}
	}
	return sent
}

// requeue hands a claimed entry back because head, an earlier entry of the
// same key, failed in this batch. A retried entry is rescheduled with head
// so the pair stays in creation order.
func (r *OutboxRelay) requeue(ctx context.Context, e, head *OutboxEntry) {
	if e.RetryCount == 0 {
		e.Status = OutboxStatusPending
	} else {
		e.Status = OutboxStatusFailed
		e.NextRetryAt = head.NextRetryAt
		if e.NextRetryAt == nil {
			now := time.Now().UTC()
			e.NextRetryAt = &now
		}
	}
	if err := r.repo.Update(ctx, e); err != nil {
		r.logger.Error("failed to requeue entry", zap.String("event_id", e.EventID.String()), zap.Error(err))
	}
}

func (r *OutboxRelay) processEntry(ctx context.Context, e *OutboxEntry) bool {
	if r.config.MaxRetries > 0 {
		e.MaxRetries = r.config.MaxRetries
	}
	if err := r.publisher.Publish(ctx, e.Message()); err != nil {
		e.MarkFailed(err.Error())
		fields := []zap.Field{
			zap.String("event_id", e.EventID.String()),
			zap.String("event_type", e.EventType),
			zap.String("topic", e.Topic),
			zap.Int("retry_count", e.RetryCount),
			zap.Error(err),
		}
		if e.IsDead() {
			r.logger.Error("outbox entry is dead after max retries", fields...)
		} else {
			r.logger.Warn("failed to publish outbox entry", fields...)
		}
		if uerr := r.repo.Update(ctx, e); uerr != nil {
			r.logger.Error("failed to update entry", zap.Error(uerr))
		}
		return false
	}

	e.MarkSent()
	if err := r.repo.Update(ctx, e); err != nil {
		// Published but not marked: the entry is retried and consumers
		// dedupe by event id.
		r.logger.Error("failed to mark entry as sent", zap.String("event_id", e.EventID.String()), zap.Error(err))
		return true
	}
	r.logger.Debug("outbox entry published",
		zap.String("event_id", e.EventID.String()),
		zap.String("event_type", e.EventType),
	)
	return true
}

func (r *OutboxRelay) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup(ctx)
		}
	}
}

// Cleanup releases stale claims and deletes old delivered entries.
func (r *OutboxRelay) Cleanup(ctx context.Context) {
	now := time.Now().UTC()
	if n, err := r.repo.ReleaseStale(ctx, now.Add(-r.config.ClaimTimeout)); err != nil {
		r.logger.Error("failed to release stale claims", zap.Error(err))
	} else if n > 0 {
		r.logger.Warn("released stale outbox claims", zap.Int64("count", n))
	}

	cutoff := now.Add(-r.config.CleanupRetention)
	deleted, err := r.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to cleanup old entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("cleaned up old outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
