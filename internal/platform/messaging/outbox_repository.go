package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// blockedKeys selects partition keys with an earlier entry in flight or
// waiting for retry. Later entries of those keys must wait their turn.
func (r *GormOutboxRepository) blockedKeys(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&OutboxEntry{}).
		Select("partition_key").
		Where("status IN ?", []OutboxStatus{OutboxStatusProcessing, OutboxStatusFailed})
}

// FindPending returns the oldest pending entries whose key is not blocked.
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error) {
	var entries []*OutboxEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", OutboxStatusPending).
		Where("partition_key NOT IN (?)", r.blockedKeys(ctx)).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// FindRetryable returns failed entries that are due.
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error) {
	var entries []*OutboxEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", OutboxStatusFailed, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkProcessing claims entries with FOR UPDATE SKIP LOCKED so concurrent
// relays never publish the same entry twice.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var entries []*OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}).
			Order("created_at ASC").
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		claimed := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			claimed[i] = e.ID
		}
		now := time.Now().UTC()
		if err := tx.Model(&OutboxEntry{}).
			Where("id IN ?", claimed).
			Updates(map[string]any{"status": OutboxStatusProcessing, "updated_at": now}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			e.Status = OutboxStatusProcessing
			e.UpdatedAt = now
		}
		return nil
	})
	return entries, err
}

func (r *GormOutboxRepository) Update(ctx context.Context, entry *OutboxEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(entry).Error
}

// ReleaseStale returns entries stuck in PROCESSING (a relay died mid-batch)
// to FAILED so they are retried.
func (r *GormOutboxRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&OutboxEntry{}).
		Where("status = ? AND updated_at < ?", OutboxStatusProcessing, olderThan).
		Updates(map[string]any{
			"status":        OutboxStatusFailed,
			"next_retry_at": now,
			"last_error":    "relay claim expired",
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

// DeleteSentBefore removes delivered entries older than before.
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", OutboxStatusSent, before).
		Delete(&OutboxEntry{})
	return res.RowsAffected, res.Error
}

func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error) {
	type statusCount struct {
		Status OutboxStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).Model(&OutboxEntry{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ OutboxRepository = (*GormOutboxRepository)(nil)
