package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedEvent is the durable record that a consumer applied an event.
type ProcessedEvent struct {
	Consumer    string    `gorm:"type:varchar(100);primaryKey"`
	EventID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType   string    `gorm:"type:varchar(100);not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (ProcessedEvent) TableName() string {
	return "processed_events"
}

// ProcessedEventStore deduplicates inside the consumer's own transaction,
// which makes the side effects of an event apply exactly once even when
// Kafka redelivers it.
type ProcessedEventStore struct {
	consumer string
}

// NewProcessedEventStore creates a store for one consumer name.
func NewProcessedEventStore(consumer string) *ProcessedEventStore {
	return &ProcessedEventStore{consumer: consumer}
}

// TryRecord inserts the event id using tx and reports whether it was new.
// Callers skip their update when it was not.
func (s *ProcessedEventStore) TryRecord(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, eventType string) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEvent{
			Consumer:    s.consumer,
			EventID:     eventID,
			EventType:   eventType,
			ProcessedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("record processed event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteBefore prunes records older than before.
func (s *ProcessedEventStore) DeleteBefore(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("consumer = ? AND processed_at < ?", s.consumer, before).
		Delete(&ProcessedEvent{})
	return res.RowsAffected, res.Error
}
