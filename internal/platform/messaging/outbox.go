package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultOutboxMaxRetries = 5
	DefaultOutboxBaseDelay  = time.Second
)

// OutboxEntry is a fully encoded message waiting to be relayed. It is
// written in the same transaction as the state change it announces.
type OutboxEntry struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	EventID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex"`
	EventType    string       `gorm:"type:varchar(100);not null"`
	Topic        string       `gorm:"type:varchar(200);not null"`
	PartitionKey string       `gorm:"type:varchar(200);not null;index"`
	Payload      []byte       `gorm:"not null"`
	Headers      Headers      `gorm:"type:jsonb;not null"`
	Status       OutboxStatus `gorm:"type:varchar(20);not null;index"`
	RetryCount   int          `gorm:"not null;default:0"`
	MaxRetries   int          `gorm:"not null;default:5"`
	LastError    string       `gorm:"type:text"`
	NextRetryAt  *time.Time
	ProcessedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (OutboxEntry) TableName() string {
	return "outbox_events"
}

// NewOutboxEntry captures msg for later delivery. msg must carry event id
// and event type headers.
func NewOutboxEntry(tenantID uuid.UUID, msg Message) (*OutboxEntry, error) {
	eventID, err := uuid.Parse(msg.EventID())
	if err != nil {
		return nil, errors.New("outbox: message has no valid event_id header")
	}
	if msg.EventType() == "" {
		return nil, errors.New("outbox: message has no event_type header")
	}
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EventID:      eventID,
		EventType:    msg.EventType(),
		Topic:        msg.Topic,
		PartitionKey: string(msg.Key),
		Payload:      msg.Value,
		Headers:      msg.Clone().Headers,
		Status:       OutboxStatusPending,
		MaxRetries:   DefaultOutboxMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Message rebuilds the message to publish.
func (e *OutboxEntry) Message() Message {
	m := Message{
		Topic:     e.Topic,
		Key:       []byte(e.PartitionKey),
		Value:     e.Payload,
		Headers:   make(Headers, len(e.Headers)),
		Timestamp: e.CreatedAt,
	}
	for k, v := range e.Headers {
		m.Headers[k] = v
	}
	return m
}

// MarkSent marks the entry as delivered.
func (e *OutboxEntry) MarkSent() {
	now := time.Now().UTC()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.NextRetryAt = nil
	e.UpdatedAt = now
}

// MarkFailed records a failed attempt. The next attempt is scheduled with
// exponential backoff (1s, 2s, 4s, ...) until MaxRetries is reached, after
// which the entry is DEAD.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = now
	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(DefaultOutboxBaseDelay * time.Duration(1<<uint(e.RetryCount-1)))
	e.NextRetryAt = &next
}

// ResetForRetry puts a dead entry back in the queue.
func (e *OutboxEntry) ResetForRetry() error {
	if e.Status != OutboxStatusDead {
		return errors.New("can only retry dead letter entries")
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsDead reports whether retries are exhausted.
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// OutboxRepository persists outbox entries.
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
