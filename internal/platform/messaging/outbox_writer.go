package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxWriter stores encoded messages inside the caller's transaction.
type OutboxWriter struct {
	repo *GormOutboxRepository
}

// NewOutboxWriter creates a writer.
func NewOutboxWriter() *OutboxWriter {
	return &OutboxWriter{repo: NewGormOutboxRepository(nil)}
}

// Write saves msgs as pending outbox entries using tx, so they commit or
// roll back together with the business change.
func (w *OutboxWriter) Write(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	entries := make([]*OutboxEntry, 0, len(msgs))
	for _, m := range msgs {
		e, err := NewOutboxEntry(tenantID, m)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	if err := w.repo.WithTx(tx).Save(ctx, entries...); err != nil {
		return fmt.Errorf("failed to save outbox entries: %w", err)
	}
	return nil
}
