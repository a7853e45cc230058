package messaging

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// ContractMapper converts a domain event into the payload of its
// integration contract.
type ContractMapper func(evt sharedkernel.DomainEvent) (any, error)

// EventOutbox encodes domain events with their contract schema and stores
// them in the outbox inside the caller's transaction.
type EventOutbox struct {
	codec  *EventCodec
	writer *OutboxWriter
	mapper ContractMapper
}

// NewEventOutbox creates an EventOutbox.
func NewEventOutbox(codec *EventCodec, mapper ContractMapper) *EventOutbox {
	return &EventOutbox{codec: codec, writer: NewOutboxWriter(), mapper: mapper}
}

// Append encodes events and writes them using tx.
func (o *EventOutbox) Append(ctx context.Context, tx *gorm.DB, events ...sharedkernel.DomainEvent) error {
	for _, evt := range events {
		payload, err := o.mapper(evt)
		if err != nil {
			return fmt.Errorf("map %s: %w", evt.EventType(), err)
		}
		msg, err := o.codec.Encode(ctx, EnvelopeFor(evt), payload)
		if err != nil {
			return err
		}
		if err := o.writer.Write(ctx, tx, evt.TenantID(), msg); err != nil {
			return err
		}
	}
	return nil
}
