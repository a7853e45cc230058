package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hamba/avro/v2"

	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// SchemaResolver maps an event type to its topic, registry subject and
// schema. contracts.Catalog implements it.
type SchemaResolver interface {
	Resolve(eventType string) (topic, subject string, schema avro.Schema, err error)
}

// Envelope carries the metadata that travels in message headers.
type Envelope struct {
	EventID   uuid.UUID
	EventType string
	TenantID  uuid.UUID
	Key       string
}

// EnvelopeFor builds an envelope from a domain event.
func EnvelopeFor(evt sharedkernel.DomainEvent) Envelope {
	return Envelope{
		EventID:   evt.EventID(),
		EventType: evt.EventType(),
		TenantID:  evt.TenantID(),
		Key:       evt.AggregateID().String(),
	}
}

// EventCodec turns payloads into framed Avro messages and back.
type EventCodec struct {
	serde   *AvroSerde
	schemas SchemaResolver
}

// NewEventCodec creates a codec.
func NewEventCodec(serde *AvroSerde, schemas SchemaResolver) *EventCodec {
	return &EventCodec{serde: serde, schemas: schemas}
}

// RegisterAll resolves the schema ids of eventTypes up front so a missing
// or incompatible schema fails at startup.
func (c *EventCodec) RegisterAll(ctx context.Context, eventTypes ...string) error {
	for _, t := range eventTypes {
		_, subject, schema, err := c.schemas.Resolve(t)
		if err != nil {
			return err
		}
		if _, err := c.serde.Register(ctx, subject, schema); err != nil {
			return err
		}
	}
	return nil
}

// Encode builds the message for payload. The correlation id of ctx, if any,
// is propagated.
func (c *EventCodec) Encode(ctx context.Context, env Envelope, payload any) (Message, error) {
	if env.EventID == uuid.Nil || env.EventType == "" {
		return Message{}, fmt.Errorf("encode: event id and type are required")
	}
	topic, subject, schema, err := c.schemas.Resolve(env.EventType)
	if err != nil {
		return Message{}, err
	}
	value, err := c.serde.Encode(ctx, subject, schema, payload)
	if err != nil {
		return Message{}, err
	}

	headers := Headers{
		HeaderEventID:     env.EventID.String(),
		HeaderEventType:   env.EventType,
		HeaderContentType: ContentTypeAvro,
	}
	if env.TenantID != uuid.Nil {
		headers[HeaderTenantID] = env.TenantID.String()
	}
	corr := logger.CorrelationID(ctx)
	if corr == "" {
		corr = logger.RequestID(ctx)
	}
	if corr != "" {
		headers[HeaderCorrelationID] = corr
	}

	var key []byte
	if env.Key != "" {
		key = []byte(env.Key)
	}
	return Message{Topic: topic, Key: key, Value: value, Headers: headers}, nil
}

// Decode unmarshals msg into v. Malformed payloads are permanent failures;
// schema lookup failures are returned as is so they are retried.
func (c *EventCodec) Decode(ctx context.Context, msg Message, v any) error {
	err := c.serde.Decode(ctx, msg.Value, v)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("decode %s: %w", msg.EventType(), err)
	if errors.Is(err, ErrSchemaLookup) {
		return err
	}
	return Permanent(err)
}

// ParseEventID returns the event id header as a UUID.
func ParseEventID(msg Message) (uuid.UUID, error) {
	id, err := uuid.Parse(msg.EventID())
	if err != nil {
		return uuid.Nil, Permanent(fmt.Errorf("invalid %s header %q", HeaderEventID, msg.EventID()))
	}
	return id, nil
}
