package messaging

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"
)

const (
	wireMagicByte  = 0
	wireHeaderSize = 5
)

// ErrInvalidWireFormat is returned for payloads without the Confluent
// framing (magic byte 0 followed by a 4-byte schema id).
var ErrInvalidWireFormat = errors.New("avro: invalid wire format")

// ErrSchemaLookup marks a failed writer schema fetch. Unlike a malformed
// payload it may succeed on a later attempt.
var ErrSchemaLookup = errors.New("avro: schema lookup failed")

// SchemaRegistry resolves schema ids.
type SchemaRegistry interface {
	// Register returns the id of schema under subject, registering it when
	// the registry allows it.
	Register(ctx context.Context, subject string, schema avro.Schema) (int, error)
	// SchemaByID returns the writer schema for id.
	SchemaByID(ctx context.Context, id int) (avro.Schema, error)
}

// AvroSerde encodes values in the Confluent wire format.
type AvroSerde struct {
	registry SchemaRegistry

	mu  sync.RWMutex
	ids map[string]int
}

// NewAvroSerde creates a serde over registry.
func NewAvroSerde(registry SchemaRegistry) *AvroSerde {
	return &AvroSerde{registry: registry, ids: make(map[string]int)}
}

func (s *AvroSerde) schemaID(ctx context.Context, subject string, schema avro.Schema) (int, error) {
	fp := schema.Fingerprint()
	key := subject + "|" + string(fp[:])
	s.mu.RLock()
	id, ok := s.ids[key]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.registry.Register(ctx, subject, schema)
	if err != nil {
		return 0, fmt.Errorf("resolve schema id for %s: %w", subject, err)
	}
	s.mu.Lock()
	s.ids[key] = id
	s.mu.Unlock()
	return id, nil
}

// Register resolves and caches the id of schema ahead of the first encode.
func (s *AvroSerde) Register(ctx context.Context, subject string, schema avro.Schema) (int, error) {
	return s.schemaID(ctx, subject, schema)
}

// Encode marshals v with schema and prefixes the schema id.
func (s *AvroSerde) Encode(ctx context.Context, subject string, schema avro.Schema, v any) ([]byte, error) {
	id, err := s.schemaID(ctx, subject, schema)
	if err != nil {
		return nil, err
	}
	body, err := avro.Marshal(schema, v)
	if err != nil {
		return nil, fmt.Errorf("avro marshal %s: %w", subject, err)
	}
	out := make([]byte, wireHeaderSize, wireHeaderSize+len(body))
	out[0] = wireMagicByte
	binary.BigEndian.PutUint32(out[1:wireHeaderSize], uint32(id))
	return append(out, body...), nil
}

// Decode reads the writer schema id from data and unmarshals into v.
func (s *AvroSerde) Decode(ctx context.Context, data []byte, v any) error {
	id, err := SchemaID(data)
	if err != nil {
		return err
	}
	schema, err := s.registry.SchemaByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: schema %d: %w", ErrSchemaLookup, id, err)
	}
	if err := avro.Unmarshal(schema, data[wireHeaderSize:], v); err != nil {
		return fmt.Errorf("avro unmarshal (schema %d): %w", id, err)
	}
	return nil
}

// SchemaID extracts the schema id of a framed payload.
func SchemaID(data []byte) (int, error) {
	if len(data) < wireHeaderSize || data[0] != wireMagicByte {
		return 0, ErrInvalidWireFormat
	}
	return int(binary.BigEndian.Uint32(data[1:wireHeaderSize])), nil
}
