package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/registry"

	"github.com/chiro/erp/internal/platform/config"
)

// ConfluentSchemaRegistry talks to a Confluent-compatible registry.
type ConfluentSchemaRegistry struct {
	client       *registry.Client
	autoRegister bool

	mu   sync.RWMutex
	byID map[int]avro.Schema
}

// NewConfluentSchemaRegistry creates a registry client from cfg.
func NewConfluentSchemaRegistry(cfg config.SchemaRegistryConfig) (*ConfluentSchemaRegistry, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client, err := registry.NewClient(cfg.URL, registry.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("create schema registry client: %w", err)
	}
	return &ConfluentSchemaRegistry{client: client, autoRegister: cfg.AutoRegister, byID: make(map[int]avro.Schema)}, nil
}

// Register creates the schema under subject when auto-registration is on,
// and otherwise requires it to be registered already.
func (r *ConfluentSchemaRegistry) Register(ctx context.Context, subject string, schema avro.Schema) (int, error) {
	var (
		id  int
		err error
	)
	if r.autoRegister {
		id, _, err = r.client.CreateSchema(ctx, subject, schema.String())
	} else {
		id, _, err = r.client.IsRegistered(ctx, subject, schema.String())
	}
	if err != nil {
		return 0, fmt.Errorf("schema registry subject %s: %w", subject, err)
	}
	r.mu.Lock()
	r.byID[id] = schema
	r.mu.Unlock()
	return id, nil
}

func (r *ConfluentSchemaRegistry) SchemaByID(ctx context.Context, id int) (avro.Schema, error) {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	s, err := r.client.GetSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.byID[id] = s
	r.mu.Unlock()
	return s, nil
}

// LocalSchemaRegistry assigns ids in process. Producers and consumers only
// agree on ids when they share the instance, so it is meant for tests and
// single-process setups.
type LocalSchemaRegistry struct {
	mu       sync.Mutex
	next     int
	bySchema map[string]int
	byID     map[int]avro.Schema
	subjects map[string][]int
}

// NewLocalSchemaRegistry creates an empty registry.
func NewLocalSchemaRegistry() *LocalSchemaRegistry {
	return &LocalSchemaRegistry{
		next:     1,
		bySchema: make(map[string]int),
		byID:     make(map[int]avro.Schema),
		subjects: make(map[string][]int),
	}
}

func (r *LocalSchemaRegistry) Register(_ context.Context, subject string, schema avro.Schema) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	canonical := schema.String()
	id, ok := r.bySchema[canonical]
	if !ok {
		id = r.next
		r.next++
		r.bySchema[canonical] = id
		r.byID[id] = schema
	}
	for _, v := range r.subjects[subject] {
		if v == id {
			return id, nil
		}
	}
	r.subjects[subject] = append(r.subjects[subject], id)
	return id, nil
}

func (r *LocalSchemaRegistry) SchemaByID(_ context.Context, id int) (avro.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("schema %d not found", id)
	}
	return s, nil
}

// Versions returns the schema ids registered under subject, oldest first.
func (r *LocalSchemaRegistry) Versions(subject string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.subjects[subject]...)
}

// ErrSchemaRegistryRequired is returned when Kafka is enabled without a
// registry URL. Process-local schema ids are not portable across services.
var ErrSchemaRegistryRequired = errors.New("schema_registry.url is required when kafka.enabled is true")

// NewSchemaRegistry picks the Confluent client when a URL is configured.
// The local registry is only used when events stay inside the process.
func NewSchemaRegistry(kafka config.KafkaConfig, cfg config.SchemaRegistryConfig) (SchemaRegistry, error) {
	if cfg.URL != "" {
		return NewConfluentSchemaRegistry(cfg)
	}
	if kafka.Enabled {
		return nil, ErrSchemaRegistryRequired
	}
	return NewLocalSchemaRegistry(), nil
}

var (
	_ SchemaRegistry = (*ConfluentSchemaRegistry)(nil)
	_ SchemaRegistry = (*LocalSchemaRegistry)(nil)
)
