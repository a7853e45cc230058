package contracts

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/hashicorp/go-multierror"
)

//go:embed schemas/*.avsc
var schemaFS embed.FS

// ErrUnknownEventType is returned for event types without a contract.
var ErrUnknownEventType = errors.New("contracts: unknown event type")

// Contract binds an event type to its schema, registry subject and topic.
type Contract struct {
	EventType string
	Topic     string
	// Subject follows the record name strategy: the schema's full name.
	Subject string
	Schema  avro.Schema
}

var contractFiles = []struct {
	file      string
	eventType string
	topic     string
}{
	{"order_placed.avsc", EventOrderPlaced, TopicOrders},
	{"order_cancelled.avsc", EventOrderCancelled, TopicOrders},
	{"customer_registered.avsc", EventCustomerRegistered, TopicCustomers},
	{"customer_status_changed.avsc", EventCustomerStatusChanged, TopicCustomers},
	{"stock_level_changed.avsc", EventStockLevelChanged, TopicStock},
}

// Catalog indexes the embedded contracts.
type Catalog struct {
	byType map[string]Contract
}

// NewCatalog parses the embedded schemas.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{byType: make(map[string]Contract, len(contractFiles))}
	for _, f := range contractFiles {
		raw, err := schemaFS.ReadFile(path.Join("schemas", f.file))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.file, err)
		}
		schema, err := avro.ParseBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.file, err)
		}
		named, ok := schema.(avro.NamedSchema)
		if !ok {
			return nil, fmt.Errorf("%s: top-level schema must be a record", f.file)
		}
		if named.Name() != f.eventType {
			return nil, fmt.Errorf("%s: record name %s does not match event type %s", f.file, named.Name(), f.eventType)
		}
		c.byType[f.eventType] = Contract{
			EventType: f.eventType,
			Topic:     f.topic,
			Subject:   named.FullName(),
			Schema:    schema,
		}
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared catalog. The schemas are compiled in, so a
// parse failure is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog()
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup returns the contract of eventType.
func (c *Catalog) Lookup(eventType string) (Contract, error) {
	ct, ok := c.byType[eventType]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return ct, nil
}

// Resolve implements messaging.SchemaResolver.
func (c *Catalog) Resolve(eventType string) (topic, subject string, schema avro.Schema, err error) {
	ct, err := c.Lookup(eventType)
	if err != nil {
		return "", "", nil, err
	}
	return ct.Topic, ct.Subject, ct.Schema, nil
}

// EventTypes returns all event types in lexical order.
func (c *Catalog) EventTypes() []string {
	out := make([]string, 0, len(c.byType))
	for t := range c.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ForTopic returns the event types carried by topic in lexical order.
func (c *Catalog) ForTopic(topic string) []string {
	var out []string
	for t, ct := range c.byType {
		if ct.Topic == topic {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Registrar is the part of a schema registry the catalog needs.
type Registrar interface {
	Register(ctx context.Context, subject string, schema avro.Schema) (int, error)
}

// Register registers every contract and reports all failures together.
func (c *Catalog) Register(ctx context.Context, r Registrar) error {
	var result *multierror.Error
	for _, t := range c.EventTypes() {
		ct := c.byType[t]
		if _, err := r.Register(ctx, ct.Subject, ct.Schema); err != nil {
			result = multierror.Append(result, fmt.Errorf("register %s: %w", ct.Subject, err))
		}
	}
	return result.ErrorOrNil()
}
