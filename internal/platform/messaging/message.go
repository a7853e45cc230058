// Package messaging wraps Kafka for the context services: publishing,
// consumer groups, retries with dead-lettering, idempotent handling, the
// transactional outbox and the Avro wire format.
package messaging

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/chiro/erp/internal/platform/sharedkernel"
)

// Well-known headers.
const (
	HeaderEventID           = "event_id"
	HeaderEventType         = "event_type"
	HeaderTenantID          = "tenant_id"
	HeaderCorrelationID     = "correlation_id"
	HeaderContentType       = "content_type"
	HeaderError             = "x-error"
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderRetryCount        = "x-retry-count"
)

// ContentTypeAvro marks Confluent-framed Avro payloads.
const ContentTypeAvro = "application/vnd.confluent.avro"

// DeadLetterSuffix is appended to a topic name to get its dead-letter topic.
const DeadLetterSuffix = ".dlq"

// Headers is a flat string header set, stored as JSON in the outbox.
type Headers map[string]string

// Value implements driver.Valuer.
func (h Headers) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	b, err := sharedkernel.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (h *Headers) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*h = Headers{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("headers: unsupported source type %T", src)
	}
	out := Headers{}
	if len(data) > 0 {
		if err := sharedkernel.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
	}
	*h = out
	return nil
}

// Message is one record on a topic.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   Headers
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Header returns a header value or "".
func (m Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

func (m Message) EventType() string { return m.Header(HeaderEventType) }
func (m Message) EventID() string   { return m.Header(HeaderEventID) }

// Clone copies the message so header changes do not leak to the original.
func (m Message) Clone() Message {
	c := m
	c.Headers = make(Headers, len(m.Headers))
	for k, v := range m.Headers {
		c.Headers[k] = v
	}
	return c
}

// Publisher sends messages to their topics.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}

// Handler processes one message. A nil error acknowledges it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Metrics receives messaging instrumentation. observability provides the
// Prometheus implementation.
type Metrics interface {
	MessagePublished(topic, eventType string, err error)
	MessageConsumed(topic, eventType string, err error, elapsed time.Duration)
	MessageDeadLettered(topic, eventType string)
	DuplicateSkipped(topic, eventType string)
	OutboxBacklog(pending int64)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) MessagePublished(string, string, error)               {}
func (NopMetrics) MessageConsumed(string, string, error, time.Duration) {}
func (NopMetrics) MessageDeadLettered(string, string)                   {}
func (NopMetrics) DuplicateSkipped(string, string)                      {}
func (NopMetrics) OutboxBacklog(int64)                                  {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return NopMetrics{}
	}
	return m
}
