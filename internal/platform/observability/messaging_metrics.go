package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MessagingMetrics is the Prometheus sink for the messaging hooks.
type MessagingMetrics struct {
	published    *prometheus.CounterVec
	consumed     *prometheus.CounterVec
	handleTime   *prometheus.HistogramVec
	deadLettered *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	backlog      prometheus.Gauge
}

// NewMessagingMetrics registers the messaging collectors on r.
func NewMessagingMetrics(r *Registry) *MessagingMetrics {
	return &MessagingMetrics{
		published: r.CounterVec("", "messages_published_total",
			"Messages handed to the broker", "topic", "event_type", "outcome"),
		consumed: r.CounterVec("", "messages_consumed_total",
			"Messages processed by consumers", "topic", "event_type", "outcome"),
		handleTime: r.HistogramVec("", "message_handle_duration_seconds",
			"Time spent handling one message", nil, "topic"),
		deadLettered: r.CounterVec("", "messages_dead_lettered_total",
			"Messages parked on a dead-letter topic", "topic", "event_type"),
		duplicates: r.CounterVec("", "messages_duplicate_total",
			"Redelivered messages skipped by idempotency checks", "topic", "event_type"),
		backlog: r.Gauge("", "outbox_backlog", "Outbox entries waiting to be published"),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *MessagingMetrics) MessagePublished(topic, eventType string, err error) {
	m.published.WithLabelValues(topic, eventType, outcome(err)).Inc()
}

func (m *MessagingMetrics) MessageConsumed(topic, eventType string, err error, elapsed time.Duration) {
	m.consumed.WithLabelValues(topic, eventType, outcome(err)).Inc()
	m.handleTime.WithLabelValues(topic).Observe(elapsed.Seconds())
}

func (m *MessagingMetrics) MessageDeadLettered(topic, eventType string) {
	m.deadLettered.WithLabelValues(topic, eventType).Inc()
}

func (m *MessagingMetrics) DuplicateSkipped(topic, eventType string) {
	m.duplicates.WithLabelValues(topic, eventType).Inc()
}

func (m *MessagingMetrics) OutboxBacklog(pending int64) {
	m.backlog.Set(float64(pending))
}
