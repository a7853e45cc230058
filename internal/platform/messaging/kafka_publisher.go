package messaging

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// KafkaPublisher publishes synchronously through a sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	metrics  Metrics
	logger   *zap.Logger
}

// NewKafkaPublisher connects a producer to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, metrics Metrics, log *zap.Logger) (*KafkaPublisher, error) {
	sc, err := NewSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, metrics, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer, e.g. a mock.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, metrics Metrics, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, metrics: metricsOrNop(metrics), logger: log.Named("kafka-publisher")}
}

// Publish sends msgs in order and stops at the first failure.
func (p *KafkaPublisher) Publish(ctx context.Context, msgs ...Message) error {
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		partition, offset, err := p.producer.SendMessage(toProducerMessage(m))
		p.metrics.MessagePublished(m.Topic, m.EventType(), err)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", m.Topic, err)
		}
		logger.Enrich(ctx, p.logger).Debug("message published",
			zap.String("topic", m.Topic),
			zap.String("event_type", m.EventType()),
			zap.String("event_id", m.EventID()),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset),
		)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
