package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// KafkaConsumer runs a consumer group over a fixed topic list. Messages of
// a partition are handled one at a time and the offset is marked only after
// the handler returned nil.
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler Handler
	metrics Metrics
	logger  *zap.Logger
	ready   atomic.Bool
}

// NewKafkaConsumer joins cfg.ConsumerGroup on the given topics.
func NewKafkaConsumer(cfg config.KafkaConfig, topics []string, handler Handler, metrics Metrics, log *zap.Logger) (*KafkaConsumer, error) {
	sc, err := NewSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", cfg.ConsumerGroup, err)
	}
	return NewKafkaConsumerWithGroup(group, topics, handler, metrics, log), nil
}

// NewKafkaConsumerWithGroup wraps an existing consumer group.
func NewKafkaConsumerWithGroup(group sarama.ConsumerGroup, topics []string, handler Handler, metrics Metrics, log *zap.Logger) *KafkaConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaConsumer{
		group:   group,
		topics:  topics,
		handler: handler,
		metrics: metricsOrNop(metrics),
		logger:  log.Named("kafka-consumer"),
	}
}

// Run consumes until ctx is cancelled. It rejoins the group after every
// rebalance or handler failure.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	c.logger.Info("consumer started", zap.Strings("topics", c.topics))
	for {
		err := c.group.Consume(ctx, c.topics, c)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped")
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.logger.Warn("consume session ended with error, rejoining", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Ready reports whether the consumer currently holds a group session.
func (c *KafkaConsumer) Ready() bool {
	return c.ready.Load()
}

// Close leaves the group.
func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *KafkaConsumer) Setup(sess sarama.ConsumerGroupSession) error {
	c.ready.Store(true)
	c.logger.Info("partitions assigned", zap.Any("claims", sess.Claims()))
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *KafkaConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.ready.Store(false)
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler. Returning an error
// ends the session without marking the failed offset, so the message is
// redelivered after the group rejoins.
func (c *KafkaConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case cm, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			msg := fromConsumerMessage(cm)
			if err := c.dispatch(sess.Context(), msg); err != nil {
				return err
			}
			sess.MarkMessage(cm, "")
		}
	}
}

func (c *KafkaConsumer) dispatch(ctx context.Context, msg Message) error {
	ctx = MessageContext(ctx, msg)
	start := time.Now()
	err := c.handler.Handle(ctx, msg)
	c.metrics.MessageConsumed(msg.Topic, msg.EventType(), err, time.Since(start))
	if err != nil {
		logger.Enrich(ctx, c.logger).Error("message handling failed",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("event_type", msg.EventType()),
			zap.String("event_id", msg.EventID()),
			zap.Error(err),
		)
	}
	return err
}

// MessageContext copies correlation headers of msg into ctx for logging.
func MessageContext(ctx context.Context, msg Message) context.Context {
	if v := msg.Header(HeaderCorrelationID); v != "" {
		ctx = logger.WithCorrelationID(ctx, v)
	}
	if v := msg.Header(HeaderTenantID); v != "" {
		ctx = logger.WithTenantID(ctx, v)
	}
	return ctx
}
