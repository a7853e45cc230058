package messaging

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/chiro/erp/internal/platform/config"
)

// NewSaramaConfig builds a producer/consumer configuration with acks=all,
// an idempotent producer and key-hash partitioning, so all events of one
// aggregate land on one partition in order.
func NewSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid kafka.version %q: %w", cfg.Version, err)
	}
	sc.Version = version
	sc.ClientID = cfg.ClientID

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Idempotent = true
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Net.MaxOpenRequests = 1

	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	sc.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.InitialOffset == "newest" {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	return sc, nil
}

func toProducerMessage(m Message) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic:   m.Topic,
		Value:   sarama.ByteEncoder(m.Value),
		Headers: make([]sarama.RecordHeader, 0, len(m.Headers)),
	}
	if len(m.Key) > 0 {
		pm.Key = sarama.ByteEncoder(m.Key)
	}
	if !m.Timestamp.IsZero() {
		pm.Timestamp = m.Timestamp
	}
	for k, v := range m.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return pm
}

func fromConsumerMessage(cm *sarama.ConsumerMessage) Message {
	m := Message{
		Topic:     cm.Topic,
		Key:       cm.Key,
		Value:     cm.Value,
		Headers:   make(Headers, len(cm.Headers)),
		Partition: cm.Partition,
		Offset:    cm.Offset,
		Timestamp: cm.Timestamp,
	}
	for _, h := range cm.Headers {
		if h != nil {
			m.Headers[string(h.Key)] = string(h.Value)
		}
	}
	return m
}
