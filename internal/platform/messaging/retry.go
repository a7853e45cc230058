package messaging

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// permanentError marks a failure that retrying cannot fix, such as a
// payload that does not decode.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryingHandler dead-letters without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// RetryPolicy configures exponential retries.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
}

// RetryingHandler retries a handler with exponential backoff. When the
// retries are exhausted, or the failure is permanent, the message is sent
// to the dead-letter publisher and acknowledged. Without a dead-letter
// publisher the last error is returned and the message is not acknowledged.
type RetryingHandler struct {
	next       Handler
	policy     RetryPolicy
	deadLetter *DeadLetterPublisher
	metrics    Metrics
	logger     *zap.Logger
}

// NewRetryingHandler wraps next. deadLetter may be nil.
func NewRetryingHandler(next Handler, policy RetryPolicy, deadLetter *DeadLetterPublisher, metrics Metrics, log *zap.Logger) *RetryingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingHandler{next: next, policy: policy, deadLetter: deadLetter, metrics: metricsOrNop(metrics), logger: log}
}

// Handle implements Handler.
func (h *RetryingHandler) Handle(ctx context.Context, msg Message) error {
	attempts := 0
	op := func() error {
		attempts++
		err := h.next.Handle(ctx, msg)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, h.policy.backOff(ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Shutting down: leave the offset unmarked so it is redelivered.
		return err
	}

	log := logger.Enrich(ctx, h.logger).With(
		zap.String("topic", msg.Topic),
		zap.String("event_type", msg.EventType()),
		zap.String("event_id", msg.EventID()),
		zap.Int("attempts", attempts),
	)
	if h.deadLetter == nil {
		log.Error("message failed after retries", zap.Error(err))
		return err
	}
	if dlqErr := h.deadLetter.Send(ctx, msg, err, attempts); dlqErr != nil {
		log.Error("failed to dead-letter message", zap.Error(err), zap.NamedError("dlq_error", dlqErr))
		return errors.Join(err, dlqErr)
	}
	h.metrics.MessageDeadLettered(msg.Topic, msg.EventType())
	log.Warn("message moved to dead-letter topic", zap.Error(err))
	return nil
}

// DeadLetterPublisher parks failed messages on <topic>.dlq with the cause
// and origin in headers.
type DeadLetterPublisher struct {
	publisher Publisher
}

// NewDeadLetterPublisher creates a dead-letter publisher.
func NewDeadLetterPublisher(p Publisher) *DeadLetterPublisher {
	return &DeadLetterPublisher{publisher: p}
}

// DeadLetterTopic returns the dead-letter topic of topic.
func DeadLetterTopic(topic string) string {
	return topic + DeadLetterSuffix
}

// Send publishes msg to its dead-letter topic.
func (d *DeadLetterPublisher) Send(ctx context.Context, msg Message, cause error, attempts int) error {
	dl := msg.Clone()
	dl.Topic = DeadLetterTopic(msg.Topic)
	dl.Partition, dl.Offset = 0, 0
	dl.Headers[HeaderOriginalTopic] = msg.Topic
	dl.Headers[HeaderOriginalPartition] = strconv.FormatInt(int64(msg.Partition), 10)
	dl.Headers[HeaderOriginalOffset] = strconv.FormatInt(msg.Offset, 10)
	dl.Headers[HeaderRetryCount] = strconv.Itoa(attempts)
	if cause != nil {
		dl.Headers[HeaderError] = cause.Error()
	}
	return d.publisher.Publish(ctx, dl)
}
