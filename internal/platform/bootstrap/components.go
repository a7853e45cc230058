package bootstrap

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/observability"
	"github.com/chiro/erp/internal/platform/security"
)

// Serve adds the HTTP servers of the service. With registrars the REST API
// is served under /api/v1 behind bearer authentication on app.port, and the
// management endpoints move to app.management_port when one is set.
// Without registrars only the management endpoints are served.
func (a *App) Serve(registrars ...httpapi.RouteRegistrar) error {
	cfg := a.Config
	if len(registrars) == 0 {
		engine, err := a.managementEngine()
		if err != nil {
			return err
		}
		port := cfg.App.ManagementPort
		if port == "" {
			port = cfg.App.Port
		}
		a.servers = append(a.servers, httpapi.NewServer("management", ":"+port, engine, cfg.HTTP, a.Logger))
		return nil
	}

	engine, err := a.restEngine(registrars...)
	if err != nil {
		return err
	}
	a.servers = append(a.servers, httpapi.NewServer("api", ":"+cfg.App.Port, engine, cfg.HTTP, a.Logger))

	if cfg.App.ManagementPort != "" {
		mgmt, err := a.managementEngine()
		if err != nil {
			return err
		}
		a.servers = append(a.servers, httpapi.NewServer("management", ":"+cfg.App.ManagementPort, mgmt, cfg.HTTP, a.Logger))
	}
	return nil
}

func (a *App) restEngine(registrars ...httpapi.RouteRegistrar) (*gin.Engine, error) {
	var extra []gin.HandlerFunc
	if a.Config.Metrics.Enabled {
		extra = append(extra, observability.HTTPMetrics(a.Metrics))
	}
	engine, err := httpapi.NewEngine(a.Config.HTTP, a.Logger, extra...)
	if err != nil {
		return nil, err
	}
	if a.Config.App.ManagementPort == "" {
		a.mount(engine)
	}

	auth := security.Authenticate(security.AuthConfig{
		Tokens:      a.Tokens,
		Revocations: a.revocations,
		SkipPaths:   security.DefaultSkipPaths,
		Logger:      a.Logger,
	})
	httpapi.NewRouter(engine, httpapi.WithGroupMiddleware(auth)).Register(registrars...).Setup()
	return engine, nil
}

func (a *App) managementEngine() (*gin.Engine, error) {
	engine, err := httpapi.NewEngine(a.Config.HTTP, a.Logger)
	if err != nil {
		return nil, err
	}
	a.mount(engine)
	return engine, nil
}

func (a *App) mount(engine *gin.Engine) {
	reg := a.Metrics
	if !a.Config.Metrics.Enabled {
		reg = nil
	}
	observability.Mount(engine, reg, a.Health, a.Config.Metrics.Path)
}

// RelayOutbox moves committed outbox entries of the service's database to
// the publisher while the App runs.
func (a *App) RelayOutbox() error {
	if a.publisher == nil {
		return errors.New("outbox relay needs messaging")
	}
	if !a.Config.Outbox.Enabled {
		a.Logger.Warn("Outbox relay disabled, entries accumulate until it is enabled")
		return nil
	}
	oc := a.Config.Outbox
	a.relay = messaging.NewOutboxRelay(
		messaging.NewGormOutboxRepository(a.DB.DB),
		a.publisher,
		messaging.OutboxRelayConfig{
			BatchSize:        oc.BatchSize,
			PollInterval:     oc.PollInterval,
			MaxRetries:       oc.MaxRetries,
			CleanupEnabled:   oc.CleanupEnabled,
			CleanupRetention: oc.CleanupRetention,
			CleanupInterval:  oc.CleanupInterval,
		},
		a.messagingMetrics,
		a.Logger,
	)
	return nil
}

// Consume subscribes router to topics through the retry, dead-letter and
// idempotency pipeline. With Kafka disabled the in-process bus delivers.
func (a *App) Consume(topics []string, router *messaging.Router) error {
	if a.publisher == nil {
		return errors.New("consumers need messaging")
	}
	handler := a.pipeline(router)

	if a.bus != nil {
		for _, topic := range topics {
			a.bus.Subscribe(topic, handler)
		}
		return nil
	}

	consumer, err := messaging.NewKafkaConsumer(a.Config.Kafka, topics, handler, a.messagingMetrics, a.Logger)
	if err != nil {
		return err
	}
	a.consumers = append(a.consumers, consumer)
	a.Health.Register("kafka_consumer", func(context.Context) error {
		if !consumer.Ready() {
			return errors.New("consumer group session not established")
		}
		return nil
	})
	a.Logger.Info("Consumer configured",
		zap.String("group", a.Config.Kafka.ConsumerGroup),
		zap.Strings("topics", topics),
		zap.Strings("event_types", router.EventTypes()),
	)
	return nil
}

// pipeline wraps router so that duplicates are skipped and failures are
// retried, then dead-lettered when enabled.
func (a *App) pipeline(router messaging.Handler) messaging.Handler {
	idempotent := messaging.NewIdempotentHandler(router, a.idempotency, messaging.DefaultIdempotencyTTL, a.messagingMetrics, a.Logger)

	var deadLetter *messaging.DeadLetterPublisher
	if a.Config.Kafka.DLQEnabled {
		deadLetter = messaging.NewDeadLetterPublisher(a.publisher)
	}
	policy := messaging.RetryPolicy{
		MaxRetries:      a.Config.Kafka.MaxRetries,
		InitialInterval: a.Config.Kafka.RetryInitialInterval,
		MaxInterval:     a.Config.Kafka.RetryMaxInterval,
	}
	return messaging.NewRetryingHandler(idempotent, policy, deadLetter, a.messagingMetrics, a.Logger)
}
