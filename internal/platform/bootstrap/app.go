// Package bootstrap assembles a context service from the platform modules:
// configuration, logging, the database and its migrations, metrics and
// health, the REST or management server, the outbox relay and the
// consumer pipeline. Each cmd/<service> main is a thin call into it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/observability"
	"github.com/chiro/erp/internal/platform/persistence"
	"github.com/chiro/erp/internal/platform/security"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

// Options describe what a service needs from the platform.
type Options struct {
	Service    string
	Migrations []persistence.MigrationSource
	// Messaging enables the codec, the publisher and consumers.
	Messaging bool
	// Published event types are registered with the schema registry at
	// startup when auto-registration is on.
	Published []string
}

// App is an assembled service. Components are added with Serve,
// RelayOutbox and Consume, then started by Run.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *persistence.Database
	Metrics *observability.Registry
	Health  *observability.Health
	Tokens  *security.TokenService
	Codec   *messaging.EventCodec

	opts             Options
	messagingMetrics *observability.MessagingMetrics
	revocations      security.RevocationList
	redis            *redis.Client
	idempotency      messaging.IdempotencyStore
	publisher        messaging.Publisher
	bus              *messaging.InMemoryBus
	relay            *messaging.OutboxRelay
	consumers        []*messaging.KafkaConsumer
	servers          []*httpapi.Server
}

// New loads the configuration of opts.Service, connects to its database,
// applies the migrations and assembles the platform components.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.Service)
	if err != nil {
		return nil, err
	}
	if opts.Messaging {
		if err := cfg.ValidateMessaging(); err != nil {
			return nil, err
		}
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, opts.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Info("Starting service",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	db, err := persistence.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	for _, src := range opts.Migrations {
		if err := db.Migrate(src, log); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations %s: %w", src.Table, err)
		}
	}

	return Assemble(ctx, cfg, log, db, opts)
}

// Assemble builds the platform components over an already open database,
// which the App owns from then on. Tests use it with sqlite.
func Assemble(ctx context.Context, cfg *config.Config, log *zap.Logger, db *persistence.Database, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Metrics: observability.NewRegistry(cfg.Metrics, opts.Service),
		Health:  observability.NewHealth(opts.Service, 2*time.Second),
		Tokens:  security.NewTokenService(cfg.JWT),
		opts:    opts,
	}
	a.Health.Register("database", db.Ping)

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Health.Register("redis", observability.RedisCheck(a.redis))
		a.revocations = security.NewRedisRevocationList(a.redis)
		a.idempotency = messaging.NewRedisIdempotencyStore(a.redis, cfg.Kafka.ConsumerGroup)
	} else {
		a.revocations = security.NewInMemoryRevocationList()
		a.idempotency = messaging.NewInMemoryIdempotencyStore()
	}

	if opts.Messaging {
		if err := a.setupMessaging(ctx); err != nil {
			_ = a.closeAll()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) setupMessaging(ctx context.Context) error {
	registry, err := messaging.NewSchemaRegistry(a.Config.Kafka, a.Config.SchemaRegistry)
	if err != nil {
		return fmt.Errorf("schema registry: %w", err)
	}
	a.Codec = messaging.NewEventCodec(messaging.NewAvroSerde(registry), contracts.Default())
	if a.Config.SchemaRegistry.AutoRegister && len(a.opts.Published) > 0 {
		if err := a.Codec.RegisterAll(ctx, a.opts.Published...); err != nil {
			return fmt.Errorf("register schemas: %w", err)
		}
	}

	a.messagingMetrics = observability.NewMessagingMetrics(a.Metrics)
	if !a.Config.Kafka.Enabled {
		a.Logger.Warn("Kafka disabled, events stay inside this process")
		a.bus = messaging.NewInMemoryBus(a.Logger)
		a.publisher = a.bus
		return nil
	}
	publisher, err := messaging.NewKafkaPublisher(a.Config.Kafka, a.messagingMetrics, a.Logger)
	if err != nil {
		return err
	}
	a.publisher = publisher
	return nil
}

// Publisher returns the message publisher, nil without messaging.
func (a *App) Publisher() messaging.Publisher { return a.publisher }

// closeAll releases everything Assemble opened, in reverse order.
func (a *App) closeAll() error {
	var result *multierror.Error
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("consumer: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("publisher: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		}
	}
	return result.ErrorOrNil()
}
