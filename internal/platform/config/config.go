// Package config loads service configuration from TOML files and ERP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration of one service.
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	SchemaRegistry SchemaRegistryConfig
	JWT            JWTConfig
	Log            LogConfig
	HTTP           HTTPConfig
	Outbox         OutboxConfig
	Metrics        MetricsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name           string
	Env            string
	Port           string
	ManagementPort string
}

// IsProduction reports whether the service runs with production safeguards.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
	LogLevel        string
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings. Services fall back to
// in-process stores when Enabled is false.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds broker and consumer settings.
type KafkaConfig struct {
	Enabled              bool // false selects the in-process bus
	Brokers              []string
	ClientID             string
	ConsumerGroup        string
	Version              string
	InitialOffset        string // oldest, newest
	DLQEnabled           bool
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	SessionTimeout       time.Duration
}

// SchemaRegistryConfig points at a Confluent-compatible schema registry.
// An empty URL selects the in-process registry.
type SchemaRegistryConfig struct {
	URL          string
	AutoRegister bool
	Timeout      time.Duration
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                 string
	RefreshSecret          string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
	MaxRefreshCount        int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// OutboxConfig controls the transactional outbox relay.
type OutboxConfig struct {
	Enabled          bool
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// Default listen ports of the services. Each service can still be moved
// with ERP_APP_PORT.
var defaultPorts = map[string]string{
	"commerce-service":          "8081",
	"customer-relation-service": "8082",
	"inventory-service":         "8083",
	"bi-ingestion-service":      "8084",
}

// Load reads <service>.toml (or config.toml) from the working directory,
// ./config or /etc/chiro-erp, then applies ERP_* environment overrides.
// Priority: environment, file, built-in defaults.
func Load(service string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	for _, p := range []string{".", "./config", "/etc/chiro-erp"} {
		v.AddConfigPath(p)
	}

	v.SetConfigName(service)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v, service)
}

// LoadFile reads an explicit TOML file, then applies environment overrides.
func LoadFile(service, path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return FromViper(v, service)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper, service string) (*Config, error) {
	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:           v.GetString("app.name"),
			Env:            v.GetString("app.env"),
			Port:           v.GetString("app.port"),
			ManagementPort: v.GetString("app.management_port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled:              getBoolDefault(v, "kafka.enabled", true),
			Brokers:              getList(v, "kafka.brokers"),
			ClientID:             v.GetString("kafka.client_id"),
			ConsumerGroup:        v.GetString("kafka.consumer_group"),
			Version:              v.GetString("kafka.version"),
			InitialOffset:        v.GetString("kafka.initial_offset"),
			DLQEnabled:           getBoolDefault(v, "kafka.dlq_enabled", true),
			MaxRetries:           getIntDefault(v, "kafka.max_retries", 3),
			RetryInitialInterval: v.GetDuration("kafka.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("kafka.retry_max_interval"),
			SessionTimeout:       v.GetDuration("kafka.session_timeout"),
		},
		SchemaRegistry: SchemaRegistryConfig{
			URL:          v.GetString("schema_registry.url"),
			AutoRegister: getBoolDefault(v, "schema_registry.auto_register", true),
			Timeout:      v.GetDuration("schema_registry.timeout"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("jwt.secret"),
			RefreshSecret:          v.GetString("jwt.refresh_secret"),
			AccessTokenExpiration:  v.GetDuration("jwt.access_token_expiration"),
			RefreshTokenExpiration: v.GetDuration("jwt.refresh_token_expiration"),
			Issuer:                 v.GetString("jwt.issuer"),
			MaxRefreshCount:        v.GetInt("jwt.max_refresh_count"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: getList(v, "http.cors_allow_origins"),
			CORSAllowMethods: getList(v, "http.cors_allow_methods"),
			CORSAllowHeaders: getList(v, "http.cors_allow_headers"),
			TrustedProxies:   getList(v, "http.trusted_proxies"),
		},
		Outbox: OutboxConfig{
			Enabled:          getBoolDefault(v, "outbox.enabled", true),
			BatchSize:        v.GetInt("outbox.batch_size"),
			PollInterval:     v.GetDuration("outbox.poll_interval"),
			MaxRetries:       v.GetInt("outbox.max_retries"),
			CleanupEnabled:   getBoolDefault(v, "outbox.cleanup_enabled", true),
			CleanupRetention: v.GetDuration("outbox.cleanup_retention"),
			CleanupInterval:  v.GetDuration("outbox.cleanup_interval"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolDefault(v, "metrics.enabled", true),
			Path:      v.GetString("metrics.path"),
			Namespace: v.GetString("metrics.namespace"),
		},
	}

	applyDefaults(cfg, service)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getList accepts both TOML arrays and comma separated env values.
func getList(v *viper.Viper, key string) []string {
	raw := v.Get(key)
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, ",")
	default:
		parts = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBoolDefault(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	return v.GetBool(key)
}

// getIntDefault returns def only when key is unset, so an explicit 0 is kept.
func getIntDefault(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	return v.GetInt(key)
}

func applyDefaults(cfg *Config, service string) {
	if cfg.App.Name == "" {
		cfg.App.Name = service
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = defaultPorts[service]
		if cfg.App.Port == "" {
			cfg.App.Port = "8080"
		}
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = strings.ReplaceAll(strings.TrimSuffix(cfg.App.Name, "-service"), "-", "_")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.App.Name
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = strings.TrimSuffix(cfg.App.Name, "-service")
	}
	if cfg.Kafka.Version == "" {
		cfg.Kafka.Version = "3.6.0"
	}
	if cfg.Kafka.InitialOffset == "" {
		cfg.Kafka.InitialOffset = "oldest"
	}
	if cfg.Kafka.RetryInitialInterval == 0 {
		cfg.Kafka.RetryInitialInterval = 200 * time.Millisecond
	}
	if cfg.Kafka.RetryMaxInterval == 0 {
		cfg.Kafka.RetryMaxInterval = 5 * time.Second
	}
	if cfg.Kafka.SessionTimeout == 0 {
		cfg.Kafka.SessionTimeout = 10 * time.Second
	}
	if cfg.SchemaRegistry.Timeout == 0 {
		cfg.SchemaRegistry.Timeout = 5 * time.Second
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenExpiration == 0 {
		cfg.JWT.RefreshTokenExpiration = 168 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "chiro-erp"
	}
	if cfg.JWT.MaxRefreshCount == 0 {
		cfg.JWT.MaxRefreshCount = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.IsProduction() {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	// No default CORS origins: cross-origin access must be configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = time.Second
	}
	if cfg.Outbox.MaxRetries == 0 {
		cfg.Outbox.MaxRetries = 5
	}
	if cfg.Outbox.CleanupRetention == 0 {
		cfg.Outbox.CleanupRetention = 168 * time.Hour
	}
	if cfg.Outbox.CleanupInterval == 0 {
		cfg.Outbox.CleanupInterval = time.Hour
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "chiro_erp"
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Kafka.InitialOffset {
	case "oldest", "newest":
	default:
		return fmt.Errorf("kafka.initial_offset must be oldest or newest, got %q", c.Kafka.InitialOffset)
	}
	if c.Kafka.MaxRetries < 0 {
		return fmt.Errorf("kafka.max_retries cannot be negative")
	}

	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// ValidateMessaging checks the settings a Kafka-connected service needs.
func (c *Config) ValidateMessaging() error {
	if !c.Kafka.Enabled {
		if c.App.IsProduction() {
			return fmt.Errorf("kafka.enabled cannot be false in production")
		}
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if c.Kafka.ConsumerGroup == "" {
		return fmt.Errorf("kafka.consumer_group must not be empty")
	}
	if c.SchemaRegistry.URL == "" {
		return fmt.Errorf("schema_registry.url is required when kafka.enabled is true")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
