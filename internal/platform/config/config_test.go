package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "svc.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("commerce-service")
	require.NoError(t, err)

	assert.Equal(t, "commerce-service", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8081", cfg.App.Port)
	assert.Equal(t, "commerce", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "commerce", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "oldest", cfg.Kafka.InitialOffset)
	assert.Equal(t, 3, cfg.Kafka.MaxRetries)
	assert.True(t, cfg.Kafka.DLQEnabled)
	assert.True(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Outbox.Enabled)
	assert.True(t, cfg.SchemaRegistry.AutoRegister)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
}

func TestLoad_UnknownServiceFallsBackToGenericPort(t *testing.T) {
	cfg, err := Load("reporting")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "reporting", cfg.Database.DBName)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ERP_APP_PORT", "9000")
	t.Setenv("ERP_DATABASE_HOST", "db.internal")
	t.Setenv("ERP_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ERP_KAFKA_DLQ_ENABLED", "false")
	t.Setenv("ERP_REDIS_ENABLED", "true")

	cfg, err := Load("bi-ingestion-service")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.DLQEnabled)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "bi_ingestion", cfg.Database.DBName)
	assert.Equal(t, "bi-ingestion", cfg.Kafka.ConsumerGroup)
}

func TestLoadFile(t *testing.T) {
	path := writeTOML(t, `
[app]
name = "inventory-service"
port = "7000"

[kafka]
brokers = ["a:1", "b:2"]
max_retries = 7

[outbox]
poll_interval = "250ms"
enabled = false

[http]
cors_allow_origins = ["http://localhost:3000"]
`)
	cfg, err := LoadFile("inventory-service", path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.App.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 7, cfg.Kafka.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.False(t, cfg.Outbox.Enabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CORSAllowOrigins)
}

func TestLoadFile_ZeroRetriesDisablesRetrying(t *testing.T) {
	path := writeTOML(t, `
[kafka]
max_retries = 0
`)
	cfg, err := LoadFile("commerce-service", path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Kafka.MaxRetries)

	t.Setenv("ERP_KAFKA_MAX_RETRIES", "-1")
	_, err = LoadFile("commerce-service", path)
	assert.ErrorContains(t, err, "kafka.max_retries")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("x", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		wantErr string
	}{
		{
			name:    "idle exceeds open",
			toml:    "[database]\nmax_open_conns = 2\nmax_idle_conns = 4\n",
			wantErr: "cannot exceed",
		},
		{
			name:    "bad offset",
			toml:    "[kafka]\ninitial_offset = \"middle\"\n",
			wantErr: "initial_offset",
		},
		{
			name:    "production short secret",
			toml:    "[app]\nenv = \"production\"\n[jwt]\nsecret = \"short\"\n",
			wantErr: "jwt.secret",
		},
		{
			name: "production sslmode disabled",
			toml: "[app]\nenv = \"production\"\n[jwt]\nsecret = \"0123456789abcdef0123456789abcdef\"\n" +
				"[database]\npassword = \"pw\"\n",
			wantErr: "sslmode",
		},
		{
			name: "production wildcard cors",
			toml: "[app]\nenv = \"production\"\n[jwt]\nsecret = \"0123456789abcdef0123456789abcdef\"\n" +
				"[database]\npassword = \"pw\"\nsslmode = \"require\"\n[http]\ncors_allow_origins = [\"*\"]\n",
			wantErr: "cors_allow_origins",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile("svc", writeTOML(t, tt.toml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMessaging(t *testing.T) {
	cfg, err := Load("commerce-service")
	require.NoError(t, err)
	// Kafka is on by default, so a shared registry must be configured.
	assert.ErrorContains(t, cfg.ValidateMessaging(), "schema_registry.url")

	cfg.SchemaRegistry.URL = "http://registry:8081"
	assert.NoError(t, cfg.ValidateMessaging())

	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.ValidateMessaging())

	cfg.Kafka.Brokers = []string{"k:9092"}
	cfg.SchemaRegistry.URL = ""
	cfg.App.Env = "production"
	assert.ErrorContains(t, cfg.ValidateMessaging(), "schema_registry.url")

	cfg.Kafka.Enabled = false
	assert.ErrorContains(t, cfg.ValidateMessaging(), "kafka.enabled")

	cfg.App.Env = "development"
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.ValidateMessaging())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "erp", SSLMode: "require"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/erp?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
