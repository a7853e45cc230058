// Package testkit holds fixtures shared by the services' tests: throwaway
// Postgres and Kafka containers, mock and in-process databases, contract
// event fixtures and gin helpers.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chiro/erp/internal/platform/config"
)

const (
	PostgresImage = "postgres:16-alpine"
	KafkaImage    = "confluentinc/confluent-local:7.5.0"
)

// SkipIfShort skips container-backed tests under -short or when no
// container runtime is reachable.
func SkipIfShort(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	if tt, ok := t.(*testing.T); ok {
		testcontainers.SkipIfProviderIsNotHealthy(tt)
	}
}

// StartPostgres runs a disposable Postgres and returns settings that
// persistence.Open accepts. The container is terminated on cleanup.
func StartPostgres(t testing.TB) config.DatabaseConfig {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		PostgresImage,
		tcpostgres.WithDatabase("erp_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "erp_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		LogLevel:     "warn",
	}
}

// StartKafka runs a single-node KRaft broker and returns its bootstrap
// addresses.
func StartKafka(t testing.TB) []string {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()
	container, err := tckafka.Run(ctx, KafkaImage, tckafka.WithClusterID("erp-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}
