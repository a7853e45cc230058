package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chiro/erp/internal/contexts/commerce"
	"github.com/chiro/erp/internal/platform/persistence"
	"github.com/chiro/erp/internal/platform/testkit"
)

func tableExists(t *testing.T, db *persistence.Database, table string) bool {
	t.Helper()
	var exists bool
	require.NoError(t, db.DB.Raw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = ?)", table,
	).Scan(&exists).Error)
	return exists
}

func TestMigratorAgainstPostgres(t *testing.T) {
	cfg := testkit.StartPostgres(t)
	log := zaptest.NewLogger(t)

	db, err := persistence.Open(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sources := commerce.Migrations()
	for _, src := range sources {
		require.NoError(t, db.Migrate(src, log))
		// Applying twice is a no-op.
		require.NoError(t, db.Migrate(src, log))
	}
	require.NoError(t, db.Ping(context.Background()))
	for _, table := range []string{"outbox_events", "processed_events", "orders", "known_customers"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	schema := sources[len(sources)-1]
	m, err := persistence.NewMigrator(sqlDB, schema, log)
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, tableExists(t, db, "known_customers"))

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tableExists(t, db, "orders"))
	// Other schemas keep their own version table.
	assert.True(t, tableExists(t, db, "outbox_events"))

	require.NoError(t, m.Force(2))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	require.NoError(t, m.Close())
	// The pool stays usable after the migrator is closed.
	require.NoError(t, db.Ping(context.Background()))
}
