package messaging

import (
	"embed"

	"github.com/chiro/erp/internal/platform/persistence"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema of outbox_events and processed_events.
// Every service that publishes or consumes applies it next to its own.
func Migrations() persistence.MigrationSource {
	return persistence.MigrationSource{FS: migrationFiles, Dir: "migrations", Table: "messaging_schema_migrations"}
}
