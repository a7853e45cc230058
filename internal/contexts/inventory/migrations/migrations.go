// Package migrations embeds the inventory schema.
package migrations

import (
	"embed"

	"github.com/chiro/erp/internal/platform/persistence"
)

//go:embed *.sql
var files embed.FS

// Source returns the inventory migration set, tracked in its own table.
func Source() persistence.MigrationSource {
	return persistence.MigrationSource{FS: files, Dir: ".", Table: "inventory_schema_migrations"}
}
