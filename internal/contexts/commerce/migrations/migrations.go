// Package migrations embeds the commerce schema.
package migrations

import (
	"embed"

	"github.com/chiro/erp/internal/platform/persistence"
)

//go:embed *.sql
var files embed.FS

// Source returns the commerce migration set, tracked in its own table.
func Source() persistence.MigrationSource {
	return persistence.MigrationSource{FS: files, Dir: ".", Table: "commerce_schema_migrations"}
}
