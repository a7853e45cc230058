// Package migrations embeds the bi-ingestion schema.
package migrations

import (
	"embed"

	"github.com/chiro/erp/internal/platform/persistence"
)

//go:embed *.sql
var files embed.FS

// Source returns the bi-ingestion migration set, tracked in its own table.
func Source() persistence.MigrationSource {
	return persistence.MigrationSource{FS: files, Dir: ".", Table: "bi_schema_migrations"}
}
