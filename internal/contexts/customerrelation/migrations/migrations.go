// Package migrations embeds the CRM schema.
package migrations

import (
	"embed"

	"github.com/chiro/erp/internal/platform/persistence"
)

//go:embed *.sql
var files embed.FS

// Source returns the CRM migration set, tracked in its own table.
func Source() persistence.MigrationSource {
	return persistence.MigrationSource{FS: files, Dir: ".", Table: "crm_schema_migrations"}
}
