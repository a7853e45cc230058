// Package inventory is the composition root of inventory-service: stock
// items, their movement ledger and the REST surface over them.
package inventory

import (
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/inventory/application"
	"github.com/chiro/erp/internal/contexts/inventory/infrastructure"
	"github.com/chiro/erp/internal/contexts/inventory/interfaces/http/handler"
	"github.com/chiro/erp/internal/contexts/inventory/migrations"
	"github.com/chiro/erp/internal/platform/persistence"
)

// ServiceName is the deployable name used for config, logs and metrics.
const ServiceName = "inventory-service"

// Module wires the inventory context.
type Module struct {
	Service *application.Service
	Handler *handler.Handler
}

// Dependencies of the inventory context.
type Dependencies struct {
	DB *gorm.DB
}

// NewModule builds the context over deps.DB.
func NewModule(deps Dependencies) *Module {
	service := application.NewService(
		infrastructure.NewGormStockItemRepository(deps.DB),
		infrastructure.NewGormMovementRepository(deps.DB),
		infrastructure.NewGormTransactionScope(deps.DB),
	)
	return &Module{Service: service, Handler: handler.NewHandler(service)}
}

// Migrations returns the embedded schemas the context needs.
func Migrations() []persistence.MigrationSource {
	return []persistence.MigrationSource{migrations.Source()}
}
