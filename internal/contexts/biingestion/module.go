// Package biingestion is the composition root of bi-ingestion-service. It
// has no REST surface: events from commerce and the CRM are folded into
// daily facts, and only the management endpoints are served.
package biingestion

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/biingestion/application"
	"github.com/chiro/erp/internal/contexts/biingestion/infrastructure"
	"github.com/chiro/erp/internal/contexts/biingestion/migrations"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/persistence"
)

// ServiceName is the deployable name used for config, logs and metrics.
const ServiceName = "bi-ingestion-service"

// Subscriptions are the topics this context consumes.
var Subscriptions = []string{contracts.TopicOrders, contracts.TopicCustomers}

// Module wires the bi-ingestion context.
type Module struct {
	Service *application.Service
	Events  *infrastructure.EventsHandler
}

// Dependencies of the bi-ingestion context.
type Dependencies struct {
	DB    *gorm.DB
	Codec *messaging.EventCodec
}

// NewModule builds the context.
func NewModule(deps Dependencies) *Module {
	service := application.NewService(
		infrastructure.NewGormTransactionScope(deps.DB),
		infrastructure.NewGormFactRepository(deps.DB),
	)
	return &Module{
		Service: service,
		Events:  infrastructure.NewEventsHandler(service, deps.Codec),
	}
}

// Router returns the message router of the consumed event types.
func (m *Module) Router(log *zap.Logger) *messaging.Router {
	r := messaging.NewRouter(log)
	m.Events.Register(r)
	return r
}

// Migrations returns the embedded schema of the context.
func Migrations() []persistence.MigrationSource {
	return []persistence.MigrationSource{migrations.Source()}
}
