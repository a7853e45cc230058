// Package customerrelation is the composition root of
// customer-relation-service: customers, their REST surface, the outbox of
// customer events and the consumer of order events.
package customerrelation

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/customerrelation/application"
	"github.com/chiro/erp/internal/contexts/customerrelation/infrastructure"
	"github.com/chiro/erp/internal/contexts/customerrelation/interfaces/http/handler"
	"github.com/chiro/erp/internal/contexts/customerrelation/migrations"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/persistence"
)

// ServiceName is the deployable name used for config, logs and metrics.
const ServiceName = "customer-relation-service"

// Published are the event types this context writes to its outbox.
var Published = []string{contracts.EventCustomerRegistered, contracts.EventCustomerStatusChanged}

// Subscriptions are the topics this context consumes.
var Subscriptions = []string{contracts.TopicOrders}

// Module wires the CRM context.
type Module struct {
	Service     *application.Service
	Handler     *handler.Handler
	OrderEvents *infrastructure.OrderEventsHandler
}

// Dependencies of the CRM context.
type Dependencies struct {
	DB     *gorm.DB
	Codec  *messaging.EventCodec
	Logger *zap.Logger
}

// NewModule builds the context.
func NewModule(deps Dependencies) *Module {
	outbox := messaging.NewEventOutbox(deps.Codec, infrastructure.MapCustomerEvent)
	service := application.NewService(
		infrastructure.NewGormCustomerRepository(deps.DB),
		infrastructure.NewGormTransactionScope(deps.DB, outbox),
	)
	return &Module{
		Service:     service,
		Handler:     handler.NewHandler(service),
		OrderEvents: infrastructure.NewOrderEventsHandler(service, deps.Codec, deps.Logger),
	}
}

// Router returns the message router of the consumed event types.
func (m *Module) Router(log *zap.Logger) *messaging.Router {
	r := messaging.NewRouter(log)
	m.OrderEvents.Register(r)
	return r
}

// Migrations returns the embedded schemas the context needs, in order.
func Migrations() []persistence.MigrationSource {
	return []persistence.MigrationSource{messaging.Migrations(), migrations.Source()}
}
