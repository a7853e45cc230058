// Package commerce is the composition root of commerce-service: orders,
// their REST surface, the outbox of order events and the consumer that
// keeps the customer projection current.
package commerce

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chiro/erp/internal/contexts/commerce/application"
	"github.com/chiro/erp/internal/contexts/commerce/infrastructure"
	"github.com/chiro/erp/internal/contexts/commerce/interfaces/http/handler"
	"github.com/chiro/erp/internal/contexts/commerce/migrations"
	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/messaging"
	"github.com/chiro/erp/internal/platform/persistence"
)

// ServiceName is the deployable name used for config, logs and metrics.
const ServiceName = "commerce-service"

// Published are the event types this context writes to its outbox.
var Published = []string{contracts.EventOrderPlaced, contracts.EventOrderCancelled}

// Subscriptions are the topics this context consumes.
var Subscriptions = []string{contracts.TopicCustomers}

// Module wires the commerce context.
type Module struct {
	Service        *application.Service
	Handler        *handler.Handler
	CustomerEvents *infrastructure.CustomerEventsHandler
}

// Dependencies of the commerce context.
type Dependencies struct {
	DB     *gorm.DB
	Codec  *messaging.EventCodec
	Logger *zap.Logger
}

// NewModule builds the context.
func NewModule(deps Dependencies) *Module {
	outbox := messaging.NewEventOutbox(deps.Codec, infrastructure.MapOrderEvent)
	service := application.NewService(
		infrastructure.NewGormOrderRepository(deps.DB),
		infrastructure.NewGormTransactionScope(deps.DB, outbox),
	)
	return &Module{
		Service:        service,
		Handler:        handler.NewHandler(service),
		CustomerEvents: infrastructure.NewCustomerEventsHandler(service, deps.Codec, deps.Logger),
	}
}

// Router returns the message router of the consumed event types.
func (m *Module) Router(log *zap.Logger) *messaging.Router {
	r := messaging.NewRouter(log)
	m.CustomerEvents.Register(r)
	return r
}

// Migrations returns the embedded schemas the context needs, in order.
func Migrations() []persistence.MigrationSource {
	return []persistence.MigrationSource{messaging.Migrations(), migrations.Source()}
}
