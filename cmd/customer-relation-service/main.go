// Command customer-relation-service serves the customer REST API,
// publishes customer events and folds order events into customer
// statistics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chiro/erp/internal/contexts/customerrelation"
	"github.com/chiro/erp/internal/platform/bootstrap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", customerrelation.ServiceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	app, err := bootstrap.New(ctx, bootstrap.Options{
		Service:    customerrelation.ServiceName,
		Migrations: customerrelation.Migrations(),
		Messaging:  true,
		Published:  customerrelation.Published,
	})
	if err != nil {
		return err
	}

	m := customerrelation.NewModule(customerrelation.Dependencies{DB: app.DB.DB, Codec: app.Codec, Logger: app.Logger})
	if err := app.Serve(m.Handler); err != nil {
		return err
	}
	if err := app.RelayOutbox(); err != nil {
		return err
	}
	if err := app.Consume(customerrelation.Subscriptions, m.Router(app.Logger)); err != nil {
		return err
	}
	return app.Run(ctx)
}
