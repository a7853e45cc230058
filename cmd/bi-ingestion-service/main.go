// Command bi-ingestion-service folds commerce and CRM events into daily
// facts. It serves only health and metrics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chiro/erp/internal/contexts/biingestion"
	"github.com/chiro/erp/internal/platform/bootstrap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", biingestion.ServiceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	app, err := bootstrap.New(ctx, bootstrap.Options{
		Service:    biingestion.ServiceName,
		Migrations: biingestion.Migrations(),
		Messaging:  true,
	})
	if err != nil {
		return err
	}

	m := biingestion.NewModule(biingestion.Dependencies{DB: app.DB.DB, Codec: app.Codec})
	if err := app.Serve(); err != nil {
		return err
	}
	if err := app.Consume(biingestion.Subscriptions, m.Router(app.Logger)); err != nil {
		return err
	}
	return app.Run(ctx)
}
