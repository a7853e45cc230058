// Command commerce-service serves the order REST API, publishes order
// events through the outbox and keeps its projection of customers.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/commerce"
	"github.com/chiro/erp/internal/platform/bootstrap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commerce.ServiceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	app, err := bootstrap.New(ctx, bootstrap.Options{
		Service:    commerce.ServiceName,
		Migrations: commerce.Migrations(),
		Messaging:  true,
		Published:  commerce.Published,
	})
	if err != nil {
		return err
	}

	m := commerce.NewModule(commerce.Dependencies{DB: app.DB.DB, Codec: app.Codec, Logger: app.Logger})
	if err := app.Serve(m.Handler); err != nil {
		return err
	}
	if err := app.RelayOutbox(); err != nil {
		return err
	}
	if err := app.Consume(commerce.Subscriptions, m.Router(app.Logger)); err != nil {
		return err
	}

	app.Logger.Info("Commerce service ready", zap.Strings("subscriptions", commerce.Subscriptions))
	return app.Run(ctx)
}
