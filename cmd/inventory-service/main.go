// Command inventory-service serves the stock REST API. It has no
// messaging.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/inventory"
	"github.com/chiro/erp/internal/platform/bootstrap"
)

func main() {
	ctx := context.Background()
	app, err := bootstrap.New(ctx, bootstrap.Options{
		Service:    inventory.ServiceName,
		Migrations: inventory.Migrations(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", inventory.ServiceName, err)
		os.Exit(1)
	}

	m := inventory.NewModule(inventory.Dependencies{DB: app.DB.DB})
	if err := app.Serve(m.Handler); err != nil {
		app.Logger.Fatal("Failed to configure HTTP server", zap.Error(err))
	}
	if err := app.Run(ctx); err != nil {
		app.Logger.Fatal("Service stopped with error", zap.Error(err))
	}
}
