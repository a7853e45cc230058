// Package commands implements erpctl, the operator CLI for the ERP
// repository: module graph checks, build tasks, database migrations and
// token issuance.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/buildgraph"
	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

var (
	repoRoot   string
	configFile string
	logLevel   string

	graph *buildgraph.Graph
	log   *zap.Logger
)

// Execute runs the CLI with os.Args. SIGINT and SIGTERM cancel the
// running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "erpctl",
		Short:        "Operate the ERP modules and services",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stderr"}, "erpctl")
			if err != nil {
				return err
			}
			log = l
			graph = buildgraph.DefaultGraph()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&repoRoot, "root", ".", "repository root (directory holding go.mod)")
	root.PersistentFlags().StringVar(&configFile, "config", "", "service config file (default: <service>.toml lookup)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(modulesCmd(), tasksCmd(), migrateCmd(), tokenCmd(), factsCmd())
	return root
}

func loadConfig(service string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(service, configFile)
	}
	return config.Load(service)
}
