package commands

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/contexts/biingestion"
	"github.com/chiro/erp/internal/contexts/commerce"
	"github.com/chiro/erp/internal/contexts/customerrelation"
	"github.com/chiro/erp/internal/contexts/inventory"
	"github.com/chiro/erp/internal/platform/persistence"
)

// serviceMigrations lists each service's schemas in apply order.
var serviceMigrations = map[string]func() []persistence.MigrationSource{
	commerce.ServiceName:         commerce.Migrations,
	customerrelation.ServiceName: customerrelation.Migrations,
	inventory.ServiceName:        inventory.Migrations,
	biingestion.ServiceName:      biingestion.Migrations,
}

func migrationSources(service string) ([]persistence.MigrationSource, error) {
	fn, ok := serviceMigrations[service]
	if !ok {
		known := make([]string, 0, len(serviceMigrations))
		for name := range serviceMigrations {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown service %q (known: %s)", service, strings.Join(known, ", "))
	}
	return fn(), nil
}

func migrateCmd() *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage a service's database schema",
	}
	cmd.PersistentFlags().StringVarP(&service, "service", "s", "", "service name, e.g. commerce-service")
	_ = cmd.MarkPersistentFlagRequired("service")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrators(service, false, func(m *persistence.Migrator, _ persistence.MigrationSource) error {
					return m.Up()
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration, newest schema first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrators(service, true, func(m *persistence.Migrator, _ persistence.MigrationSource) error {
					return m.Down()
				})
			},
		},
		&cobra.Command{
			Use:   "steps <n> <table>",
			Short: "Apply n migrations of one schema (negative rolls back)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return withMigrator(service, args[1], func(m *persistence.Migrator) error {
					return m.Steps(n)
				})
			},
		},
		&cobra.Command{
			Use:   "force <version> <table>",
			Short: "Set the recorded version of one schema without running migrations",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(service, args[1], func(m *persistence.Migrator) error {
					return m.Force(version)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied version of each schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				return withMigrators(service, false, func(m *persistence.Migrator, src persistence.MigrationSource) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					state := "clean"
					if dirty {
						state = "dirty"
					}
					fmt.Fprintf(out, "%s\t%d\t%s\n", src.Table, version, state)
					return nil
				})
			},
		},
	)
	return cmd
}

// withMigrator runs fn for the schema of service stored in table.
func withMigrator(service, table string, fn func(*persistence.Migrator) error) error {
	sources, err := migrationSources(service)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(sources, func(s persistence.MigrationSource) bool { return s.Table == table })
	if idx < 0 {
		tables := make([]string, len(sources))
		for i, s := range sources {
			tables[i] = s.Table
		}
		return fmt.Errorf("%s has no schema %q (schemas: %s)", service, table, strings.Join(tables, ", "))
	}
	return runMigrations(service, sources[idx:idx+1], func(m *persistence.Migrator, _ persistence.MigrationSource) error {
		return fn(m)
	})
}

func withMigrators(service string, reverse bool, fn func(*persistence.Migrator, persistence.MigrationSource) error) error {
	sources, err := migrationSources(service)
	if err != nil {
		return err
	}
	if reverse {
		slices.Reverse(sources)
	}
	return runMigrations(service, sources, fn)
}

func runMigrations(service string, sources []persistence.MigrationSource, fn func(*persistence.Migrator, persistence.MigrationSource) error) error {
	db, err := openDatabase(service)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	for _, src := range sources {
		log.Info("Running migrations", zap.String("service", service), zap.String("table", src.Table))
		m, err := persistence.NewMigrator(sqlDB, src, log)
		if err != nil {
			return err
		}
		err = fn(m, src)
		if cerr := m.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", src.Table, err)
		}
	}
	return nil
}
