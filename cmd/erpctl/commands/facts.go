package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chiro/erp/internal/contexts/biingestion"
	"github.com/chiro/erp/internal/contexts/biingestion/application"
	"github.com/chiro/erp/internal/platform/persistence"
)

const dayLayout = "2006-01-02"

// openDatabase connects to the database of service. Replaced in tests.
var openDatabase = func(service string) (*persistence.Database, error) {
	cfg, err := loadConfig(service)
	if err != nil {
		return nil, err
	}
	return persistence.Open(cfg.Database, log)
}

type factsRange struct {
	tenant   string
	from, to string
}

func (r *factsRange) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&r.from, "from", "", "first day, YYYY-MM-DD (default: 6 days before --to)")
	cmd.Flags().StringVar(&r.to, "to", "", "last day, YYYY-MM-DD (default: today, UTC)")
	_ = cmd.MarkFlagRequired("tenant")
}

func (r *factsRange) parse() (tenantID uuid.UUID, from, to time.Time, err error) {
	tenantID, err = uuid.Parse(r.tenant)
	if err != nil {
		return uuid.Nil, from, to, fmt.Errorf("invalid --tenant: %w", err)
	}
	to = time.Now().UTC()
	if r.to != "" {
		if to, err = time.Parse(dayLayout, r.to); err != nil {
			return uuid.Nil, from, to, fmt.Errorf("invalid --to %q", r.to)
		}
	}
	from = to.AddDate(0, 0, -6)
	if r.from != "" {
		if from, err = time.Parse(dayLayout, r.from); err != nil {
			return uuid.Nil, from, to, fmt.Errorf("invalid --from %q", r.from)
		}
	}
	if from.After(to) {
		return uuid.Nil, from, to, fmt.Errorf("--from %s is after --to %s", from.Format(dayLayout), to.Format(dayLayout))
	}
	return tenantID, from, to, nil
}

func factsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Query the daily facts collected by " + biingestion.ServiceName,
	}
	cmd.AddCommand(factsSalesCmd(), factsCustomersCmd())
	return cmd
}

func factsSalesCmd() *cobra.Command {
	var r factsRange
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Daily order counts and amounts per currency",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, from, to, err := r.parse()
			if err != nil {
				return err
			}
			return withFactsService(func(s *application.Service) error {
				days, err := s.Sales(cmd.Context(), tenantID, from, to)
				if err != nil {
					return err
				}
				table := newTable(cmd.OutOrStdout(), "Day", "Currency", "Placed", "Cancelled", "Gross", "Cancelled Amount")
				for _, d := range days {
					table.Append([]string{
						d.Day.Format(dayLayout), d.Currency,
						strconv.FormatInt(d.OrdersPlaced, 10), strconv.FormatInt(d.OrdersCancelled, 10),
						d.GrossAmount.StringFixed(2), d.CancelledAmount.StringFixed(2),
					})
				}
				table.Render()
				return nil
			})
		},
	}
	r.bind(cmd)
	return cmd
}

func factsCustomersCmd() *cobra.Command {
	var r factsRange
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Daily registrations, suspensions and reactivations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, from, to, err := r.parse()
			if err != nil {
				return err
			}
			return withFactsService(func(s *application.Service) error {
				days, err := s.Customers(cmd.Context(), tenantID, from, to)
				if err != nil {
					return err
				}
				table := newTable(cmd.OutOrStdout(), "Day", "Registrations", "Suspensions", "Reactivations")
				for _, d := range days {
					table.Append([]string{
						d.Day.Format(dayLayout),
						strconv.FormatInt(d.Registrations, 10),
						strconv.FormatInt(d.Suspensions, 10),
						strconv.FormatInt(d.Reactivations, 10),
					})
				}
				table.Render()
				return nil
			})
		},
	}
	r.bind(cmd)
	return cmd
}

func withFactsService(fn func(*application.Service) error) error {
	db, err := openDatabase(biingestion.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(biingestion.NewModule(biingestion.Dependencies{DB: db.DB}).Service)
}
