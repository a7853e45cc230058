package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/buildgraph"
)

// newExecutor is replaced in tests.
var newExecutor = func(root string) buildgraph.Executor {
	return buildgraph.NewGoExecutor(root)
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and run build tasks",
	}
	cmd.AddCommand(tasksListCmd(), tasksRunCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List aggregate tasks, or every task with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			tg := graph.Tasks()
			table := newTable(cmd.OutOrStdout(), "Task", "Group", "Depends On", "Description")
			for _, t := range tg.List() {
				if !all && !t.IsAggregate() {
					continue
				}
				deps := t.DependsOn
				if t.IsAggregate() {
					deps = []string{fmt.Sprintf("%d tasks", len(t.DependsOn))}
				}
				table.Append([]string{t.Name, t.Group, joinOrDash(deps), t.Description})
			}
			table.Render()

			aliases := tg.Aliases()
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "alias %s = %s\n", name, aliases[name])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include per-module tasks")
	return cmd
}

func tasksRunCmd() *cobra.Command {
	var (
		strict bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run <task>...",
		Short: "Run tasks and their dependencies in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if dryRun {
				plan, err := graph.Tasks().Plan(args...)
				if err != nil {
					return err
				}
				for _, t := range plan {
					fmt.Fprintln(out, t.Name)
				}
				return nil
			}

			runner := buildgraph.NewRunner(graph, newExecutor(repoRoot),
				buildgraph.WithLogger(log),
				buildgraph.WithIgnoreLintFailures(!strict),
			)
			results, err := runner.Run(cmd.Context(), args...)
			for _, res := range results {
				switch {
				case res.Skipped:
					fmt.Fprintf(out, "SKIP   %s\n", res.Task)
				case res.Ignored:
					fmt.Fprintf(out, "WARN   %s: %v\n", res.Task, res.Err)
				case res.Err != nil:
					fmt.Fprintf(out, "FAIL   %s: %v\n", res.Task, res.Err)
				default:
					fmt.Fprintf(out, "OK     %s\n", res.Task)
				}
			}
			if err != nil {
				log.Error("task run failed", zap.Strings("tasks", args), zap.Error(err))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail the run on lint check failures")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without running it")
	return cmd
}
