package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func modulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect the module graph",
	}
	cmd.AddCommand(modulesListCmd(), modulesGraphCmd(), modulesValidateCmd())
	return cmd
}

func modulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every module with its coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := newTable(cmd.OutOrStdout(), "Path", "Kind", "Coordinates", "Dir")
			for _, m := range graph.Modules() {
				table.Append([]string{m.Path, string(m.Kind), m.Coordinates(), m.Dir})
			}
			table.Render()
			return nil
		},
	}
}

func modulesGraphCmd() *cobra.Command {
	var dot bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print module dependency edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if dot {
				fmt.Fprintln(out, "digraph modules {")
			}
			for _, m := range graph.Modules() {
				if len(m.Dependencies) == 0 && !dot {
					fmt.Fprintln(out, m.Path)
					continue
				}
				for _, dep := range m.Dependencies {
					if dot {
						fmt.Fprintf(out, "  %q -> %q;\n", m.Path, dep)
					} else {
						fmt.Fprintf(out, "%s -> %s\n", m.Path, dep)
					}
				}
			}
			if dot {
				fmt.Fprintln(out, "}")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "emit Graphviz DOT")
	return cmd
}

func modulesValidateCmd() *cobra.Command {
	var skipImports bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the graph and that Go imports follow it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := graph.Validate(); err != nil {
				return err
			}
			if !skipImports {
				if err := graph.CheckImports(repoRoot); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d modules OK\n", len(graph.Modules()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipImports, "skip-imports", false, "only validate the declared graph")
	return cmd
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

// newTable returns a borderless, tab-padded table.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}
