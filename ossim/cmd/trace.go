package cmd

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/tracing"
	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	query := tracing.TaskQuery{}

	cmd := &cobra.Command{
		Use:   "trace FILE.sqlite3",
		Short: "Print the translations recorded with --trace.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query.EnableTimeRange = cmd.Flags().Changed("from") ||
				cmd.Flags().Changed("to")

			return printTrace(cmd, args[0], query)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&query.Kind, "kind", "", "select tasks of a kind")
	flags.StringVar(&query.What, "what", "",
		"select tasks that do one thing, such as hit or page_fault")
	flags.StringVar(&query.Location, "location", "",
		"select tasks of one component")
	flags.Float64Var(&query.StartTime, "from", 0,
		"select tasks that end after this simulated second")
	flags.Float64Var(&query.EndTime, "to", 1e12,
		"select tasks that start before this simulated second")
	flags.IntVar(&query.Limit, "limit", 100,
		"maximum number of tasks to print, 0 for all")

	return cmd
}

func printTrace(
	cmd *cobra.Command,
	filename string,
	query tracing.TaskQuery,
) error {
	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()

	tables, err := reader.StoredTables(ctx)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	if !slices.Contains(tables, tracing.TraceTableName) {
		return fmt.Errorf("trace: %s was recorded without --trace", filename)
	}

	tasks, total, err := tracing.ListTasks(ctx, reader, query)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tKind\tWhat\tLocation\tStart\tEnd\tSteps")

	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.9f\t%.9f\t%s\n",
			t.ID, t.Kind, t.What, t.Location, t.StartTime, t.EndTime, t.Steps)
	}

	err = tw.Flush()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d tasks\n", len(tasks), total)

	return nil
}
