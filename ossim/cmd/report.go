package cmd

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/kernel"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	limit   int
	orderBy string
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report FILE.sqlite3",
		Short: "Print the statistics recorded by a run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.report(cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 0,
		"maximum number of processes to print, 0 for all")
	cmd.Flags().StringVar(&opts.orderBy, "order-by", "PID",
		"column that orders the processes")

	return cmd
}

func (o *reportOptions) report(cmd *cobra.Command, filename string) error {
	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()

	tables, err := reader.StoredTables(ctx)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	for _, t := range []string{kernel.RunSummaryTable, kernel.ProcessStatsTable} {
		if !slices.Contains(tables, t) {
			return fmt.Errorf("report: %s has no table %s", filename, t)
		}
	}

	reader.MapTable(kernel.RunSummaryTable, kernel.RunSummaryEntry{})
	reader.MapTable(kernel.ProcessStatsTable, kernel.ProcessStatsEntry{})

	runs, _, err := reader.Query(ctx, kernel.RunSummaryTable,
		datarecording.QueryParams{})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	procs, total, err := reader.Query(ctx, kernel.ProcessStatsTable,
		datarecording.QueryParams{
			OrderBy: o.orderBy,
			Limit:   o.limit,
		})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	out := cmd.OutOrStdout()

	for _, r := range runs {
		printRunSummary(out, r.(*kernel.RunSummaryEntry))
	}

	fmt.Fprintf(out, "\n%d of %d terminated processes:\n", len(procs), total)

	return printProcesses(out, procs)
}

func printRunSummary(w io.Writer, r *kernel.RunSummaryEntry) {
	fmt.Fprintf(w, "Run %s stopped (%s) after %.6f simulated seconds\n",
		r.RunID, r.StopReason, r.SimTime)
	fmt.Fprintf(w, "  processes launched:      %d (%d still active)\n",
		r.Launched, r.Active)
	fmt.Fprintf(w, "  memory accesses:         %d\n", r.Accesses)
	fmt.Fprintf(w, "  page faults:             %d\n", r.Faults)
	fmt.Fprintf(w, "  faults per access:       %.4f\n", r.FaultsPerAccess)
	fmt.Fprintf(w, "  accesses per sim second: %.2f\n", r.AccessesPerSimSecond)
	fmt.Fprintf(w, "  wall time:               %.3fs\n", r.WallTime)
	fmt.Fprintf(w, "  dropped messages:        %d\n", r.Dropped)
}

func printProcesses(w io.Writer, procs []any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "Slot\tPID\tAccesses\tFaults\tFaultRate\tStart\tEnd\t")

	for _, p := range procs {
		e := p.(*kernel.ProcessStatsEntry)
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.4f\t%.6f\t%.6f\t\n",
			e.Slot, e.PID, e.Accesses, e.Faults, e.FaultRate,
			e.StartTime, e.EndTime)
	}

	return tw.Flush()
}
