package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `Inspect the runs recorded with --db by solve and bench.

The history is a SQLite database; its schema is migrated on open.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "statesearch.db", "history database path")

	cmd.AddCommand(newHistoryListCommand(&dbPath))
	cmd.AddCommand(newHistoryShowCommand(&dbPath))
	cmd.AddCommand(newHistorySummaryCommand(&dbPath))

	return cmd
}

func newHistoryListCommand(dbPath *string) *cobra.Command {
	var filter stores.ReportFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Example: `  # Last 20 runs
  statesearch history list

  # Failed A* runs of the maze scenario
  statesearch history list --scenario maze --strategy astar --outcome failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.ListReports(ctx, filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, reports)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSCENARIO\tSTRATEGY\tOUTCOME\tCOST\tCREATED")
			for _, r := range reports {
				cost := "-"
				if r.Found {
					cost = fmt.Sprintf("%g", r.Cost)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					r.ID, r.StartedAt.Format(time.DateTime), r.Scenario, r.Strategy, r.Outcome(), cost, r.Stats.NodesCreated)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Scenario, "scenario", "", "only runs of this scenario")
	cmd.Flags().StringVar(&filter.Strategy, "strategy", "", "only runs of this strategy")
	cmd.Flags().StringVar(&filter.Outcome, "outcome", "", "only runs with this outcome (solved, exhausted, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of runs (0: all)")

	return cmd
}

// runDetail is the structured form of history show.
type runDetail struct {
	Report   *runner.Report   `json:"report" yaml:"report"`
	Verdicts []stores.Verdict `json:"verdicts" yaml:"verdicts"`
}

func newHistoryShowCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its policy verdicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			verdicts, err := store.ListVerdicts(ctx, report.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, runDetail{Report: report, Verdicts: verdicts})
			}

			fmt.Fprintf(w, "run %s: scenario %s, started %s\n", report.ID, report.Scenario, report.StartedAt.Format(time.RFC3339))
			fmt.Fprintln(w, report.String())
			st := report.Stats
			fmt.Fprintf(w, "created %d, expanded %d, discarded %d, peak %d, explored %d, iterations %d, search %s\n",
				st.NodesCreated, st.Expanded, st.Discarded, st.PeakLive, st.ExploredSize, st.Iterations, st.Duration)
			for _, v := range verdicts {
				fmt.Fprintf(w, "%s [%s] %s\n", v.Policy, v.Severity, v.Message)
			}
			return nil
		},
	}
}

func newHistorySummaryCommand(dbPath *string) *cobra.Command {
	var scenario string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate recorded runs per strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.Summarize(ctx, scenario)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, summaries)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STRATEGY\tRUNS\tSOLVED\tFAILED\tBEST COST\tAVG CREATED\tAVG TIME")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%g\t%.1f\t%s\n",
					s.Strategy, s.Runs, s.Solved, s.Failed, s.BestCost, s.AvgCreated, s.AvgDuration.Round(time.Microsecond))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "only runs of this scenario")

	return cmd
}
