package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/statesearch/pkg/policy"
	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/stores"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy management and checks",
		Long: `Manage the Rego policies that judge run reports.

Built-in policies are always loaded; custom policies come from .rego files
or JSON/YAML policy definitions.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCheckCommand())
	cmd.AddCommand(newPolicyWatchCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var pf policyFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in and loaded policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := pf.engine(cmd)
			if err != nil {
				return err
			}
			policies := eng.ListPolicies()

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, policies)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tBUILTIN\tDESCRIPTION")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", p.Name, p.Severity, p.Enabled, p.Builtin, p.Description)
			}
			return tw.Flush()
		},
	}

	pf.register(cmd)
	return cmd
}

func newPolicyCheckCommand() *cobra.Command {
	var (
		pf       policyFlags
		dbPath   string
		scenario string
	)

	cmd := &cobra.Command{
		Use:   "check [bench-output]",
		Short: "Judge recorded reports against the policies",
		Long: `Judge reports against the policies and fail if any run is blocked.

Reports come either from a file written by "bench -o json" or "bench -o yaml",
or from the history database.`,
		Example: `  # Check a saved bench against a cost budget
  statesearch bench scenarios/grid.yaml -o json > bench.json
  statesearch policy check bench.json --max-cost 12

  # Check the recorded runs of a scenario with custom policies
  statesearch policy check --db statesearch.db --scenario grid --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				reports []*runner.Report
				err     error
			)
			switch {
			case len(args) == 1:
				reports, err = readBenchOutput(args[0])
			case dbPath != "":
				reports, err = readHistory(cmd, dbPath, scenario)
			default:
				return fmt.Errorf("either a bench output file or --db is required")
			}
			if err != nil {
				return err
			}

			eng, err := pf.engine(cmd)
			if err != nil {
				return err
			}
			summary, err := eng.EvaluateReports(ctx, reports)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				if err := writeStructured(w, summary); err != nil {
					return err
				}
			} else {
				for _, r := range summary.Results {
					verdict := "allowed"
					if !r.Allowed {
						verdict = "blocked"
					}
					fmt.Fprintf(w, "%-8s %s (%s)\n", verdict, r.Strategy, r.RunID)
				}
				if err := writeViolations(w, summary); err != nil {
					return err
				}
			}

			if !summary.Passed() {
				return fmt.Errorf("policy check failed: %d of %d runs blocked", summary.Blocked, len(summary.Results))
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&dbPath, "db", "", "read reports from this history database")
	cmd.Flags().StringVar(&scenario, "scenario", "", "with --db, only reports of this scenario")

	return cmd
}

// readBenchOutput reads a bench written as JSON or YAML. Durations are
// integers in JSON and strings in YAML, so each is decoded natively.
func readBenchOutput(path string) ([]*runner.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var out benchOutput
	if json.Valid(data) {
		err = json.Unmarshal(data, &out)
	} else {
		err = yaml.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(out.Reports) == 0 {
		return nil, fmt.Errorf("%s contains no reports", path)
	}
	return out.Reports, nil
}

func readHistory(cmd *cobra.Command, dbPath, scenario string) ([]*runner.Report, error) {
	ctx := cmd.Context()
	store, err := openStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	reports, err := store.ListReports(ctx, stores.ReportFilter{Scenario: scenario})
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no recorded reports")
	}
	return reports, nil
}

func newPolicyWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Recompile policies whenever their files change",
		Long: `Watch policy files and directories and recompile them on every change,
reporting compile errors as they happen. Stops on interrupt.`,
		Example: `  # Edit policies with live feedback
  statesearch policy watch ./policies`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			eng, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if err := eng.LoadPolicies(ctx, args); err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
			}

			loader := policy.NewLoader(log.Logger)
			err = loader.Watch(ctx, args, func(policies []policy.Policy) error {
				if err := eng.ReplacePolicies(policies); err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					return err
				}
				fmt.Fprintf(w, "reloaded %d policies\n", len(policies))
				return nil
			})
			if err != nil {
				return err
			}
			defer loader.StopWatching()

			<-ctx.Done()
			return nil
		},
	}

	return cmd
}
