package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	verbose      bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statesearch",
		Short: "statesearch - state-space search engine",
		Long: `statesearch solves state-space search problems described in scenario
files and compares search strategies on them.

Features:
  - Scenarios in YAML or CUE, problems from built-in domains or Starlark
  - Uninformed, cost-ordered and heuristic strategies
  - Benchmarks across strategies with per-run node counters
  - Step-by-step traces of a single search
  - OPA/Rego policy gates and a SQLite run history
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case formatTable, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", outputFormat)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newSolveCommand())
	rootCmd.AddCommand(newBenchCommand())
	rootCmd.AddCommand(newTraceCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newStrategiesCommand())

	return rootCmd
}
