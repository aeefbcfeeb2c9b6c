package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/policy"
	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/stores"
)

// benchOutput is the structured form of a bench. policy check reads it back.
type benchOutput struct {
	Scenario string           `json:"scenario" yaml:"scenario"`
	Reports  []*runner.Report `json:"reports" yaml:"reports"`
	Policy   *policy.Summary  `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// policyFlags select policies and their parameters.
type policyFlags struct {
	paths       []string
	maxCost     float64
	maxDepth    int
	maxNodes    int
	maxPeakLive int
}

func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.paths, "policy", nil, "policy files or directories to load")
	cmd.Flags().Float64Var(&f.maxCost, "max-cost", 0, "budget policy: maximum solution cost")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0, "budget policy: maximum solution depth")
	cmd.Flags().IntVar(&f.maxNodes, "max-nodes", 0, "budget policy: maximum nodes created")
	cmd.Flags().IntVar(&f.maxPeakLive, "max-peak-live", 0, "budget policy: maximum live nodes")
}

func (f *policyFlags) params() map[string]interface{} {
	params := make(map[string]interface{})
	if f.maxCost > 0 {
		params["max_cost"] = f.maxCost
	}
	if f.maxDepth > 0 {
		params["max_depth"] = f.maxDepth
	}
	if f.maxNodes > 0 {
		params["max_nodes"] = f.maxNodes
	}
	if f.maxPeakLive > 0 {
		params["max_peak_live"] = f.maxPeakLive
	}
	return params
}

// engine builds a policy engine with the built-in policies and those
// loaded from the flag paths.
func (f *policyFlags) engine(cmd *cobra.Command, opts ...policy.EngineOption) (*policy.Engine, error) {
	opts = append(opts, policy.WithParams(f.params()))
	eng, err := policy.NewEngine(log.Logger, opts...)
	if err != nil {
		return nil, err
	}
	if len(f.paths) > 0 {
		if err := eng.LoadPolicies(cmd.Context(), f.paths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func newBenchCommand() *cobra.Command {
	var (
		parallel int
		dbPath   string
		enforce  bool
		tf       telemetryFlags
		pf       policyFlags
	)

	cmd := &cobra.Command{
		Use:   "bench <scenario>",
		Short: "Compare every strategy of a scenario",
		Long: `Run every strategy listed in a scenario and compare the results.

Each strategy runs in its own searcher on a bounded worker pool. The
reports are judged by the built-in policies plus any loaded with --policy;
with --enforce a blocked report fails the command.`,
		Example: `  # Compare strategies
  statesearch bench scenarios/counting.yaml

  # Enforce a cost budget and keep the results
  statesearch bench scenarios/grid.yaml --max-cost 15 --enforce --db statesearch.db

  # Expose Prometheus metrics while benchmarking
  statesearch bench scenarios/jugs.yaml --metrics-addr :9090 --parallel 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inst, err := loadInstance(ctx, args[0])
			if err != nil {
				return err
			}

			tel, err := tf.start(ctx, cmd)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)
			ctx = tel.WithContext(ctx)

			eng, err := pf.engine(cmd, policy.WithTelemetry(tel), policy.WithEnvironment(tf.environment))
			if err != nil {
				return err
			}

			log.Debug().
				Str("scenario", inst.Scenario.Name).
				Int("strategies", len(inst.Scenario.Strategies)).
				Int("parallel", parallel).
				Msg("Running bench")

			r := runner.New(
				runner.WithParallelism(parallel),
				runner.WithLogger(tel.Logger.Zerolog()),
			)
			reports, err := r.Bench(ctx, inst)
			if err != nil {
				return err
			}

			summary, err := eng.EvaluateReports(ctx, reports)
			if err != nil {
				return err
			}

			if dbPath != "" {
				if err := saveBench(cmd, dbPath, reports, summary); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				if err := writeStructured(w, benchOutput{Scenario: inst.Scenario.Name, Reports: reports, Policy: summary}); err != nil {
					return err
				}
			} else {
				if err := runner.WriteTable(w, reports); err != nil {
					return err
				}
				if err := writeViolations(w, summary); err != nil {
					return err
				}
			}

			if enforce && !summary.Passed() {
				return fmt.Errorf("policy check failed: %d of %d runs blocked", summary.Blocked, len(summary.Results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "maximum concurrent runs (default: GOMAXPROCS)")
	cmd.Flags().StringVar(&dbPath, "db", "", "record the runs in this history database")
	cmd.Flags().BoolVar(&enforce, "enforce", false, "fail when a policy blocks a run")
	tf.register(cmd)
	pf.register(cmd)

	return cmd
}

func saveBench(cmd *cobra.Command, dbPath string, reports []*runner.Report, summary *policy.Summary) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveReports(ctx, reports); err != nil {
		return err
	}
	return store.SaveVerdicts(ctx, verdicts(summary))
}

// verdicts flattens a policy summary into history rows.
func verdicts(summary *policy.Summary) []stores.Verdict {
	var out []stores.Verdict
	for _, result := range summary.Results {
		for _, v := range result.Violations {
			out = append(out, stores.Verdict{
				RunID:      v.RunID,
				Policy:     v.Policy,
				Severity:   string(v.Severity),
				Message:    v.Message,
				DetectedAt: v.DetectedAt,
			})
		}
	}
	return out
}

// writeViolations prints the policy findings below the bench table.
func writeViolations(w io.Writer, summary *policy.Summary) error {
	if summary.TotalViolations == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tPOLICY\tSEVERITY\tMESSAGE")
	for _, result := range summary.Results {
		for _, v := range result.Violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Strategy, v.Policy, v.Severity, v.Message)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d violations, %d of %d runs blocked\n", summary.TotalViolations, summary.Blocked, len(summary.Results))
	return nil
}
