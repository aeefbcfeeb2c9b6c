package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/search"
)

var errStepLimit = errors.New("step limit reached")

// traceStep is one line of a trace.
type traceStep struct {
	Step  int     `json:"step" yaml:"step"`
	State string  `json:"state" yaml:"state"`
	Depth int     `json:"depth" yaml:"depth"`
	Cost  float64 `json:"cost" yaml:"cost"`
	Kept  int     `json:"kept" yaml:"kept"`
	Open  int     `json:"open" yaml:"open"`
	Goal  bool    `json:"goal" yaml:"goal"`
}

// traceOutput is the structured form of a trace.
type traceOutput struct {
	Steps   []traceStep    `json:"steps" yaml:"steps"`
	Report  *runner.Report `json:"report,omitempty" yaml:"report,omitempty"`
	Stopped bool           `json:"stopped,omitempty" yaml:"stopped,omitempty"`
}

func newTraceCommand() *cobra.Command {
	var (
		strategy string
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "trace <scenario>",
		Short: "Print every step of a search",
		Long: `Run one strategy step by step and print each node taken from the
frontier, the number of successors kept and the frontier size.

Iterative deepening runs several searches and cannot be traced.`,
		Example: `  # Trace breadth-first search on the counting scenario
  statesearch trace scenarios/counting.yaml --strategy breadth-first

  # Stop after 50 steps
  statesearch trace scenarios/maze.cue -s greedy --max-steps 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inst, err := loadInstance(ctx, args[0])
			if err != nil {
				return err
			}
			cfg, err := strategyConfig(inst, strategy)
			if err != nil {
				return err
			}

			var out traceOutput
			report, _, err := runner.New().Trace(ctx, inst, cfg, func(step search.StepResult, stats search.Stats, open int) error {
				if step.Node == nil {
					return nil
				}
				out.Steps = append(out.Steps, traceStep{
					Step:  stats.Steps,
					State: step.Node.State().ID(),
					Depth: step.Node.Depth(),
					Cost:  step.Node.Cost(),
					Kept:  step.Kept,
					Open:  open,
					Goal:  step.Goal,
				})
				if maxSteps > 0 && stats.Steps >= maxSteps && !step.Done {
					return errStepLimit
				}
				return nil
			})
			switch {
			case errors.Is(err, errStepLimit):
				out.Stopped = true
			case err != nil:
				return err
			default:
				out.Report = report
			}

			w := cmd.OutOrStdout()
			if outputFormat != formatTable {
				return writeStructured(w, out)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tDEPTH\tCOST\tKEPT\tOPEN\tSTATE")
			for _, s := range out.Steps {
				state := s.State
				if s.Goal {
					state += "  (goal)"
				}
				fmt.Fprintf(tw, "%d\t%d\t%g\t%d\t%d\t%s\n", s.Step, s.Depth, s.Cost, s.Kept, s.Open, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if out.Stopped {
				fmt.Fprintf(w, "stopped after %d steps\n", len(out.Steps))
				return nil
			}
			fmt.Fprintln(w, report.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "strategy to trace (default: first in the scenario)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "stop after this many steps (0: no limit)")

	return cmd
}
