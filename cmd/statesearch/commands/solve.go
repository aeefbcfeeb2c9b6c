package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/search"
)

// solveOutput is the structured form of a solve.
type solveOutput struct {
	Report *runner.Report `json:"report" yaml:"report"`
	Render string         `json:"render,omitempty" yaml:"render,omitempty"`
}

func newSolveCommand() *cobra.Command {
	var (
		strategy string
		dbPath   string
		follow   bool
		tf       telemetryFlags
	)

	cmd := &cobra.Command{
		Use:   "solve <scenario>",
		Short: "Solve a scenario with one strategy",
		Long: `Solve a scenario with a single strategy and print the solution.

The strategy defaults to the first one listed in the scenario. Grid
solutions are drawn on the map.

With --plan, scenarios that have a single goal state are solved by the A*
planner instead, and the resulting plan is followed action by action from
the initial state.`,
		Example: `  # Solve with the scenario's first strategy
  statesearch solve scenarios/counting.yaml

  # Solve with A* and print JSON
  statesearch solve scenarios/maze.cue --strategy astar -o json

  # Record the run in the history database
  statesearch solve scenarios/grid.yaml --db statesearch.db

  # Plan a route across a grid and follow it
  statesearch solve scenarios/grid.yaml --plan`,
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

			tel, err := tf.start(ctx, cmd)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)
			ctx = tel.WithContext(ctx)

			if follow {
				out, err := followPlan(ctx, inst, tel.Logger.Zerolog())
				if err != nil {
					return err
				}
				return printPlan(cmd, out)
			}

			log.Debug().
				Str("scenario", inst.Scenario.Name).
				Str("strategy", cfg.Name).
				Msg("Solving scenario")

			r := runner.New(runner.WithLogger(tel.Logger.Zerolog()))
			report, sol, err := r.Run(ctx, inst, cfg)
			if err != nil {
				return err
			}

			if dbPath != "" {
				store, err := openStore(ctx, dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.SaveReport(ctx, report); err != nil {
					return err
				}
			}

			if err := printSolve(cmd, report, sol, inst.Render(sol)); err != nil {
				return err
			}
			if report.Error != "" {
				return fmt.Errorf("%s failed: %s", report.Strategy, report.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "strategy to run (default: first in the scenario)")
	cmd.Flags().StringVar(&dbPath, "db", "", "record the run in this history database")
	cmd.Flags().BoolVar(&follow, "plan", false, "plan towards the goal state with A* and follow the plan")
	tf.register(cmd)

	return cmd
}

func printSolve(cmd *cobra.Command, report *runner.Report, sol *search.Solution, render string) error {
	w := cmd.OutOrStdout()
	if outputFormat != formatTable {
		return writeStructured(w, solveOutput{Report: report, Render: render})
	}

	fmt.Fprintln(w, report.String())
	if sol != nil && verbose {
		for i, step := range sol.Steps() {
			fmt.Fprintf(w, "  %3d  %-12s %s\n", i+1, step.Operator.Name(), step.State.ID())
		}
		fmt.Fprintf(w, "  goal %s\n", sol.Goal().ID())
	}
	if render != "" {
		fmt.Fprintln(w, strings.TrimRight(render, "\n"))
	}
	return nil
}
