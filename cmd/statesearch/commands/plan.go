package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statesearch/pkg/config"
	"github.com/openfroyo/statesearch/pkg/plan"
	"github.com/openfroyo/statesearch/pkg/search"
)

// planOutput is the structured form of a followed plan.
type planOutput struct {
	Scenario string     `json:"scenario" yaml:"scenario"`
	Goal     string     `json:"goal" yaml:"goal"`
	Cost     float64    `json:"cost" yaml:"cost"`
	Created  int        `json:"nodes_created" yaml:"nodes_created"`
	Steps    []planStep `json:"steps" yaml:"steps"`
	Reached  bool       `json:"reached" yaml:"reached"`
}

// planStep is one action taken while following a plan.
type planStep struct {
	Step   int    `json:"step" yaml:"step"`
	State  string `json:"state" yaml:"state"`
	Action string `json:"action" yaml:"action"`
}

// problemModel exposes a problem's initial state as the agent's position.
type problemModel struct {
	state     search.State
	operators []search.Operator
}

func (m *problemModel) State() search.State          { return m.state }
func (m *problemModel) Operators() []search.Operator { return m.operators }

// followPlan plans from the scenario's initial state to its goal and walks
// the plan one action at a time.
func followPlan(ctx context.Context, inst *config.Instance, logger zerolog.Logger) (*planOutput, error) {
	goal, ok := inst.Goal()
	if !ok {
		return nil, fmt.Errorf("scenario %s has no single goal state to plan towards", inst.Scenario.Name)
	}

	model := &problemModel{state: inst.Problem.Initial(), operators: inst.Problem.Operators()}
	planner := plan.NewPlanner(inst.GoalHeuristic, logger)
	p, err := planner.Plan(ctx, model, goal)
	if err != nil {
		return nil, err
	}

	out := &planOutput{
		Scenario: inst.Scenario.Name,
		Goal:     goal.ID(),
		Created:  planner.Stats().NodesCreated,
	}
	if p == nil {
		return out, nil
	}
	out.Cost = p.Cost()

	for !p.Done() {
		op, ok := p.NextAction(model.state)
		if !ok {
			return nil, fmt.Errorf("plan diverged at %s", model.state.ID())
		}
		next, ok := op.Apply(model.state)
		if !ok {
			return nil, fmt.Errorf("action %s is not applicable in %s", op.Name(), model.state.ID())
		}
		out.Steps = append(out.Steps, planStep{
			Step:   len(out.Steps) + 1,
			State:  model.state.ID(),
			Action: op.Name(),
		})
		model.state = next
	}
	out.Reached = model.state.ID() == goal.ID()
	return out, nil
}

func printPlan(cmd *cobra.Command, out *planOutput) error {
	w := cmd.OutOrStdout()
	if outputFormat != formatTable {
		return writeStructured(w, out)
	}

	if !out.Reached {
		fmt.Fprintf(w, "%s: no plan reaches %s (%d nodes)\n", out.Scenario, out.Goal, out.Created)
		return nil
	}
	fmt.Fprintf(w, "%s: plan to %s, %d actions, cost %g\n", out.Scenario, out.Goal, len(out.Steps), out.Cost)
	for _, st := range out.Steps {
		fmt.Fprintf(w, "  %3d  %-12s %s\n", st.Step, st.Action, st.State)
	}
	return nil
}
