package plan

import (
	"strings"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Plan is a sequence of actions consumed one state at a time. It is not
// safe for concurrent use.
type Plan struct {
	steps []search.Step
	cost  float64
	goal  search.State
}

func newPlan(sol *search.Solution) *Plan {
	steps := make([]search.Step, sol.Len())
	copy(steps, sol.Steps())
	return &Plan{steps: steps, cost: sol.Cost(), goal: sol.Goal()}
}

// NextAction returns the action to take in state s. It returns false when
// the plan is exhausted or s is not the state the plan expects next, in
// which case the caller should re-plan.
func (p *Plan) NextAction(s search.State) (search.Operator, bool) {
	if p.Done() || s == nil || p.steps[0].State.ID() != s.ID() {
		return nil, false
	}
	op := p.steps[0].Operator
	p.steps = p.steps[1:]
	return op, true
}

// Len returns the number of remaining actions.
func (p *Plan) Len() int {
	return len(p.steps)
}

// Done reports whether every action has been taken.
func (p *Plan) Done() bool {
	return len(p.steps) == 0
}

// Cost returns the total cost of the plan as found.
func (p *Plan) Cost() float64 {
	return p.cost
}

// Goal returns the state the plan leads to.
func (p *Plan) Goal() search.State {
	return p.goal
}

// Steps returns the remaining steps.
func (p *Plan) Steps() []search.Step {
	return p.steps
}

// String lists the remaining actions.
func (p *Plan) String() string {
	names := make([]string, len(p.steps))
	for i, st := range p.steps {
		names[i] = st.Operator.Name()
	}
	return strings.Join(names, " -> ")
}
