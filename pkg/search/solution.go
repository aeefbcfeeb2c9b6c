package search

import (
	"fmt"
	"strings"
)

// Step is one move of a solution: the state before the move and the
// operator applied to it.
type Step struct {
	State    State
	Operator Operator
}

// Solution is the path from the initial state to a goal state.
type Solution struct {
	goal  *Node
	steps []Step
}

// NewSolution reconstructs the solution ending at goal by walking parent
// links back to the root.
func NewSolution(goal *Node) *Solution {
	steps := make([]Step, goal.Depth())
	for n := goal; n.Parent() != nil; n = n.Parent() {
		steps[n.Depth()-1] = Step{
			State:    n.Parent().State(),
			Operator: n.Operator(),
		}
	}
	return &Solution{goal: goal, steps: steps}
}

// Steps returns the ordered steps. The slice must not be modified.
func (s *Solution) Steps() []Step {
	return s.steps
}

// Len returns the number of steps.
func (s *Solution) Len() int {
	return len(s.steps)
}

// Dimension returns the depth of the goal node.
func (s *Solution) Dimension() int {
	return s.goal.Depth()
}

// Cost returns the accumulated cost of the goal node.
func (s *Solution) Cost() float64 {
	return s.goal.Cost()
}

// Goal returns the goal state reached.
func (s *Solution) Goal() State {
	return s.goal.State()
}

// Node returns the goal node.
func (s *Solution) Node() *Node {
	return s.goal
}

// Actions returns the operator names in order.
func (s *Solution) Actions() []string {
	actions := make([]string, len(s.steps))
	for i, step := range s.steps {
		actions[i] = step.Operator.Name()
	}
	return actions
}

// Replay applies the solution's operators from initial and returns the
// final state. It fails if an operator is inapplicable along the way.
func (s *Solution) Replay(initial State) (State, error) {
	cur := initial
	for i, step := range s.steps {
		next, ok := step.Operator.Apply(cur)
		if !ok || next == nil {
			return nil, NewError(ErrCodeInapplicable,
				fmt.Sprintf("step %d: operator %s not applicable to state %s", i, step.Operator.Name(), cur.ID()),
				nil,
			).WithDetail("step", i)
		}
		cur = next
	}
	return cur, nil
}

// String implements fmt.Stringer.
func (s *Solution) String() string {
	return fmt.Sprintf("solution(dimension=%d, cost=%g, actions=[%s])",
		s.Dimension(), s.Cost(), strings.Join(s.Actions(), " "))
}
