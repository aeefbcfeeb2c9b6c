package search

// State is a point in a state space.
//
// ID is the state's identity: two states are equal if and only if their IDs
// are equal. The ID must be stable for the lifetime of the state and must not
// collide for logically distinct configurations.
type State interface {
	ID() string
}

// Operator transitions a state into a successor state.
//
// Operators may hold configuration (a direction, an increment) but never
// search-run state.
type Operator interface {
	// Name identifies the operator in solutions and reports.
	Name() string

	// Apply returns the successor of s, or false if the operator is not
	// applicable to s.
	Apply(s State) (State, bool)

	// Cost returns the cost of the transition from s to succ. Costs must be
	// non-negative and should be bounded below by a strictly positive
	// constant, otherwise cost-ordered strategies may loop at zero cost.
	Cost(s, succ State) float64
}

// Problem is the domain contract consumed by the engine.
type Problem interface {
	// Initial returns the initial state.
	Initial() State

	// Operators returns the ordered transition operators.
	Operators() []Operator

	// Goal reports whether s satisfies the goal. It must be pure and total
	// over reachable states.
	Goal(s State) bool
}

// GoalFunc is a goal predicate.
type GoalFunc func(s State) bool

// BasicProblem is an immutable Problem built from its three parts.
type BasicProblem struct {
	initial   State
	operators []Operator
	goal      GoalFunc
}

// NewProblem creates a Problem from an initial state, operators and a goal
// predicate. The operator slice is copied.
func NewProblem(initial State, operators []Operator, goal GoalFunc) *BasicProblem {
	ops := make([]Operator, len(operators))
	copy(ops, operators)
	return &BasicProblem{
		initial:   initial,
		operators: ops,
		goal:      goal,
	}
}

// Initial returns the initial state.
func (p *BasicProblem) Initial() State {
	return p.initial
}

// Operators returns the operators.
func (p *BasicProblem) Operators() []Operator {
	return p.operators
}

// Goal evaluates the goal predicate.
func (p *BasicProblem) Goal(s State) bool {
	return p.goal(s)
}

// validateProblem checks the parts of p that the engine relies on.
func validateProblem(p Problem) error {
	if p == nil {
		return NewError(ErrCodeInvalidProblem, "problem is nil", nil)
	}
	if p.Initial() == nil {
		return NewError(ErrCodeInvalidProblem, "problem has no initial state", nil)
	}
	if bp, ok := p.(*BasicProblem); ok && bp.goal == nil {
		return NewError(ErrCodeInvalidProblem, "problem has no goal predicate", nil)
	}
	return nil
}
