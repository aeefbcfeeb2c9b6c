package search

// Evaluator computes the priority of a node. Lower priorities are removed
// first by a PriorityFrontier. Evaluators must be pure and depend only on the
// node's accumulated cost and, optionally, a heuristic over its state.
type Evaluator interface {
	Priority(n *Node) float64
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(n *Node) float64

// Priority calls f(n).
func (f EvaluatorFunc) Priority(n *Node) float64 {
	return f(n)
}

// Heuristic estimates the remaining cost from a state to the nearest goal.
// Estimates must be non-negative.
//
// A* is optimal under tree search when the heuristic is admissible (never
// overestimates). Under graph search with duplicate elimination it is
// optimal when the heuristic is also consistent: h(s) <= cost(s, s') + h(s')
// for every transition. Neither property can be checked by the engine.
type Heuristic interface {
	Estimate(s State) float64
}

// HeuristicFunc adapts a function to the Heuristic interface.
type HeuristicFunc func(s State) float64

// Estimate calls f(s).
func (f HeuristicFunc) Estimate(s State) float64 {
	return f(s)
}

// ZeroHeuristic estimates zero everywhere. A* with ZeroHeuristic behaves as
// uniform-cost search.
var ZeroHeuristic Heuristic = HeuristicFunc(func(State) float64 { return 0 })

// HeuristicEvaluator is an evaluator whose heuristic is supplied at search
// time, so one evaluator can serve problems with different goals.
type HeuristicEvaluator interface {
	Evaluator
	SetHeuristic(h Heuristic)
	Heuristic() Heuristic
}

// CostEvaluator orders nodes by accumulated cost g(n) (uniform-cost search).
type CostEvaluator struct{}

// Priority returns g(n).
func (CostEvaluator) Priority(n *Node) float64 {
	return n.Cost()
}

// heuristicHolder stores the heuristic shared by the informed evaluators.
type heuristicHolder struct {
	h Heuristic
}

func (hh *heuristicHolder) SetHeuristic(h Heuristic) { hh.h = h }
func (hh *heuristicHolder) Heuristic() Heuristic     { return hh.h }

// GreedyEvaluator orders nodes by h(n) alone (greedy best-first search).
// It ignores accumulated cost and does not guarantee optimal solutions.
type GreedyEvaluator struct {
	heuristicHolder
}

// NewGreedyEvaluator creates a greedy evaluator with an optional initial
// heuristic.
func NewGreedyEvaluator(h Heuristic) *GreedyEvaluator {
	return &GreedyEvaluator{heuristicHolder{h: h}}
}

// Priority returns h(n).
func (e *GreedyEvaluator) Priority(n *Node) float64 {
	return e.h.Estimate(n.State())
}

// AStarEvaluator orders nodes by f(n) = g(n) + h(n).
type AStarEvaluator struct {
	heuristicHolder
}

// NewAStarEvaluator creates an A* evaluator with an optional initial
// heuristic.
func NewAStarEvaluator(h Heuristic) *AStarEvaluator {
	return &AStarEvaluator{heuristicHolder{h: h}}
}

// Priority returns g(n) + h(n).
func (e *AStarEvaluator) Priority(n *Node) float64 {
	return n.Cost() + e.h.Estimate(n.State())
}
