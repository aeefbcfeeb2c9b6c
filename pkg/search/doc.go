// Package search provides a generic state-space search engine.
//
// # Overview
//
// A Problem supplies an initial State, an ordered list of Operators and a
// goal predicate. An Engine explores the implicit graph the operators
// describe and returns the Solution reaching a goal, or nil when the
// reachable space is exhausted. No solution is a normal outcome and never an
// error.
//
// Strategies are composed from two extension points rather than written one
// by one:
//
//   - the Frontier orders open nodes (FIFOFrontier, LIFOFrontier,
//     PriorityFrontier)
//   - the Evaluator computes the priority used by a PriorityFrontier
//     (CostEvaluator, GreedyEvaluator, AStarEvaluator)
//
// A KeepPolicy turns tree search into graph search. KeepUnvisited never
// re-enters a known state; KeepCheaper re-enters it only when reached more
// cheaply, which is what the best-first family uses.
//
// # Strategies
//
//	BreadthFirst           FIFO tree search, depth-optimal
//	DepthFirst             LIFO tree search
//	DepthLimited           LIFO tree search that stops expanding at a depth bound
//	NewIterativeDeepening  depth-limited passes with growing bounds
//	GraphBreadthFirst      FIFO graph search
//	UniformCost            priority g(n), cost-optimal
//	Greedy                 priority h(n)
//	AStar                  priority g(n)+h(n)
//
// Greedy and AStar take their Heuristic per search, so one InformedSearch
// serves problems with different goals. A* is optimal when the heuristic is
// admissible, and under graph search when it is also consistent. The engine
// cannot verify either property.
//
// # Runs and statistics
//
// Every search allocates a fresh frontier and explored table. Stats are
// scoped to a single run and returned by Stats after the search. Start
// returns a Run that can be driven one Step at a time; the context passed
// to Search or Start is checked before every step.
//
// Lifecycle notifications go to an Observer, which is how the telemetry
// package logs, traces and counts searches. The engine itself never logs.
//
// # Example
//
//	p := search.NewProblem(start, ops, isGoal)
//	sol, err := search.AStar().Search(ctx, p, heuristic)
//	if err != nil {
//	    return err
//	}
//	if sol == nil {
//	    // no solution
//	}
package search
