package search

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Unbounded disables the depth limit.
const Unbounded = -1

const defaultEngineName = "tree-search"

// Searcher is implemented by every search strategy.
type Searcher interface {
	// Name identifies the strategy.
	Name() string

	// Search looks for a path from the problem's initial state to a goal.
	// It returns a nil solution and a nil error when no solution exists.
	Search(ctx context.Context, p Problem) (*Solution, error)

	// Stats returns the counters of the most recent search.
	Stats() Stats
}

// Engine is the generic search loop: it removes a node from the frontier,
// tests it against the goal, and memorizes its successors.
//
// The frontier decides the exploration order and the optional KeepPolicy
// turns tree search into graph search. Every search allocates a fresh
// frontier and explored table, so nothing leaks between runs. An Engine is
// not safe for concurrent use; use one engine per goroutine.
type Engine struct {
	name        string
	newFrontier func() Frontier
	keep        KeepPolicy
	depthLimit  int
	observer    Observer
	last        Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithName sets the strategy name reported in stats, errors and telemetry.
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithKeepPolicy enables graph search with the given duplicate policy.
func WithKeepPolicy(p KeepPolicy) Option {
	return func(e *Engine) {
		e.keep = p
	}
}

// WithDepthLimit stops expansion of nodes at depth >= limit. A negative
// limit disables the bound.
func WithDepthLimit(limit int) Option {
	return func(e *Engine) {
		if limit < 0 {
			limit = Unbounded
		}
		e.depthLimit = limit
	}
}

// WithObserver registers the observer notified of the engine's searches.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an engine that draws a fresh frontier from newFrontier at the
// start of every search.
func New(newFrontier func() Frontier, opts ...Option) *Engine {
	e := &Engine{
		name:        defaultEngineName,
		newFrontier: newFrontier,
		depthLimit:  Unbounded,
		observer:    NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the strategy name.
func (e *Engine) Name() string {
	return e.name
}

// DepthLimit returns the configured depth bound, or Unbounded.
func (e *Engine) DepthLimit() int {
	return e.depthLimit
}

// Stats returns the counters of the most recently finished search.
func (e *Engine) Stats() Stats {
	return e.last
}

// Search runs a search to completion.
func (e *Engine) Search(ctx context.Context, p Problem) (*Solution, error) {
	run, err := e.Start(ctx, p)
	if err != nil {
		return nil, err
	}
	return run.Complete()
}

// Start begins a search and returns its Run without removing any node, so
// the caller can drive the loop one step at a time.
func (e *Engine) Start(ctx context.Context, p Problem) (*Run, error) {
	return e.start(ctx, p, SearchInfo{Strategy: e.name, DepthLimit: e.depthLimit, Iteration: 1})
}

func (e *Engine) start(ctx context.Context, p Problem, info SearchInfo) (*Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = e.observer.SearchStarted(ctx, info)

	run, err := e.newRun(ctx, p, e.depthLimit, info)
	if err != nil {
		e.last = Stats{}
		e.observer.SearchFinished(ctx, info, nil, e.last, err)
		return nil, err
	}
	run.onFinish = func(r *Run) {
		e.last = r.stats
		e.observer.SearchFinished(r.ctx, r.info, r.solution, r.stats, r.err)
	}
	return run, nil
}

// newRun initializes per-run memory and inserts the root node.
func (e *Engine) newRun(ctx context.Context, p Problem, depthLimit int, info SearchInfo) (*Run, error) {
	if err := validateProblem(p); err != nil {
		return nil, err.(*Error).WithStrategy(e.name)
	}
	if e.newFrontier == nil {
		return nil, NewError(ErrCodeInvalidOption, "engine has no frontier", nil).WithStrategy(e.name)
	}

	r := &Run{
		ctx:        ctx,
		problem:    p,
		frontier:   e.newFrontier(),
		keep:       e.keep,
		depthLimit: depthLimit,
		observer:   e.observer,
		info:       info,
		strategy:   e.name,
		started:    time.Now(),
	}
	r.frontier.Reset()
	if r.keep != nil {
		r.explored = newExploredTable()
	}
	r.stats.Iterations = 1

	root := newRootNode(p.Initial())
	r.stats.NodesCreated++
	r.memorize(root)
	return r, nil
}

// StepResult describes one step of a Run.
type StepResult struct {
	// Node is the node removed from the frontier, nil if none was removed.
	Node *Node

	// Goal is true when Node satisfies the goal.
	Goal bool

	// Kept is the number of successors that entered the frontier.
	Kept int

	// Done is true once the run has finished.
	Done bool
}

// Run is one search in progress. It owns the frontier and explored table
// of that search.
type Run struct {
	ctx        context.Context
	problem    Problem
	frontier   Frontier
	explored   *exploredTable
	keep       KeepPolicy
	depthLimit int
	observer   Observer
	info       SearchInfo
	strategy   string

	stats    Stats
	live     int
	started  time.Time
	solution *Solution
	err      error
	done     bool
	onFinish func(*Run)
}

// Done reports whether the run has finished.
func (r *Run) Done() bool {
	return r.done
}

// Solution returns the solution found, nil while running or when none
// exists.
func (r *Run) Solution() *Solution {
	return r.solution
}

// Err returns the error that stopped the run, if any.
func (r *Run) Err() error {
	return r.err
}

// Stats returns the run's counters so far.
func (r *Run) Stats() Stats {
	s := r.stats
	s.NodesLive = r.live
	if r.explored != nil {
		s.ExploredSize = r.explored.Len()
	}
	if !r.done {
		s.Duration = time.Since(r.started)
	}
	return s
}

// Frontier returns the number of open nodes.
func (r *Run) Frontier() int {
	return r.frontier.Len()
}

// Complete steps the run until it finishes.
func (r *Run) Complete() (*Solution, error) {
	for !r.done {
		if _, err := r.Step(); err != nil {
			return nil, err
		}
	}
	return r.solution, r.err
}

// Step removes one node from the frontier, tests it against the goal and,
// if it is not a goal, expands it.
func (r *Run) Step() (StepResult, error) {
	if r.done {
		return StepResult{Done: true}, NewError(ErrCodeRunFinished, "run already finished", nil).
			WithStrategy(r.strategy)
	}

	if err := r.ctx.Err(); err != nil {
		return StepResult{Done: true}, r.fail(NewError(ErrCodeCanceled, "search canceled", err))
	}

	if r.frontier.Empty() {
		r.finish(nil)
		return StepResult{Done: true}, nil
	}

	node, err := r.frontier.Remove()
	if err != nil {
		return StepResult{Done: true}, r.fail(err)
	}
	r.release(node)
	r.stats.Steps++

	if r.problem.Goal(node.State()) {
		r.finish(NewSolution(node))
		return StepResult{Node: node, Goal: true, Done: true}, nil
	}

	if r.depthLimit != Unbounded && node.Depth() >= r.depthLimit {
		return StepResult{Node: node}, nil
	}

	kept, err := r.expand(node)
	if err != nil {
		return StepResult{Node: node, Done: true}, r.fail(err)
	}
	r.stats.Expanded++
	r.observer.NodeExpanded(r.ctx, r.info, node, kept)
	return StepResult{Node: node, Kept: kept}, nil
}

// expand applies every operator to the node's state and memorizes the
// successors. Inapplicable operators are skipped.
func (r *Run) expand(node *Node) (int, error) {
	state := node.State()
	kept := 0
	for _, op := range r.problem.Operators() {
		succ, ok := op.Apply(state)
		if !ok || succ == nil {
			continue
		}
		stepCost := op.Cost(state, succ)
		if stepCost < 0 || math.IsNaN(stepCost) {
			return kept, NewError(ErrCodeInvalidCost,
				fmt.Sprintf("operator %s returned cost %g from state %s", op.Name(), stepCost, state.ID()),
				nil,
			).WithDetail("operator", op.Name())
		}

		child := newChildNode(succ, op, node, node.Cost()+stepCost)
		r.stats.NodesCreated++
		if r.memorize(child) {
			kept++
		}
	}
	return kept, nil
}

// memorize inserts n into the frontier. Under graph search n is inserted and
// recorded in the explored table only if the keep policy accepts it.
func (r *Run) memorize(n *Node) bool {
	if r.explored == nil {
		r.frontier.Insert(n)
		r.hold(n)
		return true
	}
	if !r.keep.Keep(n, r.explored) {
		r.stats.Discarded++
		return false
	}
	r.frontier.Insert(n)
	r.hold(n)
	if prev := r.explored.record(n); prev != nil {
		r.release(prev)
	}
	r.hold(n)
	return true
}

// hold registers a container reference to n.
func (r *Run) hold(n *Node) {
	if n.refs == 0 {
		r.live++
		if r.live > r.stats.PeakLive {
			r.stats.PeakLive = r.live
		}
	}
	n.refs++
}

// release drops a container reference to n.
func (r *Run) release(n *Node) {
	if n.refs == 0 {
		return
	}
	n.refs--
	if n.refs == 0 {
		r.live--
	}
}

func (r *Run) fail(err error) error {
	if e, ok := err.(*Error); ok && e.Strategy == "" {
		e.WithStrategy(r.strategy)
	}
	r.err = err
	r.finish(nil)
	return err
}

// finish records the outcome and frees the frontier.
func (r *Run) finish(sol *Solution) {
	r.solution = sol
	r.done = true
	r.stats.NodesLive = r.live
	if r.explored != nil {
		r.stats.ExploredSize = r.explored.Len()
	}
	r.stats.Duration = time.Since(r.started)
	r.frontier.Reset()
	if r.onFinish != nil {
		r.onFinish(r)
	}
}
