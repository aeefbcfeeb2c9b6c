package search

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Strategy names accepted by NewSearcher.
const (
	StrategyBreadthFirst       = "breadth-first"
	StrategyDepthFirst         = "depth-first"
	StrategyDepthLimited       = "depth-limited"
	StrategyIterativeDeepening = "iterative-deepening"
	StrategyUniformCost        = "uniform-cost"
	StrategyGreedy             = "greedy"
	StrategyAStar              = "astar"
	StrategyGraphBreadthFirst  = "graph-breadth-first"
)

// BreadthFirst returns a tree search over a FIFO frontier.
func BreadthFirst(opts ...Option) *Engine {
	return New(func() Frontier { return NewFIFOFrontier() },
		append([]Option{WithName(StrategyBreadthFirst)}, opts...)...)
}

// DepthFirst returns a tree search over a LIFO frontier. It does not
// terminate on state spaces with cycles or infinite depth.
func DepthFirst(opts ...Option) *Engine {
	return New(func() Frontier { return NewLIFOFrontier() },
		append([]Option{WithName(StrategyDepthFirst)}, opts...)...)
}

// DepthLimited returns a depth-first tree search that does not expand nodes
// at depth >= limit. It never returns a solution deeper than limit.
func DepthLimited(limit int, opts ...Option) *Engine {
	return New(func() Frontier { return NewLIFOFrontier() },
		append([]Option{WithName(StrategyDepthLimited), WithDepthLimit(limit)}, opts...)...)
}

// GraphBreadthFirst returns a breadth-first graph search that never
// revisits a state.
func GraphBreadthFirst(opts ...Option) *Engine {
	return New(func() Frontier { return NewFIFOFrontier() },
		append([]Option{WithName(StrategyGraphBreadthFirst), WithKeepPolicy(KeepUnvisited)}, opts...)...)
}

// BestFirst returns a graph search over a priority frontier ordered by e.
// A rediscovered state re-enters the frontier only when reached more
// cheaply.
func BestFirst(e Evaluator, opts ...Option) *Engine {
	return New(func() Frontier { return NewPriorityFrontier(e) },
		append([]Option{WithName("best-first"), WithKeepPolicy(KeepCheaper)}, opts...)...)
}

// UniformCost returns a best-first search ordered by accumulated cost.
func UniformCost(opts ...Option) *Engine {
	return BestFirst(CostEvaluator{}, append([]Option{WithName(StrategyUniformCost)}, opts...)...)
}

// InformedSearch is a best-first search whose heuristic is supplied with
// each search rather than at construction. It is not safe for concurrent
// use: the heuristic is installed on the shared evaluator for the duration
// of a search.
type InformedSearch struct {
	engine    *Engine
	evaluator HeuristicEvaluator
}

// NewInformed creates an informed best-first search over evaluator.
func NewInformed(evaluator HeuristicEvaluator, opts ...Option) *InformedSearch {
	return &InformedSearch{
		engine:    BestFirst(evaluator, append([]Option{WithName("informed")}, opts...)...),
		evaluator: evaluator,
	}
}

// AStar returns an informed search ordered by g(n) + h(n).
func AStar(opts ...Option) *InformedSearch {
	return NewInformed(NewAStarEvaluator(nil), append([]Option{WithName(StrategyAStar)}, opts...)...)
}

// Greedy returns an informed search ordered by h(n).
func Greedy(opts ...Option) *InformedSearch {
	return NewInformed(NewGreedyEvaluator(nil), append([]Option{WithName(StrategyGreedy)}, opts...)...)
}

// Name returns the strategy name.
func (s *InformedSearch) Name() string {
	return s.engine.Name()
}

// Stats returns the counters of the most recent search.
func (s *InformedSearch) Stats() Stats {
	return s.engine.Stats()
}

// Search runs the search with heuristic h. A nil h reuses the heuristic of
// the previous search; it is an error if none was ever supplied.
func (s *InformedSearch) Search(ctx context.Context, p Problem, h Heuristic) (*Solution, error) {
	if err := s.install(h); err != nil {
		return nil, err
	}
	return s.engine.Search(ctx, p)
}

// Start begins a search with heuristic h and returns its Run.
func (s *InformedSearch) Start(ctx context.Context, p Problem, h Heuristic) (*Run, error) {
	if err := s.install(h); err != nil {
		return nil, err
	}
	return s.engine.Start(ctx, p)
}

func (s *InformedSearch) install(h Heuristic) error {
	if h != nil {
		s.evaluator.SetHeuristic(h)
	}
	if s.evaluator.Heuristic() == nil {
		return NewError(ErrCodeMissingHeuristic, "informed search requires a heuristic", nil).
			WithStrategy(s.engine.Name())
	}
	return nil
}

// Bind fixes the heuristic and returns a Searcher.
func (s *InformedSearch) Bind(h Heuristic) Searcher {
	return &boundSearch{informed: s, heuristic: h}
}

type boundSearch struct {
	informed  *InformedSearch
	heuristic Heuristic
}

func (b *boundSearch) Name() string {
	return b.informed.Name()
}

func (b *boundSearch) Stats() Stats {
	return b.informed.Stats()
}

func (b *boundSearch) Search(ctx context.Context, p Problem) (*Solution, error) {
	return b.informed.Search(ctx, p, b.heuristic)
}

// IterativeDeepening runs depth-limited searches with bounds 0, step,
// 2*step and so on up to maxDepth inclusive, and returns the first solution
// found. Its stats aggregate every pass: counters are summed and the peak
// is the maximum over passes.
type IterativeDeepening struct {
	name     string
	step     int
	maxDepth int
	opts     []Option
	observer Observer
	last     Stats
}

// NewIterativeDeepening creates an iterative deepening search. opts are
// applied to the engine of every pass.
func NewIterativeDeepening(step, maxDepth int, opts ...Option) *IterativeDeepening {
	settings := New(nil, opts...)
	name := settings.name
	if name == defaultEngineName {
		name = StrategyIterativeDeepening
	}
	return &IterativeDeepening{
		name:     name,
		step:     step,
		maxDepth: maxDepth,
		opts:     opts,
		observer: settings.observer,
	}
}

// Name returns the strategy name.
func (d *IterativeDeepening) Name() string {
	return d.name
}

// Stats returns the aggregated counters of the most recent search.
func (d *IterativeDeepening) Stats() Stats {
	return d.last
}

// Search runs passes of increasing depth bound until one finds a solution,
// the bound exceeds maxDepth, or a pass fails.
func (d *IterativeDeepening) Search(ctx context.Context, p Problem) (*Solution, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.last = Stats{}
	info := SearchInfo{Strategy: d.name, DepthLimit: d.maxDepth}
	ctx = d.observer.SearchStarted(ctx, info)

	if d.step <= 0 || d.maxDepth < 0 {
		err := NewError(ErrCodeInvalidOption,
			fmt.Sprintf("iterative deepening needs step > 0 and max depth >= 0, got step=%d max=%d", d.step, d.maxDepth),
			nil,
		).WithStrategy(d.name)
		d.observer.SearchFinished(ctx, info, nil, d.last, err)
		return nil, err
	}

	started := time.Now()
	passOpts := append(append([]Option{}, d.opts...),
		WithName(d.name), WithObserver(passObserver{d.observer}))

	var (
		sol *Solution
		err error
	)
	for bound, iteration := 0, 1; bound <= d.maxDepth; bound, iteration = bound+d.step, iteration+1 {
		engine := New(func() Frontier { return NewLIFOFrontier() }, append(passOpts, WithDepthLimit(bound))...)
		var run *Run
		run, err = engine.start(ctx, p, SearchInfo{Strategy: d.name, DepthLimit: bound, Iteration: iteration})
		if err != nil {
			break
		}
		sol, err = run.Complete()
		d.last = d.last.merge(run.Stats())
		if err != nil || sol != nil {
			break
		}
	}
	d.last.Duration = time.Since(started)

	d.observer.SearchFinished(ctx, info, sol, d.last, err)
	if err != nil {
		return nil, err
	}
	return sol, nil
}

// passObserver forwards expansions of a single pass and drops the per-pass
// lifecycle notifications, which the iterative search reports once.
type passObserver struct {
	Observer
}

func (passObserver) SearchStarted(ctx context.Context, _ SearchInfo) context.Context {
	return ctx
}

func (passObserver) SearchFinished(context.Context, SearchInfo, *Solution, Stats, error) {}

// StrategyConfig holds the parameters NewSearcher may need.
type StrategyConfig struct {
	// DepthLimit bounds depth-limited search.
	DepthLimit int

	// Step and MaxDepth drive iterative deepening. Step defaults to 1.
	Step     int
	MaxDepth int

	// Heuristic is required by greedy and A*.
	Heuristic Heuristic
}

// NewSearcher builds a strategy by name.
func NewSearcher(name string, cfg StrategyConfig, opts ...Option) (Searcher, error) {
	switch name {
	case StrategyBreadthFirst:
		return BreadthFirst(opts...), nil
	case StrategyDepthFirst:
		return DepthFirst(opts...), nil
	case StrategyDepthLimited:
		if cfg.DepthLimit < 0 {
			return nil, NewError(ErrCodeInvalidOption, "depth-limited search needs a non-negative depth limit", nil).
				WithStrategy(name)
		}
		return DepthLimited(cfg.DepthLimit, opts...), nil
	case StrategyIterativeDeepening:
		step := cfg.Step
		if step == 0 {
			step = 1
		}
		return NewIterativeDeepening(step, cfg.MaxDepth, opts...), nil
	case StrategyUniformCost:
		return UniformCost(opts...), nil
	case StrategyGraphBreadthFirst:
		return GraphBreadthFirst(opts...), nil
	case StrategyAStar, StrategyGreedy:
		if cfg.Heuristic == nil {
			return nil, NewError(ErrCodeMissingHeuristic, "strategy requires a heuristic", nil).
				WithStrategy(name)
		}
		if name == StrategyAStar {
			return AStar(opts...).Bind(cfg.Heuristic), nil
		}
		return Greedy(opts...).Bind(cfg.Heuristic), nil
	default:
		return nil, NewError(ErrCodeInvalidOption, fmt.Sprintf("unknown strategy %q", name), nil).
			WithDetail("known", Strategies())
	}
}

// Strategies returns the names accepted by NewSearcher, sorted.
func Strategies() []string {
	names := []string{
		StrategyBreadthFirst,
		StrategyDepthFirst,
		StrategyDepthLimited,
		StrategyIterativeDeepening,
		StrategyUniformCost,
		StrategyGreedy,
		StrategyAStar,
		StrategyGraphBreadthFirst,
	}
	sort.Strings(names)
	return names
}

// Informed reports whether the named strategy needs a heuristic.
func Informed(name string) bool {
	return name == StrategyAStar || name == StrategyGreedy
}
