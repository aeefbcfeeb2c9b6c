package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statesearch/pkg/domains/counting"
	"github.com/openfroyo/statesearch/pkg/domains/grid"
	"github.com/openfroyo/statesearch/pkg/search"
)

func countingProblem() *counting.Problem {
	return counting.NewProblem(0, 9, []int{1, 2, -1})
}

func assertStatsConsistent(t *testing.T, s search.Stats) {
	t.Helper()
	assert.GreaterOrEqual(t, s.NodesCreated, s.PeakLive, "created >= peak")
	assert.GreaterOrEqual(t, s.PeakLive, s.NodesLive, "peak >= live")
	assert.GreaterOrEqual(t, s.NodesLive, 0, "live >= 0")
}

func assertReplayReachesGoal(t *testing.T, p search.Problem, sol *search.Solution) {
	t.Helper()
	require.NotNil(t, sol)
	assert.Equal(t, sol.Dimension(), sol.Len())
	final, err := sol.Replay(p.Initial())
	require.NoError(t, err)
	assert.Equal(t, sol.Goal().ID(), final.ID())
	assert.True(t, p.Goal(final))
}

func TestBreadthFirstFindsShallowestSolution(t *testing.T) {
	p := countingProblem()
	bfs := search.BreadthFirst()

	sol, err := bfs.Search(context.Background(), p)
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.Equal(t, 5, sol.Dimension())
	assert.Equal(t, []string{"+1", "+2", "+2", "+2", "+2"}, sol.Actions())
	assert.Equal(t, 17.0, sol.Cost())
	assertStatsConsistent(t, bfs.Stats())
	assert.Equal(t, 0, bfs.Stats().ExploredSize)
}

func TestUniformCostFindsCheapestSolution(t *testing.T) {
	p := countingProblem()
	ucs := search.UniformCost()

	sol, err := ucs.Search(context.Background(), p)
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.Equal(t, 9.0, sol.Cost())
	assert.Equal(t, 9, sol.Dimension())
	for _, a := range sol.Actions() {
		assert.Equal(t, "+1", a)
	}

	stats := ucs.Stats()
	assertStatsConsistent(t, stats)
	assert.Positive(t, stats.ExploredSize)
	assert.LessOrEqual(t, stats.ExploredSize, stats.NodesLive)
}

func TestAStarMatchesUniformCostOnCounting(t *testing.T) {
	p := countingProblem()

	sol, err := search.AStar().Search(context.Background(), p, p.Heuristic())
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.Equal(t, 9.0, sol.Cost())
}

func TestAStarOnGrid(t *testing.T) {
	world := grid.NewWorld(10, 10)
	start, goal := grid.Position{X: 0, Y: 0}, grid.Position{X: 3, Y: 4}
	p := grid.NewProblem(world, start, goal, grid.FourWay)

	astar := search.AStar()
	sol, err := astar.Search(context.Background(), p, grid.Euclidean(goal))
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.Equal(t, 7.0, sol.Cost())
	assert.Equal(t, 7, sol.Dimension())

	ucs := search.UniformCost()
	ucsSol, err := ucs.Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, ucsSol)
	assert.Equal(t, ucsSol.Cost(), sol.Cost())

	assert.LessOrEqual(t, astar.Stats().Expanded, ucs.Stats().Expanded)
	assertStatsConsistent(t, astar.Stats())
	assertStatsConsistent(t, ucs.Stats())
}

func TestGreedyOnGridReachesGoal(t *testing.T) {
	world := grid.NewWorld(10, 10)
	for y := 0; y < 8; y++ {
		world.Block(grid.Position{X: 5, Y: y})
	}
	start, goal := grid.Position{X: 0, Y: 0}, grid.Position{X: 9, Y: 0}
	p := grid.NewProblem(world, start, goal, grid.EightWay)

	sol, err := search.Greedy().Search(context.Background(), p, grid.Euclidean(goal))
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)

	optimal, err := search.AStar().Search(context.Background(), p, grid.Euclidean(goal))
	require.NoError(t, err)
	require.NotNil(t, optimal)
	assert.GreaterOrEqual(t, sol.Cost(), optimal.Cost())
}

func TestInformedSearchReusesHeuristicAcrossProblems(t *testing.T) {
	world := grid.NewWorld(6, 6)
	astar := search.AStar()

	for _, goal := range []grid.Position{{X: 5, Y: 5}, {X: 0, Y: 5}, {X: 2, Y: 1}} {
		p := grid.NewProblem(world, grid.Position{}, goal, grid.FourWay)
		sol, err := astar.Search(context.Background(), p, grid.Manhattan(goal))
		require.NoError(t, err)
		require.NotNil(t, sol)
		assert.Equal(t, float64(goal.X+goal.Y), sol.Cost())
	}
}

func TestInformedSearchRequiresHeuristic(t *testing.T) {
	_, err := search.AStar().Search(context.Background(), countingProblem(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrMissingHeuristic)
	assert.True(t, search.IsContractViolation(err))
}

func TestNoSolutionIsNotAnError(t *testing.T) {
	// Values are bounded to [-3, 5], so 9 is unreachable.
	p := counting.NewProblem(0, 9, []int{1, 2, -1}, counting.WithBounds(-3, 5))

	searchers := []search.Searcher{
		search.GraphBreadthFirst(),
		search.UniformCost(),
		search.AStar().Bind(p.Heuristic()),
		search.Greedy().Bind(p.Heuristic()),
		search.DepthLimited(6),
		search.NewIterativeDeepening(1, 6),
	}
	for _, s := range searchers {
		t.Run(s.Name(), func(t *testing.T) {
			sol, err := s.Search(context.Background(), p)
			require.NoError(t, err)
			assert.Nil(t, sol)
			assertStatsConsistent(t, s.Stats())
		})
	}
}

func TestGraphSearchTerminatesOnCycles(t *testing.T) {
	p := graphProblem("a", "z",
		edge{"a", "b", 1},
		edge{"b", "a", 1},
		edge{"b", "c", 1},
		edge{"c", "a", 1},
	)
	gbfs := search.GraphBreadthFirst()

	sol, err := gbfs.Search(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, sol)

	stats := gbfs.Stats()
	assert.Equal(t, 3, stats.ExploredSize)
	assert.Equal(t, 3, stats.Expanded)
	assert.Equal(t, 2, stats.Discarded)
}

func TestGraphSearchReplacesCheaperRediscovery(t *testing.T) {
	p := graphProblem("a", "g",
		edge{"a", "b", 10},
		edge{"a", "c", 1},
		edge{"c", "b", 1},
		edge{"b", "g", 1},
	)
	ucs := search.UniformCost()

	sol, err := ucs.Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 3.0, sol.Cost())
	assert.Equal(t, []string{"a->c", "c->b", "b->g"}, sol.Actions())

	stats := ucs.Stats()
	assert.Equal(t, 5, stats.NodesCreated)
	assert.Equal(t, 4, stats.ExploredSize)
	assert.Equal(t, 0, stats.Discarded)
	assert.Equal(t, 3, stats.Expanded)
	assert.Equal(t, 4, stats.Steps)
	// The expensive route to b is still queued.
	assert.Equal(t, 5, stats.NodesLive)
	assert.Equal(t, 5, stats.PeakLive)
}

func TestKeepUnvisitedIgnoresCheaperRediscovery(t *testing.T) {
	p := graphProblem("a", "g",
		edge{"a", "b", 10},
		edge{"a", "c", 1},
		edge{"c", "b", 1},
		edge{"b", "g", 1},
	)
	e := search.BestFirst(search.CostEvaluator{}, search.WithKeepPolicy(search.KeepUnvisited))

	sol, err := e.Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 11.0, sol.Cost())
	assert.Equal(t, 1, e.Stats().Discarded)
}

func TestAStarWithOverestimatingHeuristic(t *testing.T) {
	p := graphProblem("s", "g",
		edge{"s", "a", 1},
		edge{"s", "b", 1},
		edge{"a", "g", 1},
		edge{"b", "g", 5},
	)
	overestimate := search.HeuristicFunc(func(s search.State) float64 {
		if s.(vertex) == "a" {
			return 10
		}
		return 0
	})

	optimal, err := search.UniformCost().Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, optimal)
	assert.Equal(t, 2.0, optimal.Cost())

	sol, err := search.AStar().Search(context.Background(), p, overestimate)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 6.0, sol.Cost())
	assert.Greater(t, sol.Cost(), optimal.Cost())
	assert.Equal(t, []string{"s->b", "b->g"}, sol.Actions())
}

func TestAStarReopensUnderInconsistentHeuristic(t *testing.T) {
	p := graphProblem("s", "g",
		edge{"s", "a", 1},
		edge{"s", "b", 3},
		edge{"a", "b", 1},
		edge{"b", "g", 3},
	)
	// Admissible but inconsistent: h(a) > c(a, b) + h(b).
	h := search.HeuristicFunc(func(s search.State) float64 {
		if s.(vertex) == "a" {
			return 4
		}
		return 0
	})

	sol, err := search.AStar().Search(context.Background(), p, h)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 5.0, sol.Cost())
	assert.Equal(t, []string{"s->a", "a->b", "b->g"}, sol.Actions())

	plain := search.BestFirst(search.NewAStarEvaluator(h), search.WithKeepPolicy(search.KeepUnvisited))
	sol, err = plain.Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 6.0, sol.Cost())
}

func TestDepthLimitedNeverExceedsBound(t *testing.T) {
	p := countingProblem()

	sol, err := search.DepthLimited(4).Search(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, sol)

	dls := search.DepthLimited(5)
	sol, err = dls.Search(context.Background(), p)
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.Equal(t, 5, sol.Dimension())
	assertStatsConsistent(t, dls.Stats())
}

func TestIterativeDeepeningMatchesBreadthFirst(t *testing.T) {
	p := countingProblem()
	ids := search.NewIterativeDeepening(1, 10)

	sol, err := ids.Search(context.Background(), p)
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)

	bfsSol, err := search.BreadthFirst().Search(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, bfsSol.Dimension(), sol.Dimension())

	stats := ids.Stats()
	assert.Equal(t, 6, stats.Iterations, "bounds 0 through 5")
	assertStatsConsistent(t, stats)
}

func TestIterativeDeepeningStepOvershoot(t *testing.T) {
	p := countingProblem()
	ids := search.NewIterativeDeepening(3, 7)

	sol, err := ids.Search(context.Background(), p)
	require.NoError(t, err)
	assertReplayReachesGoal(t, p, sol)
	assert.LessOrEqual(t, sol.Dimension(), 6)
	assert.Equal(t, 3, ids.Stats().Iterations, "bounds 0, 3, 6")
}

func TestIterativeDeepeningRejectsBadStep(t *testing.T) {
	_, err := search.NewIterativeDeepening(0, 5).Search(context.Background(), countingProblem())
	require.Error(t, err)
	var serr *search.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, search.ErrCodeInvalidOption, serr.Code)
	assert.Equal(t, search.StrategyIterativeDeepening, serr.Strategy)
}

func TestIterativeDeepeningReportsOnce(t *testing.T) {
	obs := &recordingObserver{}
	ids := search.NewIterativeDeepening(1, 10, search.WithObserver(obs))

	_, err := ids.Search(context.Background(), countingProblem())
	require.NoError(t, err)
	assert.Len(t, obs.started, 1)
	assert.Len(t, obs.finished, 1)
	assert.Equal(t, ids.Stats().Expanded, obs.expanded)
}

func TestStatsAreResetBetweenRuns(t *testing.T) {
	p := countingProblem()
	bfs := search.BreadthFirst()

	_, err := bfs.Search(context.Background(), p)
	require.NoError(t, err)
	first := bfs.Stats()

	_, err = bfs.Search(context.Background(), p)
	require.NoError(t, err)
	second := bfs.Stats()

	assert.Equal(t, first.NodesCreated, second.NodesCreated)
	assert.Equal(t, first.PeakLive, second.PeakLive)
	assert.Equal(t, first.Expanded, second.Expanded)
}

func TestSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	obs := &recordingObserver{}
	_, err := search.BreadthFirst(search.WithObserver(obs)).Search(ctx, countingProblem())
	require.Error(t, err)
	assert.True(t, search.IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, obs.errs, 1)
	assert.Equal(t, err, obs.errs[0])
}

func TestInvalidProblem(t *testing.T) {
	_, err := search.BreadthFirst().Search(context.Background(), nil)
	assert.ErrorIs(t, err, search.ErrInvalidProblem)

	p := search.NewProblem(nil, nil, func(search.State) bool { return true })
	_, err = search.BreadthFirst().Search(context.Background(), p)
	assert.ErrorIs(t, err, search.ErrInvalidProblem)
}

func TestNegativeCostIsRejected(t *testing.T) {
	p := graphProblem("a", "g", edge{"a", "g", -1})

	_, err := search.UniformCost().Search(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrInvalidCost)
	assert.True(t, search.IsContractViolation(err))
}

func TestRunStepByStep(t *testing.T) {
	p := countingProblem()
	run, err := search.BreadthFirst().Start(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Frontier())

	steps := 0
	for !run.Done() {
		res, err := run.Step()
		require.NoError(t, err)
		if res.Node != nil {
			steps++
		}
	}
	require.NotNil(t, run.Solution())
	assert.Equal(t, 5, run.Solution().Dimension())
	assert.Equal(t, steps, run.Stats().Steps)

	_, err = run.Step()
	assert.ErrorIs(t, err, search.ErrRunFinished)
}

func TestEngineObserver(t *testing.T) {
	obs := &recordingObserver{}
	ucs := search.UniformCost(search.WithObserver(obs))

	_, err := ucs.Search(context.Background(), countingProblem())
	require.NoError(t, err)
	require.Len(t, obs.started, 1)
	assert.Equal(t, search.StrategyUniformCost, obs.started[0].Strategy)
	assert.Equal(t, ucs.Stats().Expanded, obs.expanded)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, ucs.Stats(), obs.finished[0])
}

func TestNewSearcher(t *testing.T) {
	p := countingProblem()
	cfg := search.StrategyConfig{DepthLimit: 5, MaxDepth: 10, Heuristic: p.Heuristic()}

	for _, name := range search.Strategies() {
		if name == search.StrategyDepthFirst {
			// Unbounded depth-first never returns on this problem.
			continue
		}
		t.Run(name, func(t *testing.T) {
			s, err := search.NewSearcher(name, cfg)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())

			sol, err := s.Search(context.Background(), p)
			require.NoError(t, err)
			assertReplayReachesGoal(t, p, sol)
		})
	}

	_, err := search.NewSearcher("bogus", cfg)
	assert.Error(t, err)

	_, err = search.NewSearcher(search.StrategyAStar, search.StrategyConfig{})
	assert.ErrorIs(t, err, search.ErrMissingHeuristic)
}
