package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openfroyo/statesearch/pkg/config"
	"github.com/openfroyo/statesearch/pkg/search"
	"github.com/openfroyo/statesearch/pkg/telemetry"
)

func countingInstance(t *testing.T, target int, strategies ...string) *config.Instance {
	t.Helper()
	sc := &config.Scenario{
		Name: "count",
		Problem: config.ProblemConfig{
			Kind:     config.KindCounting,
			Counting: &config.CountingConfig{Target: target, Increments: []int{1, 2}},
		},
	}
	for _, name := range strategies {
		sc.Strategies = append(sc.Strategies, config.StrategyConfig{Name: name, DepthLimit: 10, MaxDepth: 10})
	}
	inst, err := config.Build(context.Background(), sc, nil)
	require.NoError(t, err)
	return inst
}

func TestBenchKeepsScenarioOrder(t *testing.T) {
	names := []string{
		search.StrategyBreadthFirst,
		search.StrategyUniformCost,
		search.StrategyAStar,
		search.StrategyGreedy,
		search.StrategyDepthLimited,
		search.StrategyIterativeDeepening,
		search.StrategyGraphBreadthFirst,
	}
	inst := countingInstance(t, 5, names...)

	reports, err := New(WithParallelism(3)).Bench(context.Background(), inst)
	require.NoError(t, err)
	require.Len(t, reports, len(names))

	ids := make(map[string]bool)
	for i, r := range reports {
		assert.Equal(t, names[i], r.Strategy)
		assert.Equal(t, "count", r.Scenario)
		assert.True(t, r.Found, r.Strategy)
		assert.Empty(t, r.Error)
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
		assert.GreaterOrEqual(t, r.Stats.NodesCreated, r.Stats.PeakLive)
	}
	assert.Len(t, ids, len(names), "run IDs are unique")

	assert.Equal(t, 3, reports[0].Depth, "breadth-first finds the shallowest goal")
	assert.Equal(t, reports[1].Cost, reports[2].Cost, "uniform-cost and A* agree on the optimal cost")
}

func TestRunReportsSolution(t *testing.T) {
	inst := countingInstance(t, 4, search.StrategyUniformCost)

	report, sol, err := New().Run(context.Background(), inst, inst.Scenario.Strategies[0])
	require.NoError(t, err)
	require.NotNil(t, sol)

	assert.True(t, report.Found)
	assert.Equal(t, "solved", report.Outcome())
	assert.Equal(t, sol.Cost(), report.Cost)
	assert.Equal(t, sol.Actions(), report.Actions)
	assert.Equal(t, 4.0, report.Cost)
	assert.Contains(t, report.String(), "uniform-cost: depth 4, cost 4")
}

func TestRunTimeout(t *testing.T) {
	inst := countingInstance(t, 1_000_000_000, search.StrategyDepthFirst)
	inst.Scenario.Timeout = "5ms"

	report, sol, err := New().Run(context.Background(), inst, inst.Scenario.Strategies[0])
	require.NoError(t, err)
	assert.Nil(t, sol)
	assert.Equal(t, "failed", report.Outcome())
	assert.Contains(t, report.Error, "canceled")
}

func TestRunMissingHeuristic(t *testing.T) {
	sc := &config.Scenario{
		Name: "script",
		Problem: config.ProblemConfig{
			Kind: config.KindScript,
			Script: &config.ScriptConfig{Source: `
initial = 0
def goal(s):
    return s == 2
operators = [{"name": "inc", "apply": lambda s: s + 1}]
`},
		},
		Strategies: []config.StrategyConfig{{Name: search.StrategyBreadthFirst}, {Name: search.StrategyAStar}},
	}
	inst, err := config.Build(context.Background(), sc, nil)
	require.NoError(t, err)

	_, _, err = New().Run(context.Background(), inst, sc.Strategies[1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, search.ErrMissingHeuristic))

	_, err = New().Bench(context.Background(), inst)
	assert.Error(t, err)

	report, _, err := New().Run(context.Background(), inst, sc.Strategies[0])
	require.NoError(t, err)
	assert.Equal(t, 2, report.Depth)
}

func TestTraceSteps(t *testing.T) {
	inst := countingInstance(t, 3, search.StrategyBreadthFirst, search.StrategyAStar, search.StrategyIterativeDeepening)
	r := New()

	var steps []search.StepResult
	report, sol, err := r.Trace(context.Background(), inst, inst.Scenario.Strategies[0],
		func(step search.StepResult, stats search.Stats, open int) error {
			steps = append(steps, step)
			assert.Equal(t, len(steps), stats.Steps)
			assert.GreaterOrEqual(t, open, 0)
			return nil
		})
	require.NoError(t, err)
	require.NotNil(t, sol)
	require.NotEmpty(t, steps)
	last := steps[len(steps)-1]
	assert.True(t, last.Goal)
	assert.True(t, last.Done)
	assert.Equal(t, report.Stats.Steps, len(steps))

	_, sol, err = r.Trace(context.Background(), inst, inst.Scenario.Strategies[1],
		func(search.StepResult, search.Stats, int) error { return nil })
	require.NoError(t, err)
	require.NotNil(t, sol)

	_, _, err = r.Trace(context.Background(), inst, inst.Scenario.Strategies[2],
		func(search.StepResult, search.Stats, int) error { return nil })
	assert.Error(t, err, "iterative deepening cannot be traced")

	stop := errors.New("stop")
	_, _, err = r.Trace(context.Background(), inst, inst.Scenario.Strategies[0],
		func(search.StepResult, search.Stats, int) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestBenchWithTelemetry(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetry(cfg)
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	var mu sync.Mutex
	runs := make(map[string]string)
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		runs[e.RunID] = e.Type
	}, telemetry.FilterByType(telemetry.EventTypeSearchSolved))

	inst := countingInstance(t, 6, search.StrategyBreadthFirst, search.StrategyAStar)
	reports, err := New(WithTelemetry(tel), WithParallelism(2)).Bench(context.Background(), inst)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, runs, 2)
	for _, r := range reports {
		assert.Equal(t, telemetry.EventTypeSearchSolved, runs[r.ID])
	}
}

func TestBenchTelemetryFromContext(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetry(cfg)
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())
	tel.Tracer = telemetry.NewTracerWithExporter("test", tracetest.NewInMemoryExporter())

	var mu sync.Mutex
	solved := 0
	tel.Events.Subscribe(func(telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		solved++
	}, telemetry.FilterByType(telemetry.EventTypeSearchSolved))

	var logs bytes.Buffer
	inst := countingInstance(t, 6, search.StrategyBreadthFirst, search.StrategyUniformCost)
	r := New(WithParallelism(2), WithLogger(zerolog.New(zerolog.SyncWriter(&logs))))
	_, err = r.Bench(tel.WithContext(context.Background()), inst)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, 2, solved)
	mu.Unlock()

	var finished string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "bench finished") {
			finished = line
		}
	}
	require.NotEmpty(t, finished)
	assert.Regexp(t, `"trace_id":"[0-9a-f]{32}"`, finished)
}

const flakyHeuristic = `
initial = 0

def goal(s):
    return s >= 4

def step(s):
    return s + 1

def heuristic(s):
    if s == 1:
        fail("boom")
    return 4 - s

operators = [{"name": "step", "apply": step}]
`

func TestScriptFailureStaysWithItsRun(t *testing.T) {
	sc := &config.Scenario{
		Name: "flaky",
		Problem: config.ProblemConfig{
			Kind:   config.KindScript,
			Script: &config.ScriptConfig{Source: flakyHeuristic},
		},
		Strategies: []config.StrategyConfig{
			{Name: search.StrategyAStar},
			{Name: search.StrategyBreadthFirst},
		},
	}
	inst, err := config.Build(context.Background(), sc, nil)
	require.NoError(t, err)

	for _, parallel := range []int{1, 2} {
		reports, err := New(WithParallelism(parallel)).Bench(context.Background(), inst)
		require.NoError(t, err)
		require.Len(t, reports, 2)

		assert.Equal(t, "failed", reports[0].Outcome())
		assert.Contains(t, reports[0].Error, "heuristic(1)")

		assert.Equal(t, "solved", reports[1].Outcome(), "parallelism %d", parallel)
		assert.Empty(t, reports[1].Error)
	}

	report, _, err := New().Run(context.Background(), inst, sc.Strategies[1])
	require.NoError(t, err)
	assert.Empty(t, report.Error)
	assert.NoError(t, inst.Err())
}

func TestWriteTable(t *testing.T) {
	reports := []*Report{
		{Strategy: "astar", Found: true, Depth: 3, Cost: 9, Stats: search.Stats{NodesCreated: 10, Iterations: 1}},
		{Strategy: "depth-limited", Stats: search.Stats{NodesCreated: 4, Iterations: 1}},
		{Strategy: "greedy", Error: "boom"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, reports))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "STRATEGY"))
	assert.Contains(t, lines[1], "solved")
	assert.Contains(t, lines[2], "exhausted")
	assert.Contains(t, lines[3], "failed")
	assert.Equal(t, "greedy: error: boom", reports[2].String())
	assert.Contains(t, reports[1].String(), "no solution")
}
