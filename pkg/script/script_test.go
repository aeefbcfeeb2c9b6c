package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statesearch/pkg/search"
)

const gridScript = `
initial = (0, 0)

def goal(s):
    return s == target

def move(dx, dy):
    def apply(s):
        x, y = s[0] + dx, s[1] + dy
        if x < 0 or y < 0 or x > size or y > size:
            return None
        return (x, y)
    return apply

def unit(s, succ):
    return 1

operators = [
    {"name": "east", "apply": move(1, 0), "cost": 1},
    {"name": "south", "apply": move(0, 1)},
    {"name": "west", "apply": move(-1, 0), "cost": 1.0},
    {"name": "north", "apply": move(0, -1), "cost": unit},
]

def heuristic(s):
    return hypot(target[0] - s[0], target[1] - s[1])
`

func loadGrid(t *testing.T) *Problem {
	t.Helper()
	p, err := NewLoader(0, 0).Load(context.Background(), "grid.star", gridScript, map[string]interface{}{
		"target": []interface{}{3, 4},
		"size":   9,
	})
	require.NoError(t, err)
	return p
}

func TestLoadScriptedProblem(t *testing.T) {
	p := loadGrid(t)

	assert.Equal(t, "grid.star", p.Name())
	assert.Equal(t, "(0, 0)", p.Initial().ID())
	require.Len(t, p.Operators(), 4)
	assert.Equal(t, "south", p.Operators()[1].Name())
	assert.False(t, p.Goal(p.Initial()))
	require.NotNil(t, p.Heuristic())
	assert.Equal(t, 5.0, p.Heuristic().Estimate(p.Initial()))

	_, ok := p.Operators()[2].Apply(p.Initial())
	assert.False(t, ok, "west of the origin is outside the grid")
}

func TestScriptedProblemSolves(t *testing.T) {
	p := loadGrid(t)

	sol, err := search.AStar().Search(context.Background(), p, p.Heuristic())
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 7.0, sol.Cost())
	assert.Equal(t, 7, sol.Dimension())
	require.NoError(t, p.Err())

	goal, err := sol.Goal().(State).Value()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), int64(4)}, goal)

	ucs, err := search.UniformCost().Search(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, ucs)
	assert.Equal(t, sol.Cost(), ucs.Cost())
}

func TestScriptFailureIsRecorded(t *testing.T) {
	src := `
initial = 0

def goal(s):
    return s >= 3

def broken(s):
    return s // 0

operators = [{"name": "broken", "apply": broken}]
`
	p, err := NewLoader(0, 0).Load(context.Background(), "broken.star", src, nil)
	require.NoError(t, err)

	sol, err := search.BreadthFirst().Search(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, sol)
	require.Error(t, p.Err())
	assert.Contains(t, p.Err().Error(), "broken(0)")
	assert.Nil(t, p.Heuristic())
}

func TestForkIsolatesFailures(t *testing.T) {
	src := `
initial = 0

def goal(s):
    return s >= 3

def step(s):
    return s + 1

def heuristic(s):
    if s == 1:
        fail("boom")
    return 3 - s

operators = [{"name": "step", "apply": step}]
`
	p, err := NewLoader(0, 0).Load(context.Background(), "flaky.star", src, nil)
	require.NoError(t, err)

	informed := p.Fork()
	_, err = search.AStar().Search(context.Background(), informed, informed.Heuristic())
	require.NoError(t, err)
	require.Error(t, informed.Err())
	assert.Contains(t, informed.Err().Error(), "heuristic(1)")

	plain := p.Fork()
	sol, err := search.BreadthFirst().Search(context.Background(), plain)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.NoError(t, plain.Err())
	assert.NoError(t, p.Err())
	assert.Equal(t, "step", plain.Operators()[0].Name())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "initial = ("},
		{"no initial", "def goal(s):\n    return True\noperators = []\n"},
		{"unhashable initial", "initial = [1]\ndef goal(s):\n    return True\n"},
		{"no goal", "initial = 0\noperators = []\n"},
		{"no operators", "initial = 0\ndef goal(s):\n    return True\noperators = []\n"},
		{"operator without apply", "initial = 0\ndef goal(s):\n    return True\noperators = [{\"name\": \"x\"}]\n"},
		{"negative cost", "initial = 0\ndef goal(s):\n    return True\ndef f(s):\n    return s\noperators = [{\"apply\": f, \"cost\": -1}]\n"},
		{"bad heuristic", "initial = 0\ndef goal(s):\n    return True\ndef f(s):\n    return s\noperators = [{\"apply\": f}]\nheuristic = 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(0, 0).Load(context.Background(), "bad.star", tt.src, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadStepBudget(t *testing.T) {
	src := "big = [i * i for i in range(100000)]\n"
	_, err := NewLoader(0, 1000).Load(context.Background(), "loop.star", src, nil)
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	in := map[string]interface{}{
		"a": []interface{}{1, "x", true, 2.5, nil},
		"b": map[string]interface{}{"c": int64(7)},
	}
	sv, err := toStarlarkValue(in)
	require.NoError(t, err)

	out, err := fromStarlarkValue(sv)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": []interface{}{int64(1), "x", true, 2.5, nil},
		"b": map[string]interface{}{"c": int64(7)},
	}, out)

	_, err = toStarlarkValue(struct{}{})
	assert.Error(t, err)
}
