package counting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrement(t *testing.T) {
	op := Increment{By: -2}
	assert.Equal(t, "-2", op.Name())
	assert.Equal(t, 4.0, op.Cost(Value(3), Value(1)))

	next, ok := op.Apply(Value(3))
	require.True(t, ok)
	assert.Equal(t, Value(1), next)

	bounded := Increment{By: 2, Min: 0, Max: 4, Bounded: true}
	_, ok = bounded.Apply(Value(3))
	assert.False(t, ok)
}

func TestProblem(t *testing.T) {
	p := NewProblem(0, 9, []int{1, 2, -1})

	assert.Equal(t, Value(0), p.Initial())
	assert.Equal(t, "0", p.Initial().ID())
	require.Len(t, p.Operators(), 3)
	assert.Equal(t, "+1", p.Operators()[0].Name())
	assert.False(t, p.Goal(Value(8)))
	assert.True(t, p.Goal(Value(9)))
	assert.True(t, p.Goal(Value(12)))
	assert.Equal(t, 9, p.Target())
}

func TestHeuristicIsConsistent(t *testing.T) {
	p := NewProblem(0, 9, []int{1, 2, -1})
	h := p.Heuristic()

	assert.Equal(t, 9.0, h.Estimate(Value(0)))
	assert.Equal(t, 0.0, h.Estimate(Value(10)))

	for v := -5; v <= 12; v++ {
		for _, op := range p.Operators() {
			next, ok := op.Apply(Value(v))
			require.True(t, ok)
			assert.LessOrEqual(t, h.Estimate(Value(v)), op.Cost(Value(v), next)+h.Estimate(next),
				"h(%d) with %s", v, op.Name())
		}
	}
}

func TestHeuristicWithoutPositiveIncrement(t *testing.T) {
	p := NewProblem(0, 9, []int{-1})
	assert.Equal(t, 0.0, p.Heuristic().Estimate(Value(0)))
}
