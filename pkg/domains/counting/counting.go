// Package counting implements the counting problem: starting from an
// integer, reach a value at or above a target by applying increments whose
// cost is the square of the increment.
package counting

import (
	"fmt"
	"math"
	"strconv"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Value is a counting state.
type Value int

// ID implements search.State.
func (v Value) ID() string {
	return strconv.Itoa(int(v))
}

// Increment adds a fixed amount to a Value.
type Increment struct {
	By int

	// Min and Max bound the reachable values when Bounded is set.
	Min, Max int
	Bounded  bool
}

// Name returns the signed increment, e.g. "+2" or "-1".
func (op Increment) Name() string {
	return fmt.Sprintf("%+d", op.By)
}

// Apply returns v+By. With bounds, values outside [Min, Max] are not
// reachable.
func (op Increment) Apply(s search.State) (search.State, bool) {
	v, ok := s.(Value)
	if !ok {
		return nil, false
	}
	next := int(v) + op.By
	if op.Bounded && (next < op.Min || next > op.Max) {
		return nil, false
	}
	return Value(next), true
}

// Cost returns By squared.
func (op Increment) Cost(_, _ search.State) float64 {
	return float64(op.By * op.By)
}

// Option configures a counting problem.
type Option func(*config)

type config struct {
	bounded  bool
	min, max int
}

// WithBounds restricts values to [min, max], which makes the state space
// finite.
func WithBounds(min, max int) Option {
	return func(c *config) {
		c.bounded = true
		c.min, c.max = min, max
	}
}

// Problem is a counting problem.
type Problem struct {
	*search.BasicProblem
	start      Value
	target     int
	increments []int
}

// NewProblem creates a problem whose goal is any value >= target.
func NewProblem(start, target int, increments []int, opts ...Option) *Problem {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	ops := make([]search.Operator, 0, len(increments))
	for _, inc := range increments {
		ops = append(ops, Increment{By: inc, Min: cfg.min, Max: cfg.max, Bounded: cfg.bounded})
	}
	goal := func(s search.State) bool {
		v, ok := s.(Value)
		return ok && int(v) >= target
	}
	return &Problem{
		BasicProblem: search.NewProblem(Value(start), ops, goal),
		start:        Value(start),
		target:       target,
		increments:   append([]int(nil), increments...),
	}
}

// Target returns the goal threshold.
func (p *Problem) Target() int {
	return p.target
}

// Heuristic returns an admissible and consistent estimate: the remaining
// distance to the target times the cheapest cost per unit of progress.
// Every positive increment k costs k*k, that is k per unit, so the cheapest
// rate is the smallest positive increment.
func (p *Problem) Heuristic() search.Heuristic {
	rate := math.Inf(1)
	for _, inc := range p.increments {
		if inc > 0 && float64(inc) < rate {
			rate = float64(inc)
		}
	}
	target := p.target
	return search.HeuristicFunc(func(s search.State) float64 {
		v, ok := s.(Value)
		if !ok || int(v) >= target || math.IsInf(rate, 1) {
			return 0
		}
		return float64(target-int(v)) * rate
	})
}
