// Package plan turns a world model and a goal into a sequence of actions by
// running A* over the model's operators.
package plan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/statesearch/pkg/search"
)

// WorldModel is the agent's view of its environment.
type WorldModel interface {
	// State returns the agent's current state.
	State() search.State

	// Operators returns the actions available in the model.
	Operators() []search.Operator
}

// HeuristicFactory builds the heuristic for a given goal state.
type HeuristicFactory func(goal search.State) search.Heuristic

// Planner solves planning problems with A*.
type Planner struct {
	searcher  *search.InformedSearch
	heuristic HeuristicFactory
	logger    zerolog.Logger
}

// NewPlanner creates a planner. A nil factory plans with the zero heuristic,
// which makes A* behave as uniform-cost search.
func NewPlanner(heuristic HeuristicFactory, logger zerolog.Logger, opts ...search.Option) *Planner {
	if heuristic == nil {
		heuristic = func(search.State) search.Heuristic { return search.ZeroHeuristic }
	}
	return &Planner{
		searcher:  search.AStar(opts...),
		heuristic: heuristic,
		logger:    logger.With().Str("component", "planner").Logger(),
	}
}

// Plan finds a plan reaching the first reachable goal, trying goals in
// order. It returns nil when no goal is reachable.
func (p *Planner) Plan(ctx context.Context, model WorldModel, goals ...search.State) (*Plan, error) {
	if model == nil {
		return nil, fmt.Errorf("world model is nil")
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("no goals given")
	}

	for _, goal := range goals {
		problem := newGoalProblem(model, goal)
		sol, err := p.searcher.Search(ctx, problem, p.heuristic(goal))
		if err != nil {
			return nil, fmt.Errorf("failed to plan towards %s: %w", goal.ID(), err)
		}

		stats := p.searcher.Stats()
		if sol == nil {
			p.logger.Debug().
				Str("goal", goal.ID()).
				Int("nodes_created", stats.NodesCreated).
				Msg("Goal unreachable")
			continue
		}

		p.logger.Debug().
			Str("goal", goal.ID()).
			Int("steps", sol.Len()).
			Float64("cost", sol.Cost()).
			Int("nodes_created", stats.NodesCreated).
			Msg("Plan found")
		return newPlan(sol), nil
	}
	return nil, nil
}

// Stats returns the counters of the last search.
func (p *Planner) Stats() search.Stats {
	return p.searcher.Stats()
}

// goalProblem reaches one goal state from the model's current state.
type goalProblem struct {
	initial   search.State
	operators []search.Operator
	goal      string
}

func newGoalProblem(model WorldModel, goal search.State) *goalProblem {
	return &goalProblem{
		initial:   model.State(),
		operators: model.Operators(),
		goal:      goal.ID(),
	}
}

func (g *goalProblem) Initial() search.State        { return g.initial }
func (g *goalProblem) Operators() []search.Operator { return g.operators }
func (g *goalProblem) Goal(s search.State) bool     { return s.ID() == g.goal }
