package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfroyo/statesearch/pkg/domains/counting"
	"github.com/openfroyo/statesearch/pkg/domains/grid"
	"github.com/openfroyo/statesearch/pkg/script"
	"github.com/openfroyo/statesearch/pkg/search"
)

// Instance is a scenario turned into a runnable problem.
type Instance struct {
	Scenario *Scenario

	// Problem is the search problem described by the scenario.
	Problem search.Problem

	// Heuristic is the domain heuristic, or nil if the domain has none.
	Heuristic search.Heuristic

	render func(*search.Solution) string
	check  func() error
	fork   func() *Session

	goal        search.State
	towardsGoal func(goal search.State) search.Heuristic
}

// Session is the problem as seen by a single run. Sessions of one Instance
// may be searched concurrently; failures recorded by one never show up in
// another.
type Session struct {
	Problem   search.Problem
	Heuristic search.Heuristic

	scenario string
	check    func() error
}

// Err returns an error recorded by the problem during this session's run.
func (s *Session) Err() error {
	if s.check == nil {
		return nil
	}
	return s.check()
}

// NewSearcher builds the searcher for one strategy, bound to the session's
// heuristic.
func (s *Session) NewSearcher(cfg StrategyConfig, opts ...search.Option) (search.Searcher, error) {
	return newSearcher(s.scenario, cfg, s.Heuristic, opts...)
}

// Build constructs the problem a scenario describes. scripts may be nil, in
// which case a loader with default limits is used.
func Build(ctx context.Context, sc *Scenario, scripts *script.Loader) (*Instance, error) {
	inst := &Instance{Scenario: sc}

	switch sc.Problem.Kind {
	case KindCounting:
		c := sc.Problem.Counting
		if c == nil {
			return nil, fmt.Errorf("scenario %s: missing counting configuration", sc.Name)
		}
		var opts []counting.Option
		if c.Min != nil && c.Max != nil {
			opts = append(opts, counting.WithBounds(*c.Min, *c.Max))
		}
		p := counting.NewProblem(c.Start, c.Target, c.Increments, opts...)
		inst.Problem = p
		inst.Heuristic = p.Heuristic()

	case KindGrid:
		g := sc.Problem.Grid
		if g == nil {
			return nil, fmt.Errorf("scenario %s: missing grid configuration", sc.Name)
		}
		w, start, goal, err := grid.ParseWorld(g.Map)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		dirs := grid.FourWay
		if g.Directions == 8 {
			dirs = grid.EightWay
		}
		inst.Problem = grid.NewProblem(w, start, goal, dirs)
		inst.Heuristic, err = gridHeuristic(g.Heuristic, goal)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		inst.goal = goal
		inst.towardsGoal = func(to search.State) search.Heuristic {
			h, _ := gridHeuristic(g.Heuristic, to.(grid.Position))
			return h
		}
		inst.render = func(sol *search.Solution) string {
			return w.Render(start, goal, grid.Path(sol))
		}

	case KindScript:
		s := sc.Problem.Script
		if s == nil {
			return nil, fmt.Errorf("scenario %s: missing script configuration", sc.Name)
		}
		name, src, err := scriptSource(sc, s)
		if err != nil {
			return nil, err
		}
		if scripts == nil {
			scripts = script.NewLoader(0, s.MaxSteps)
		}
		p, err := scripts.Load(ctx, name, src, s.Params)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		inst.Problem = p
		if h := p.Heuristic(); h != nil {
			inst.Heuristic = h
		}
		inst.check = p.Err
		inst.fork = func() *Session {
			f := p.Fork()
			sess := &Session{Problem: f, scenario: sc.Name, check: f.Err}
			if h := f.Heuristic(); h != nil {
				sess.Heuristic = h
			}
			return sess
		}

	default:
		return nil, fmt.Errorf("scenario %s: unknown problem kind %q", sc.Name, sc.Problem.Kind)
	}

	return inst, nil
}

func gridHeuristic(name string, goal grid.Position) (search.Heuristic, error) {
	switch name {
	case "", "euclidean":
		return grid.Euclidean(goal), nil
	case "manhattan":
		return grid.Manhattan(goal), nil
	case "zero":
		return search.ZeroHeuristic, nil
	default:
		return nil, fmt.Errorf("unknown grid heuristic %q", name)
	}
}

func scriptSource(sc *Scenario, s *ScriptConfig) (name, src string, err error) {
	if s.Source != "" {
		return sc.Name + ".star", s.Source, nil
	}
	path := s.File
	if !filepath.IsAbs(path) && sc.Source != "" {
		path = filepath.Join(filepath.Dir(sc.Source), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("scenario %s: failed to read script: %w", sc.Name, err)
	}
	return path, string(data), nil
}

// NewSearcher builds the searcher for one of the scenario's strategies.
func (i *Instance) NewSearcher(cfg StrategyConfig, opts ...search.Option) (search.Searcher, error) {
	return newSearcher(i.Scenario.Name, cfg, i.Heuristic, opts...)
}

// Session returns a view of the problem for one run. Domains without
// per-run state share the Instance's problem and heuristic.
func (i *Instance) Session() *Session {
	if i.fork != nil {
		return i.fork()
	}
	return &Session{Problem: i.Problem, Heuristic: i.Heuristic, scenario: i.Scenario.Name}
}

func newSearcher(scenario string, cfg StrategyConfig, h search.Heuristic, opts ...search.Option) (search.Searcher, error) {
	if search.Informed(cfg.Name) && h == nil {
		return nil, search.NewError(search.ErrCodeMissingHeuristic,
			fmt.Sprintf("problem %s defines no heuristic", scenario), nil).WithStrategy(cfg.Name)
	}
	return search.NewSearcher(cfg.Name, search.StrategyConfig{
		DepthLimit: cfg.DepthLimit,
		Step:       cfg.Step,
		MaxDepth:   cfg.MaxDepth,
		Heuristic:  h,
	}, opts...)
}

// Render draws a solution for domains that support it. It returns "" for the
// others.
func (i *Instance) Render(sol *search.Solution) string {
	if i.render == nil || sol == nil {
		return ""
	}
	return i.render(sol)
}

// Goal returns the single goal state of domains that have one, such as the
// target cell of a grid.
func (i *Instance) Goal() (search.State, bool) {
	return i.goal, i.goal != nil
}

// GoalHeuristic returns the domain heuristic towards goal. It returns nil
// for domains without a single goal state.
func (i *Instance) GoalHeuristic(goal search.State) search.Heuristic {
	if i.towardsGoal == nil {
		return nil
	}
	return i.towardsGoal(goal)
}

// Err returns an error recorded by the Instance's own Problem while it was
// searched, such as a failing script callback. Runs searching a Session
// read Session.Err instead.
func (i *Instance) Err() error {
	if i.check == nil {
		return nil
	}
	return i.check()
}
