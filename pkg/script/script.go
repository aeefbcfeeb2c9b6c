// Package script loads search problems written in Starlark.
//
// A script defines the problem through globals:
//
//	initial = (0, 0)              # any hashable value
//
//	def goal(s):                  # required
//	    return s == (3, 4)
//
//	def right(s):                 # apply: return the successor, or None
//	    return (s[0] + 1, s[1])
//
//	operators = [                 # required, ordered
//	    {"name": "right", "apply": right, "cost": 1},
//	]
//
//	def heuristic(s):             # optional
//	    return hypot(3 - s[0], 4 - s[1])
//
// An operator cost is either a number or a function cost(s, succ). Values
// passed in params are predeclared, so one script can describe a family of
// problems. A state's identity is its Starlark representation.
package script

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/statesearch/pkg/search"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxSteps = 1_000_000
)

// Loader compiles scripts into problems.
type Loader struct {
	timeout  time.Duration
	maxSteps uint64
}

// NewLoader creates a loader. timeout bounds the execution of the script's
// top level; maxSteps bounds every call into the script. Zero values select
// the defaults.
func NewLoader(timeout time.Duration, maxSteps uint64) *Loader {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}
	return &Loader{timeout: timeout, maxSteps: maxSteps}
}

// Load executes the script and returns the problem it defines.
func (l *Loader) Load(ctx context.Context, filename, src string, params map[string]interface{}) (*Problem, error) {
	evalCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		globals starlark.StringDict
		err     error
	}
	resultCh := make(chan result, 1)
	thread := l.newThread(filename)

	go func() {
		globals, err := l.exec(thread, filename, src, params)
		resultCh <- result{globals, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("load timeout")
		return nil, fmt.Errorf("starlark execution of %s timed out after %v", filename, l.timeout)
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return l.build(filename, res.globals)
	}
}

func (l *Loader) exec(thread *starlark.Thread, filename, src string, params map[string]interface{}) (starlark.StringDict, error) {
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"hypot":  starlark.NewBuiltin("hypot", builtinHypot),
	}
	for key, val := range params {
		sv, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert param %s: %w", key, err)
		}
		predeclared[key] = sv
	}

	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	return globals, nil
}

func (l *Loader) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name:  name,
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(l.maxSteps)
	return thread
}

// build reads the problem definition from the script's globals.
func (l *Loader) build(filename string, globals starlark.StringDict) (*Problem, error) {
	initial, ok := globals["initial"]
	if !ok || initial == starlark.None {
		return nil, fmt.Errorf("%s: initial is not defined", filename)
	}
	if _, err := initial.Hash(); err != nil {
		return nil, fmt.Errorf("%s: initial state is not hashable: %w", filename, err)
	}

	goal, ok := globals["goal"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: goal must be a function", filename)
	}

	p := &Problem{
		name:    filename,
		initial: State{value: initial},
		goal:    goal,
		threads: &sync.Pool{New: func() interface{} { return l.newThread(filename) }},
	}

	list, ok := globals["operators"].(*starlark.List)
	if !ok || list.Len() == 0 {
		return nil, fmt.Errorf("%s: operators must be a non-empty list", filename)
	}
	for i := 0; i < list.Len(); i++ {
		op, err := p.newOperator(i, list.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		p.operators = append(p.operators, op)
	}

	if h, ok := globals["heuristic"]; ok && h != starlark.None {
		fn, ok := h.(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s: heuristic must be a function", filename)
		}
		p.heuristic = fn
	}
	return p, nil
}

// State wraps a frozen Starlark value.
type State struct {
	value starlark.Value
}

// ID returns the value's Starlark representation.
func (s State) ID() string {
	return s.value.String()
}

// Value converts the state to a plain Go value.
func (s State) Value() (interface{}, error) {
	return fromStarlarkValue(s.value)
}

// Problem is a search.Problem backed by Starlark functions. Calls from
// concurrent searches use separate threads. Script failures during a search
// are recorded and reported by Err; the failing operator is treated as
// inapplicable and the failing goal test as false. Failures are recorded per
// Problem value, so each run should search its own Fork.
type Problem struct {
	name      string
	initial   State
	operators []search.Operator
	goal      starlark.Callable
	heuristic starlark.Callable
	threads   *sync.Pool

	mu  sync.Mutex
	err error
}

// Name returns the script file name.
func (p *Problem) Name() string {
	return p.name
}

// Initial returns the initial state.
func (p *Problem) Initial() search.State {
	return p.initial
}

// Operators returns the scripted operators.
func (p *Problem) Operators() []search.Operator {
	return p.operators
}

// Goal calls the script's goal function.
func (p *Problem) Goal(s search.State) bool {
	v, err := p.call(p.goal, stateValue(s))
	if err != nil {
		p.fail(fmt.Errorf("goal(%s): %w", s.ID(), err))
		return false
	}
	return bool(v.Truth())
}

// Heuristic returns the script's heuristic, or nil if it defines none.
func (p *Problem) Heuristic() search.Heuristic {
	if p.heuristic == nil {
		return nil
	}
	return search.HeuristicFunc(func(s search.State) float64 {
		v, err := p.call(p.heuristic, stateValue(s))
		if err != nil {
			p.fail(fmt.Errorf("heuristic(%s): %w", s.ID(), err))
			return 0
		}
		f, ok := starlark.AsFloat(v)
		if !ok || f < 0 || math.IsNaN(f) {
			p.fail(fmt.Errorf("heuristic(%s) returned %s, want a non-negative number", s.ID(), v))
			return 0
		}
		return f
	})
}

// Fork returns a problem sharing the compiled script but with an empty
// failure record of its own.
func (p *Problem) Fork() *Problem {
	f := &Problem{
		name:      p.name,
		initial:   p.initial,
		goal:      p.goal,
		heuristic: p.heuristic,
		threads:   p.threads,
		operators: make([]search.Operator, len(p.operators)),
	}
	for i, op := range p.operators {
		bound := *op.(*Operator)
		bound.problem = f
		f.operators[i] = &bound
	}
	return f
}

// Err returns the first script failure seen during a search.
func (p *Problem) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Problem) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *Problem) call(fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	thread := p.threads.Get().(*starlark.Thread)
	thread.Steps = 0
	v, err := starlark.Call(thread, fn, starlark.Tuple(args), nil)
	if err != nil {
		// A thread that hit its step budget stays canceled.
		return nil, err
	}
	p.threads.Put(thread)
	return v, nil
}

func stateValue(s search.State) starlark.Value {
	if st, ok := s.(State); ok {
		return st.value
	}
	return starlark.String(s.ID())
}

// Operator is a scripted transition.
type Operator struct {
	problem   *Problem
	name      string
	apply     starlark.Callable
	cost      starlark.Callable
	fixedCost float64
}

func (p *Problem) newOperator(i int, v starlark.Value) (*Operator, error) {
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("operator %d must be a dict, got %s", i, v.Type())
	}

	op := &Operator{problem: p, name: fmt.Sprintf("op%d", i), fixedCost: 1}
	if name, found, _ := dict.Get(starlark.String("name")); found {
		s, ok := starlark.AsString(name)
		if !ok {
			return nil, fmt.Errorf("operator %d: name must be a string", i)
		}
		op.name = s
	}

	apply, found, _ := dict.Get(starlark.String("apply"))
	if !found {
		return nil, fmt.Errorf("operator %s: apply is required", op.name)
	}
	if op.apply, ok = apply.(starlark.Callable); !ok {
		return nil, fmt.Errorf("operator %s: apply must be a function", op.name)
	}

	if cost, found, _ := dict.Get(starlark.String("cost")); found {
		switch c := cost.(type) {
		case starlark.Callable:
			op.cost = c
		default:
			f, ok := starlark.AsFloat(c)
			if !ok || f < 0 {
				return nil, fmt.Errorf("operator %s: cost must be a non-negative number or a function", op.name)
			}
			op.fixedCost = f
		}
	}
	return op, nil
}

// Name returns the operator name.
func (op *Operator) Name() string {
	return op.name
}

// Apply calls the script's apply function. None means inapplicable.
func (op *Operator) Apply(s search.State) (search.State, bool) {
	v, err := op.problem.call(op.apply, stateValue(s))
	if err != nil {
		op.problem.fail(fmt.Errorf("%s(%s): %w", op.name, s.ID(), err))
		return nil, false
	}
	if v == starlark.None {
		return nil, false
	}
	if _, err := v.Hash(); err != nil {
		op.problem.fail(fmt.Errorf("%s(%s) returned unhashable %s", op.name, s.ID(), v.Type()))
		return nil, false
	}
	v.Freeze()
	return State{value: v}, true
}

// Cost returns the fixed cost or calls the script's cost function. A
// failing cost function yields NaN, which the engine rejects.
func (op *Operator) Cost(s, succ search.State) float64 {
	if op.cost == nil {
		return op.fixedCost
	}
	v, err := op.problem.call(op.cost, stateValue(s), stateValue(succ))
	if err != nil {
		op.problem.fail(fmt.Errorf("cost of %s(%s): %w", op.name, s.ID(), err))
		return math.NaN()
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return math.NaN()
	}
	return f
}

// builtinHypot implements hypot(dx, dy).
func builtinHypot(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dx, dy starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &dx, &dy); err != nil {
		return nil, err
	}
	x, ok := starlark.AsFloat(dx)
	if !ok {
		return nil, fmt.Errorf("%s: dx must be a number", b.Name())
	}
	y, ok := starlark.AsFloat(dy)
	if !ok {
		return nil, fmt.Errorf("%s: dy must be a number", b.Name())
	}
	return starlark.Float(math.Hypot(x, y)), nil
}
