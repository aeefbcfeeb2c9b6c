package config

import (
	"fmt"
	"time"
)

// Problem kinds.
const (
	KindCounting = "counting"
	KindGrid     = "grid"
	KindScript   = "script"
)

// Scenario describes a problem and the strategies to run on it.
type Scenario struct {
	// Name identifies the scenario in reports.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description is free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Problem selects and parameterizes the problem domain.
	Problem ProblemConfig `json:"problem" yaml:"problem"`

	// Strategies lists the strategies to run, in order.
	Strategies []StrategyConfig `json:"strategies" yaml:"strategies" validate:"required,min=1,dive"`

	// Timeout bounds each strategy run (e.g. "30s"). Empty means no bound.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Source is the file the scenario was read from.
	Source string `json:"-" yaml:"-"`
}

// ProblemConfig holds exactly one domain configuration, matching Kind.
type ProblemConfig struct {
	// Kind is the problem domain (counting, grid, script).
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=counting grid script"`

	// Counting configures a counting problem.
	Counting *CountingConfig `json:"counting,omitempty" yaml:"counting,omitempty" validate:"required_if=Kind counting"`

	// Grid configures a grid world problem.
	Grid *GridConfig `json:"grid,omitempty" yaml:"grid,omitempty" validate:"required_if=Kind grid"`

	// Script configures a Starlark problem.
	Script *ScriptConfig `json:"script,omitempty" yaml:"script,omitempty" validate:"required_if=Kind script"`
}

// CountingConfig configures the counting domain.
type CountingConfig struct {
	// Start is the initial value.
	Start int `json:"start" yaml:"start"`

	// Target is the goal threshold: any value >= Target is a goal.
	Target int `json:"target" yaml:"target"`

	// Increments are the operators, applied in order.
	Increments []int `json:"increments" yaml:"increments" validate:"required,min=1,dive,ne=0"`

	// Min and Max bound the reachable values when both are set.
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty" validate:"required_with=Min"`
}

// GridConfig configures the grid domain.
type GridConfig struct {
	// Map is the world, one string per row: '#' blocked, 'S' start, 'G' goal.
	Map []string `json:"map" yaml:"map" validate:"required,min=1"`

	// Directions is 4 or 8. Defaults to 4.
	Directions int `json:"directions,omitempty" yaml:"directions,omitempty" validate:"omitempty,oneof=4 8"`

	// Heuristic is euclidean, manhattan or zero. Defaults to euclidean.
	Heuristic string `json:"heuristic,omitempty" yaml:"heuristic,omitempty" validate:"omitempty,oneof=euclidean manhattan zero"`
}

// ScriptConfig configures a Starlark problem.
type ScriptConfig struct {
	// File is the script path, relative to the scenario file.
	File string `json:"file,omitempty" yaml:"file,omitempty" validate:"required_without=Source"`

	// Source is an inline script.
	Source string `json:"source,omitempty" yaml:"source,omitempty" validate:"required_without=File"`

	// Params are predeclared in the script.
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`

	// MaxSteps bounds every call into the script.
	MaxSteps uint64 `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
}

// StrategyConfig selects one search strategy.
type StrategyConfig struct {
	// Name is a strategy name such as breadth-first or astar.
	Name string `json:"name" yaml:"name" validate:"required,oneof=breadth-first depth-first depth-limited iterative-deepening uniform-cost greedy astar graph-breadth-first"`

	// DepthLimit bounds depth-limited search.
	DepthLimit int `json:"depth_limit,omitempty" yaml:"depth_limit,omitempty" validate:"gte=0"`

	// Step is the bound increment of iterative deepening. Defaults to 1.
	Step int `json:"step,omitempty" yaml:"step,omitempty" validate:"gte=0"`

	// MaxDepth is the largest bound of iterative deepening.
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty" validate:"gte=0"`
}

// TimeoutDuration parses Timeout. It returns zero when no timeout is set.
func (s *Scenario) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s.Timeout)
	}
	return d, nil
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path of the error (e.g. "problem.grid.map").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// String formats the error with its location.
func (ve ValidationError) String() string {
	loc := ve.File
	if ve.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", ve.File, ve.Line, ve.Column)
	}
	switch {
	case loc != "" && ve.Path != "":
		return fmt.Sprintf("%s: %s: %s", loc, ve.Path, ve.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, ve.Message)
	case ve.Path != "":
		return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
	default:
		return ve.Message
	}
}

// ValidationErrors is returned when a scenario fails validation.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 1 {
		return "invalid scenario: " + ve[0].String()
	}
	return fmt.Sprintf("invalid scenario: %s (and %d more)", ve[0].String(), len(ve)-1)
}
