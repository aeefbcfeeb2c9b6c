package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// scenarioSchema is the structural schema every scenario is unified with,
// whatever its source format. Cross-field rules live in the validator tags
// of Scenario.
const scenarioSchema = `
#Strategy: {
	name: "breadth-first" | "depth-first" | "depth-limited" | "iterative-deepening" |
		"uniform-cost" | "greedy" | "astar" | "graph-breadth-first"
	depth_limit?: int & >=0
	step?:        int & >=0
	max_depth?:   int & >=0
}

#Counting: {
	start:      *0 | int
	target:     int
	increments: [...int & !=0] & [_, ...]
	min?:       int
	max?:       int
}

#Grid: {
	map:         [...string] & [_, ...]
	directions?: 4 | 8
	heuristic?:  "euclidean" | "manhattan" | "zero"
}

#Script: {
	file?:      string
	source?:    string
	params?:    {...}
	max_steps?: int & >=0
}

#Scenario: {
	name:         string & !=""
	description?: string
	timeout?:     string
	problem: {
		kind:      "counting" | "grid" | "script"
		counting?: #Counting
		grid?:     #Grid
		script?:   #Script
	}
	strategies: [...#Strategy] & [_, ...]
}
`

// SchemaRegistry holds the compiled scenario schema.
type SchemaRegistry struct {
	ctx      *cue.Context
	scenario cue.Value
}

// NewSchemaRegistry compiles the built-in schema.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(scenarioSchema, cue.Filename("scenario-schema.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}
	def := val.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up #Scenario: %w", err)
	}
	return &SchemaRegistry{ctx: ctx, scenario: def}, nil
}

// Context returns the CUE context the schema was compiled in.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// Unify unifies val with the scenario schema and requires the result to be
// concrete.
func (sr *SchemaRegistry) Unify(val cue.Value) (cue.Value, error) {
	unified := sr.scenario.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}
	return unified, nil
}

// ValidateData encodes plain Go data (as decoded from YAML) and checks it
// against the scenario schema.
func (sr *SchemaRegistry) ValidateData(data interface{}) error {
	val := sr.ctx.Encode(data)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	_, err := sr.Unify(val)
	return err
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: errors.Details(e, nil),
		}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}
