package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"cuelang.org/go/cue"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader reads and validates scenario files. YAML and CUE sources are both
// checked against the CUE scenario schema, then against the validator rules
// of the Scenario struct.
type Loader struct {
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a scenario loader.
func NewLoader() (*Loader, error) {
	schemas, err := NewSchemaRegistry()
	if err != nil {
		return nil, err
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Loader{schemas: schemas, validator: v}, nil
}

// LoadFile reads a scenario, choosing the format by extension (.yaml, .yml,
// .cue or .json).
func (l *Loader) LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}

	var sc *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		sc, err = l.ParseYAML(data, path)
	case ".cue":
		sc, err = l.ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	sc.Source = path
	return sc, nil
}

// ParseYAML parses a YAML (or JSON) scenario.
func (l *Loader) ParseYAML(data []byte, filename string) (*Scenario, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if err := l.schemas.ValidateData(raw); err != nil {
		return nil, relocate(err, filename)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	if err := l.Validate(&sc); err != nil {
		return nil, withFile(err, filename)
	}
	return &sc, nil
}

// ParseCUE parses a CUE scenario. The file's top level is the scenario.
func (l *Loader) ParseCUE(data []byte, filename string) (*Scenario, error) {
	val := l.schemas.Context().CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	unified, err := l.schemas.Unify(val)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := unified.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	if err := l.Validate(&sc); err != nil {
		return nil, withFile(err, filename)
	}
	return &sc, nil
}

// Validate checks the validator rules of a decoded scenario.
func (l *Loader) Validate(sc *Scenario) error {
	var out ValidationErrors

	if err := l.validator.Struct(sc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate scenario: %w", err)
		}
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Path:    fieldPath(fe.Namespace()),
				Message: describeFieldError(fe),
			})
		}
	}
	if _, err := sc.TimeoutDuration(); err != nil {
		out = append(out, ValidationError{Path: "timeout", Message: err.Error()})
	}
	if c := sc.Problem.Counting; c != nil && c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		out = append(out, ValidationError{Path: "problem.counting", Message: "min must not exceed max"})
	}

	if len(out) > 0 {
		return out
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "required_with", "required_without":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param())
	}
}

func withFile(err error, filename string) error {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for i := range verrs {
		if verrs[i].File == "" {
			verrs[i].File = filename
		}
	}
	return verrs
}

// relocate attributes schema errors to filename. Positions of errors found
// in encoded data point into the schema, so they are dropped.
func relocate(err error, filename string) error {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for i := range verrs {
		verrs[i].File = filename
		verrs[i].Line, verrs[i].Column = 0, 0
	}
	return verrs
}
