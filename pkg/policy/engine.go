package policy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/telemetry"
)

// Engine judges run reports against a set of Rego policies.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	params   map[string]interface{}
	env      string
	logger   zerolog.Logger
	tel      *telemetry.Telemetry
}

// compiledPolicy is a policy with its deny query prepared.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithParams sets the parameters exposed as input.context.params.
func WithParams(params map[string]interface{}) EngineOption {
	return func(e *Engine) {
		for k, v := range params {
			e.params[k] = v
		}
	}
}

// WithEnvironment sets input.context.environment.
func WithEnvironment(env string) EngineOption {
	return func(e *Engine) {
		e.env = env
	}
}

// WithTelemetry counts every violation and publishes it as an event.
func WithTelemetry(tel *telemetry.Telemetry) EngineOption {
	return func(e *Engine) {
		e.tel = tel
	}
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		params:   make(map[string]interface{}),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// Evaluate judges a single report.
func (e *Engine) Evaluate(ctx context.Context, report *runner.Report) (*Result, error) {
	if report == nil {
		return nil, fmt.Errorf("report is nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.evaluate(ctx, report), nil
}

// EvaluateReports judges every report of a bench.
func (e *Engine) EvaluateReports(ctx context.Context, reports []*runner.Report) (*Summary, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	summary := &Summary{
		Results:              make([]*Result, 0, len(reports)),
		TotalPolicies:        len(e.enabled()),
		ViolationsBySeverity: make(map[Severity]int),
	}

	for _, report := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if report == nil {
			continue
		}

		result := e.evaluate(ctx, report)
		summary.Results = append(summary.Results, result)
		summary.TotalViolations += len(result.Violations)
		for i := range result.Violations {
			summary.ViolationsBySeverity[result.Violations[i].Severity]++
		}
		if result.Allowed {
			summary.Allowed++
		} else {
			summary.Blocked++
		}
	}

	summary.Duration = time.Since(start)
	e.logger.Debug().
		Int("reports", len(summary.Results)).
		Int("violations", summary.TotalViolations).
		Int("blocked", summary.Blocked).
		Dur("duration", summary.Duration).
		Msg("Report policy evaluation completed")

	return summary, nil
}

// evaluate runs every enabled policy against report. Callers hold e.mu.
func (e *Engine) evaluate(ctx context.Context, report *runner.Report) *Result {
	start := time.Now()

	input := &Input{
		Report: report,
		Context: &Context{
			Scenario:    report.Scenario,
			Environment: e.env,
			Timestamp:   start,
			Params:      e.params,
		},
	}

	result := &Result{
		RunID:    report.ID,
		Strategy: report.Strategy,
		Allowed:  true,
	}

	for _, cp := range e.enabled() {
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("run_id", report.ID).
				Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}

		for i := range violations {
			if violations[i].Severity.blocking() {
				result.Allowed = false
			}
			e.report(&violations[i])
		}
		result.Violations = append(result.Violations, violations...)
	}

	result.EvaluatedAt = time.Now()
	result.Duration = time.Since(start)
	return result
}

// enabled returns the enabled policies sorted by name.
func (e *Engine) enabled() []*compiledPolicy {
	names := slices.Sorted(maps.Keys(e.policies))
	out := make([]*compiledPolicy, 0, len(names))
	for _, name := range names {
		if cp := e.policies[name]; cp.policy.Enabled {
			out = append(out, cp)
		}
	}
	return out
}

// evaluatePolicy evaluates the deny set of a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, e.createViolation(cp.policy, d, input.Report))
		}
	}

	return violations, nil
}

// createViolation converts a deny entry. Entries are either plain messages
// or objects with message, severity and details keys.
func (e *Engine) createViolation(policy *Policy, entry interface{}, report *runner.Report) Violation {
	violation := Violation{
		Policy:     policy.Name,
		RunID:      report.ID,
		Strategy:   report.Strategy,
		Severity:   policy.Severity,
		DetectedAt: time.Now(),
	}

	switch v := entry.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if details, ok := v["details"].(map[string]interface{}); ok {
			violation.Details = details
		}
	default:
		violation.Message = fmt.Sprintf("%v", entry)
	}

	return violation
}

func (e *Engine) report(v *Violation) {
	e.logger.Debug().
		Str("policy", v.Policy).
		Str("run_id", v.RunID).
		Str("severity", string(v.Severity)).
		Msg(v.Message)

	if e.tel == nil {
		return
	}
	e.tel.Metrics.RecordPolicyViolation(v.Policy)
	if err := e.tel.Events.PublishPolicyViolation(v.RunID, v.Policy, v.Message); err != nil {
		e.logger.Warn().Err(err).Str("policy", v.Policy).Msg("Failed to publish policy violation")
	}
}

// LoadPolicies loads policy files and directories and adds them to the
// engine. A policy with the name of a loaded one replaces it.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// ReplacePolicies swaps every loaded policy for policies, keeping the
// built-ins. Nothing changes if any policy fails to compile. It matches
// the reload callback of Loader.Watch.
func (e *Engine) ReplacePolicies(policies []Policy) error {
	ctx := context.Background()
	staged := make(map[string]*compiledPolicy, len(policies))
	for i := range policies {
		cp, err := compile(ctx, &policies[i])
		if err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
		staged[policies[i].Name] = cp
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for name, cp := range e.policies {
		if !cp.policy.Builtin {
			delete(e.policies, name)
		}
	}
	maps.Copy(e.policies, staged)

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies replaced")
	return nil
}

func compile(ctx context.Context, policy *Policy) (*compiledPolicy, error) {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.ParsedModule(module),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}

	return &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}, nil
}

// compileAndStorePolicy compiles a policy and stores it. Callers hold e.mu.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	cp, err := compile(ctx, policy)
	if err != nil {
		return err
	}
	e.policies[policy.Name] = cp

	e.logger.Debug().
		Str("policy", policy.Name).
		Str("package", cp.module.Package.Path.String()).
		Msg("Policy compiled successfully")

	return nil
}

// loadBuiltinPolicies loads the built-in policies.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(ctx, &builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}

	e.logger.Debug().
		Int("count", len(builtins)).
		Msg("Built-in policies loaded")

	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range slices.Sorted(maps.Keys(e.policies)) {
		policies = append(policies, *e.policies[name].policy)
	}

	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy state changed")

	return nil
}
