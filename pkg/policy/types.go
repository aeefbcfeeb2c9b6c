package policy

import (
	"time"

	"github.com/openfroyo/statesearch/pkg/runner"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that reject a run.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// blocking reports whether a violation of this severity rejects the run.
func (s Severity) blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny set judges run reports.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Rego contains the policy module. It must define a deny set.
	Rego string `json:"rego" yaml:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity" yaml:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Builtin is set for the policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty" yaml:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Violation is a single deny entry produced by a policy.
type Violation struct {
	Policy     string                 `json:"policy" yaml:"policy"`
	RunID      string                 `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Strategy   string                 `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Message    string                 `json:"message" yaml:"message"`
	Severity   Severity               `json:"severity" yaml:"severity"`
	Details    map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	DetectedAt time.Time              `json:"detected_at" yaml:"detected_at"`
}

// Result is the verdict on one report.
type Result struct {
	// RunID is the ID of the judged report.
	RunID string `json:"run_id" yaml:"run_id"`

	// Strategy is the strategy of the judged report.
	Strategy string `json:"strategy" yaml:"strategy"`

	// Allowed is false when any violation has a blocking severity.
	Allowed bool `json:"allowed" yaml:"allowed"`

	// Violations lists every deny entry, blocking or not.
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies" yaml:"evaluated_policies"`

	// EvaluatedAt is when the report was judged.
	EvaluatedAt time.Time `json:"evaluated_at" yaml:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Input is the document bound to input in every policy.
type Input struct {
	Report  *runner.Report `json:"report"`
	Context *Context       `json:"context"`
}

// Context carries the evaluation environment.
type Context struct {
	// Scenario is the name of the scenario the report belongs to.
	Scenario string `json:"scenario,omitempty"`

	// Environment is the deployment environment (e.g. "ci", "dev").
	Environment string `json:"environment,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Params are policy parameters such as max_cost or max_nodes.
	Params map[string]interface{} `json:"params"`
}

// Bundle is a named collection of policies shipped in one file.
type Bundle struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description" yaml:"description"`
	Policies    []Policy `json:"policies" yaml:"policies"`
}

// Summary aggregates the verdicts of a bench.
type Summary struct {
	// Results are the per-report verdicts, in report order.
	Results []*Result `json:"results" yaml:"results"`

	// TotalPolicies is the number of enabled policies.
	TotalPolicies int `json:"total_policies" yaml:"total_policies"`

	// TotalViolations is the total number of violations.
	TotalViolations int `json:"total_violations" yaml:"total_violations"`

	// ViolationsBySeverity breaks down violations by severity.
	ViolationsBySeverity map[Severity]int `json:"violations_by_severity" yaml:"violations_by_severity"`

	// Allowed is the number of reports without blocking violations.
	Allowed int `json:"allowed" yaml:"allowed"`

	// Blocked is the number of reports with blocking violations.
	Blocked int `json:"blocked" yaml:"blocked"`

	// Duration is the total evaluation time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Passed reports whether no report was blocked.
func (s *Summary) Passed() bool {
	return s.Blocked == 0
}
