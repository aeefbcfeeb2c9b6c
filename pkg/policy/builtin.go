package policy

import (
	"time"
)

// Names of the built-in policies.
const (
	PolicySolutionRequired = "solution-required"
	PolicyBudget           = "budget"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		solutionRequiredPolicy(),
		budgetPolicy(),
	}
}

// solutionRequiredPolicy rejects failed runs and flags exhausted ones.
func solutionRequiredPolicy() Policy {
	return Policy{
		Name:        PolicySolutionRequired,
		Description: "Rejects runs that failed and warns about runs that found no solution",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"outcome"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package statesearch.policies.solution

import rego.v1

deny contains violation if {
	input.report.error
	violation := {
		"message": sprintf("%s failed: %s", [input.report.strategy, input.report.error]),
		"severity": "error",
	}
}

# An exhausted search is a legitimate answer, so it only warns.
deny contains violation if {
	not input.report.found
	not input.report.error
	violation := {
		"message": sprintf("%s found no solution after creating %d nodes", [input.report.strategy, input.report.stats.nodes_created]),
		"severity": "warning",
	}
}
`,
	}
}

// budgetPolicy enforces the max_cost, max_depth, max_nodes and
// max_peak_live parameters. Unset parameters are not checked.
func budgetPolicy() Policy {
	return Policy{
		Name:        PolicyBudget,
		Description: "Rejects runs that exceed the cost, depth or memory budget",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"budget"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package statesearch.policies.budget

import rego.v1

params := object.get(input.context, "params", {})

deny contains violation if {
	limit := params.max_cost
	input.report.found
	input.report.cost > limit
	violation := {
		"message": sprintf("%s solution cost %v exceeds budget %v", [input.report.strategy, input.report.cost, limit]),
		"details": {"cost": input.report.cost, "max_cost": limit},
	}
}

deny contains violation if {
	limit := params.max_depth
	input.report.found
	input.report.depth > limit
	violation := {
		"message": sprintf("%s solution depth %d exceeds budget %d", [input.report.strategy, input.report.depth, limit]),
		"details": {"depth": input.report.depth, "max_depth": limit},
	}
}

deny contains violation if {
	limit := params.max_nodes
	input.report.stats.nodes_created > limit
	violation := {
		"message": sprintf("%s created %d nodes, budget is %d", [input.report.strategy, input.report.stats.nodes_created, limit]),
		"details": {"nodes_created": input.report.stats.nodes_created, "max_nodes": limit},
	}
}

deny contains violation if {
	limit := params.max_peak_live
	input.report.stats.peak_live > limit
	violation := {
		"message": sprintf("%s held %d live nodes, budget is %d", [input.report.strategy, input.report.stats.peak_live, limit]),
		"severity": "warning",
		"details": {"peak_live": input.report.stats.peak_live, "max_peak_live": limit},
	}
}
`,
	}
}
