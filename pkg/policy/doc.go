// Package policy judges search run reports with Open Policy Agent (OPA)
// Rego policies.
//
// Every policy is a Rego module defining a deny set. The engine binds the
// report being judged to input.report, using the same field names as the
// report's JSON form, and the evaluation environment to input.context. A
// deny entry is either a message string or an object with message,
// severity and details keys; entries without a severity take the policy's
// default. A report is rejected when any entry is error or critical.
//
// # Built-in Policies
//
//  1. solution-required - rejects failed runs and warns about exhausted ones
//  2. budget - enforces the max_cost, max_depth, max_nodes and max_peak_live
//     parameters when they are set
//
// # Usage
//
//	engine, err := policy.NewEngine(logger, policy.WithParams(map[string]interface{}{
//	    "max_cost": 20,
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := engine.EvaluateReports(ctx, reports)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, result := range summary.Results {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// Custom policies:
//
//	package statesearch.policies.depth
//
//	import rego.v1
//
//	# Solutions deeper than ten steps are suspicious.
//	deny contains msg if {
//	    input.report.depth > 10
//	    msg := sprintf("%s: depth %d", [input.report.strategy, input.report.depth])
//	}
//
// Loader.Watch reloads policy files on change; pass Engine.ReplacePolicies
// as its callback for hot reload.
package policy
