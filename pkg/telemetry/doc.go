// Package telemetry provides observability for search runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an event publisher into a single Telemetry value.
// The search engine never logs on its own; it reports to a search.Observer,
// and Telemetry.Observer returns the observer that feeds all four pillars.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	runID := uuid.NewString()
//	astar := search.AStar(search.WithObserver(tel.Observer(runID)))
//	sol, err := astar.Search(ctx, problem, heuristic)
//
// # Tracing
//
// Every run gets one span named after its strategy ("search.astar"). When
// the run ends the span carries the outcome, the node counters and, when a
// solution was found, its cost and depth. Iterative deepening reports one
// span for all of its passes. Exporters are stdout and OTLP over gRPC.
//
// # Metrics
//
// Metrics live in a private registry exposed by Metrics.Handler:
//
//	statesearch_searches_total{strategy,outcome}
//	statesearch_search_duration_seconds{strategy}
//	statesearch_solution_cost{strategy}
//	statesearch_nodes_created_total{strategy}
//	statesearch_nodes_expanded_total{strategy}
//	statesearch_nodes_discarded_total{strategy}
//	statesearch_peak_live_nodes{strategy}
//	statesearch_explored_size{strategy}
//	statesearch_errors_by_code_total{code}
//	statesearch_policy_violations_total{policy}
//	statesearch_active_searches
//
// Outcomes are solved, exhausted, canceled and failed.
//
// # Events
//
// The publisher emits search.started, search.solved, search.exhausted,
// search.failed and policy.violation events with uuid identifiers.
// Subscribers may filter by type, level or run.
package telemetry
