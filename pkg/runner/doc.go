// Package runner executes scenario strategies and reports their outcome.
//
// Bench runs every strategy of a scenario on a bounded errgroup worker pool;
// Run executes a single strategy and Trace steps through one run. Every run
// builds a fresh searcher, receives a uuid run ID and is bounded by the
// scenario timeout. Search failures, including timeouts, end up in the
// Report rather than in the returned error.
package runner
