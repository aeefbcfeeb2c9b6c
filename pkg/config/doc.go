// Package config loads search scenarios.
//
// A scenario names a problem and the strategies to run on it. Scenarios are
// written in YAML, JSON or CUE:
//
//	name: maze
//	timeout: 10s
//	problem:
//	  kind: grid
//	  grid:
//	    directions: 8
//	    heuristic: euclidean
//	    map:
//	      - "S...#...."
//	      - "..#.#.##."
//	      - "..#...#.G"
//	strategies:
//	  - name: astar
//	  - name: iterative-deepening
//	    step: 2
//	    max_depth: 20
//
// Every scenario is unified with a CUE schema first, so structural errors
// are reported with their position, then checked against the validator
// rules of Scenario. Build turns a valid scenario into an Instance holding
// the problem, its heuristic and a factory for the configured searchers.
//
// Problem kinds are counting, grid and script. Script problems are Starlark
// files (see package script) referenced relative to the scenario file, or
// given inline.
package config
