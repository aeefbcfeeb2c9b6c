package runner

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Report is the outcome of one strategy run on one scenario.
type Report struct {
	// ID uniquely identifies the run.
	ID string `json:"id" yaml:"id"`

	// Scenario is the name of the scenario that was run.
	Scenario string `json:"scenario" yaml:"scenario"`

	// Strategy is the strategy name.
	Strategy string `json:"strategy" yaml:"strategy"`

	// Found is true when a solution was found.
	Found bool `json:"found" yaml:"found"`

	// Depth is the solution's number of steps.
	Depth int `json:"depth" yaml:"depth"`

	// Cost is the solution's path cost.
	Cost float64 `json:"cost" yaml:"cost"`

	// Actions are the operator names along the solution.
	Actions []string `json:"actions,omitempty" yaml:"actions,omitempty"`

	// Stats are the run's counters.
	Stats search.Stats `json:"stats" yaml:"stats"`

	// Error is set when the run failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// Duration is the wall time of the run, setup included.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Outcome returns solved, exhausted or failed.
func (r *Report) Outcome() string {
	switch {
	case r.Error != "":
		return "failed"
	case r.Found:
		return "solved"
	default:
		return "exhausted"
	}
}

// String formats the report on one line.
func (r *Report) String() string {
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s: error: %s", r.Strategy, r.Error)
	case !r.Found:
		return fmt.Sprintf("%s: no solution (created %d, peak %d)", r.Strategy, r.Stats.NodesCreated, r.Stats.PeakLive)
	default:
		return fmt.Sprintf("%s: depth %d, cost %g, created %d, peak %d: %s",
			r.Strategy, r.Depth, r.Cost, r.Stats.NodesCreated, r.Stats.PeakLive, strings.Join(r.Actions, " "))
	}
}

// WriteTable prints reports as an aligned table.
func WriteTable(w io.Writer, reports []*Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tOUTCOME\tDEPTH\tCOST\tCREATED\tEXPANDED\tPEAK\tEXPLORED\tITER\tTIME")
	for _, r := range reports {
		depth, cost := "-", "-"
		if r.Found {
			depth, cost = fmt.Sprint(r.Depth), fmt.Sprintf("%g", r.Cost)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Strategy, r.Outcome(), depth, cost,
			r.Stats.NodesCreated, r.Stats.Expanded, r.Stats.PeakLive, r.Stats.ExploredSize,
			r.Stats.Iterations, r.Stats.Duration.Round(time.Microsecond))
	}
	return tw.Flush()
}
