package search

import (
	"context"
	"time"
)

// Stats are the counters of one search run. They are reset at the start of
// every search and never shared between runs.
type Stats struct {
	// NodesCreated is the number of nodes constructed during the run.
	NodesCreated int `json:"nodes_created" yaml:"nodes_created"`

	// NodesLive is the number of nodes held by the frontier or the explored
	// table when the run finished.
	NodesLive int `json:"nodes_live" yaml:"nodes_live"`

	// PeakLive is the maximum number of nodes held simultaneously by the
	// frontier or the explored table.
	PeakLive int `json:"peak_live" yaml:"peak_live"`

	// Expanded is the number of nodes whose operators were applied.
	Expanded int `json:"expanded" yaml:"expanded"`

	// Discarded is the number of generated nodes rejected by the keep policy.
	Discarded int `json:"discarded" yaml:"discarded"`

	// ExploredSize is the size of the explored table (graph search only).
	ExploredSize int `json:"explored_size" yaml:"explored_size"`

	// Steps is the number of nodes removed from the frontier.
	Steps int `json:"steps" yaml:"steps"`

	// Iterations is the number of depth-bounded passes (1 for single-pass
	// strategies).
	Iterations int `json:"iterations" yaml:"iterations"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// merge folds the stats of a later pass into s. Counters are summed;
// peak and table sizes keep the maximum; live nodes are taken from the
// later pass.
func (s Stats) merge(next Stats) Stats {
	out := s
	out.NodesCreated += next.NodesCreated
	out.Expanded += next.Expanded
	out.Discarded += next.Discarded
	out.Steps += next.Steps
	out.Iterations += next.Iterations
	out.Duration += next.Duration
	out.NodesLive = next.NodesLive
	if next.PeakLive > out.PeakLive {
		out.PeakLive = next.PeakLive
	}
	if next.ExploredSize > out.ExploredSize {
		out.ExploredSize = next.ExploredSize
	}
	return out
}

// SearchInfo describes the run an Observer is notified about.
type SearchInfo struct {
	// Strategy is the engine name.
	Strategy string

	// DepthLimit is the depth bound of the pass, or -1 when unbounded.
	DepthLimit int

	// Iteration is the 1-based pass number of iterative strategies.
	Iteration int
}

// Observer receives search lifecycle notifications. It is the engine's only
// instrumentation hook; the engine itself never logs.
type Observer interface {
	// SearchStarted is called once per search before the root is created.
	// The returned context is used for the rest of the run.
	SearchStarted(ctx context.Context, info SearchInfo) context.Context

	// NodeExpanded is called after a node's successors were memorized.
	// kept is the number of successors that entered the frontier.
	NodeExpanded(ctx context.Context, info SearchInfo, n *Node, kept int)

	// SearchFinished is called once per search with the final outcome.
	// A nil solution with a nil error means no solution exists.
	SearchFinished(ctx context.Context, info SearchInfo, sol *Solution, stats Stats, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

// SearchStarted returns ctx unchanged.
func (NopObserver) SearchStarted(ctx context.Context, _ SearchInfo) context.Context {
	return ctx
}

// NodeExpanded does nothing.
func (NopObserver) NodeExpanded(context.Context, SearchInfo, *Node, int) {}

// SearchFinished does nothing.
func (NopObserver) SearchFinished(context.Context, SearchInfo, *Solution, Stats, error) {}
