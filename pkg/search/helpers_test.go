package search_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/statesearch/pkg/search"
)

// vertex is a state of an explicit weighted graph.
type vertex string

func (v vertex) ID() string { return string(v) }

// edge is an operator applicable only in its source vertex.
type edge struct {
	from, to vertex
	cost     float64
}

func (e edge) Name() string { return fmt.Sprintf("%s->%s", e.from, e.to) }

func (e edge) Apply(s search.State) (search.State, bool) {
	if s.(vertex) != e.from {
		return nil, false
	}
	return e.to, true
}

func (e edge) Cost(_, _ search.State) float64 { return e.cost }

func graphProblem(initial, goal vertex, edges ...edge) search.Problem {
	ops := make([]search.Operator, len(edges))
	for i, e := range edges {
		ops[i] = e
	}
	return search.NewProblem(initial, ops, func(s search.State) bool {
		return s.(vertex) == goal
	})
}

// recordingObserver counts lifecycle notifications.
type recordingObserver struct {
	mu       sync.Mutex
	started  []search.SearchInfo
	finished []search.Stats
	expanded int
	errs     []error
}

func (o *recordingObserver) SearchStarted(ctx context.Context, info search.SearchInfo) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, info)
	return ctx
}

func (o *recordingObserver) NodeExpanded(context.Context, search.SearchInfo, *search.Node, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expanded++
}

func (o *recordingObserver) SearchFinished(_ context.Context, _ search.SearchInfo, _ *search.Solution, stats search.Stats, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, stats)
	o.errs = append(o.errs, err)
}
