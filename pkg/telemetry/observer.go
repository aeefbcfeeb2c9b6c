package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/statesearch/pkg/search"
)

// SearchObserver reports search runs to a Telemetry instance: one span per
// run, metrics from the final stats, lifecycle events, and debug logs.
type SearchObserver struct {
	tel    *Telemetry
	runID  string
	logger *Logger
}

var _ search.Observer = (*SearchObserver)(nil)

// SearchStarted opens the run's span.
func (o *SearchObserver) SearchStarted(ctx context.Context, info search.SearchInfo) context.Context {
	ctx, _ = o.tel.Tracer.StartSearchSpan(ctx, o.runID, info)
	o.tel.Metrics.RecordSearchStarted()
	o.logger.WithStrategy(info.Strategy).Debugf("search started (depth limit %d)", info.DepthLimit)
	if err := o.tel.Events.PublishSearchStarted(o.runID, info.Strategy); err != nil {
		o.logger.WithError(err).Warn("failed to publish event")
	}
	return ctx
}

// NodeExpanded logs the expansion at trace level.
func (o *SearchObserver) NodeExpanded(_ context.Context, info search.SearchInfo, n *search.Node, kept int) {
	e := o.logger.zlog.Trace()
	if !e.Enabled() {
		return
	}
	e.Str("strategy", info.Strategy).
		Str("state", n.State().ID()).
		Int("depth", n.Depth()).
		Float64("cost", n.Cost()).
		Int("kept", kept).
		Msg("node expanded")
}

// SearchFinished records the outcome and ends the run's span.
func (o *SearchObserver) SearchFinished(ctx context.Context, info search.SearchInfo, sol *search.Solution, stats search.Stats, err error) {
	EndSearchSpan(trace.SpanFromContext(ctx), sol, stats, err)
	o.tel.Metrics.RecordSearchFinished(info.Strategy, sol, stats, err)

	logger := o.logger.WithStrategy(info.Strategy).WithFields(map[string]interface{}{
		"created":  stats.NodesCreated,
		"expanded": stats.Expanded,
		"peak":     stats.PeakLive,
		"duration": stats.Duration.String(),
	})

	var pubErr error
	switch {
	case err != nil:
		logger.WithError(err).Warn("search failed")
		pubErr = o.tel.Events.PublishSearchFailed(o.runID, info.Strategy, err.Error())
	case sol != nil:
		logger.Debugf("solution found: cost %g, depth %d", sol.Cost(), sol.Dimension())
		pubErr = o.tel.Events.PublishSearchSolved(o.runID, info.Strategy, sol.Cost(), sol.Dimension(), stats.Duration)
	default:
		logger.Debug("no solution")
		pubErr = o.tel.Events.PublishSearchExhausted(o.runID, info.Strategy, stats.NodesCreated)
	}
	if pubErr != nil {
		o.logger.WithError(pubErr).Warn("failed to publish event")
	}
}
