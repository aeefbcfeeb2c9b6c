package runner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/statesearch/pkg/config"
	"github.com/openfroyo/statesearch/pkg/search"
	"github.com/openfroyo/statesearch/pkg/telemetry"
)

// Runner executes the strategies of a scenario. Each run gets its own
// searcher, so runs never share a frontier or an explored table.
type Runner struct {
	parallelism int
	tel         *telemetry.Telemetry
	logger      zerolog.Logger
	newID       func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds the number of concurrent runs of Bench. Values
// below 1 select GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.parallelism = n
		}
	}
}

// WithTelemetry reports every run to tel. Without it, runs report to the
// telemetry bound to their context, if any.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(r *Runner) {
		r.tel = tel
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		parallelism: runtime.GOMAXPROCS(0),
		logger:      zerolog.Nop(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "runner").Logger()
	return r
}

// Run executes one strategy. Search failures are recorded in the report;
// the returned error is reserved for strategies that cannot be built.
func (r *Runner) Run(ctx context.Context, inst *config.Instance, cfg config.StrategyConfig) (*Report, *search.Solution, error) {
	report := r.newReport(inst, cfg)
	sess := inst.Session()

	searcher, err := sess.NewSearcher(cfg, r.searchOptions(ctx, report.ID)...)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy %s: %w", cfg.Name, err)
	}

	ctx, cancel, err := r.withTimeout(ctx, inst)
	if err != nil {
		return nil, nil, err
	}
	defer cancel()

	sol, err := searcher.Search(ctx, sess.Problem)
	r.complete(ctx, report, sess, sol, searcher.Stats(), err)
	return report, sol, nil
}

// Bench runs every strategy of the scenario on a bounded worker pool and
// returns the reports in scenario order.
func (r *Runner) Bench(ctx context.Context, inst *config.Instance) ([]*Report, error) {
	strategies := inst.Scenario.Strategies
	reports := make([]*Report, len(strategies))

	if tel := r.telemetry(ctx); tel != nil {
		var span trace.Span
		ctx, span = tel.Tracer.StartBenchSpan(ctx, inst.Scenario.Name, len(strategies))
		defer span.End()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i, cfg := range strategies {
		g.Go(func() error {
			report, _, err := r.Run(gctx, inst, cfg)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("scenario", inst.Scenario.Name).
		Int("strategies", len(strategies)).
		Str("trace_id", telemetry.TraceID(ctx)).
		Msg("bench finished")
	return reports, nil
}

// StepFunc receives every step of a traced run.
type StepFunc func(step search.StepResult, stats search.Stats, open int) error

// Trace executes one strategy step by step, calling fn after every step.
// Iterative deepening cannot be traced.
func (r *Runner) Trace(ctx context.Context, inst *config.Instance, cfg config.StrategyConfig, fn StepFunc) (*Report, *search.Solution, error) {
	report := r.newReport(inst, cfg)
	sess := inst.Session()

	ctx, cancel, err := r.withTimeout(ctx, inst)
	if err != nil {
		return nil, nil, err
	}
	defer cancel()

	run, err := r.start(ctx, sess, cfg, report.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy %s: %w", cfg.Name, err)
	}

	for !run.Done() {
		step, err := run.Step()
		if err != nil {
			break
		}
		if err := fn(step, run.Stats(), run.Frontier()); err != nil {
			return nil, nil, err
		}
	}

	sol := run.Solution()
	r.complete(ctx, report, sess, sol, run.Stats(), run.Err())
	return report, sol, nil
}

func (r *Runner) start(ctx context.Context, sess *config.Session, cfg config.StrategyConfig, runID string) (*search.Run, error) {
	opts := r.searchOptions(ctx, runID)

	if search.Informed(cfg.Name) {
		if sess.Heuristic == nil {
			return nil, search.NewError(search.ErrCodeMissingHeuristic, "problem defines no heuristic", nil).
				WithStrategy(cfg.Name)
		}
		informed := search.AStar(opts...)
		if cfg.Name == search.StrategyGreedy {
			informed = search.Greedy(opts...)
		}
		return informed.Start(ctx, sess.Problem, sess.Heuristic)
	}

	searcher, err := sess.NewSearcher(cfg, opts...)
	if err != nil {
		return nil, err
	}
	engine, ok := searcher.(*search.Engine)
	if !ok {
		return nil, search.NewError(search.ErrCodeInvalidOption, "strategy cannot be traced step by step", nil).
			WithStrategy(cfg.Name)
	}
	return engine.Start(ctx, sess.Problem)
}

// telemetry returns the runner's telemetry, falling back to the one bound
// to ctx.
func (r *Runner) telemetry(ctx context.Context) *telemetry.Telemetry {
	if r.tel != nil {
		return r.tel
	}
	return telemetry.FromTelemetryContext(ctx)
}

func (r *Runner) searchOptions(ctx context.Context, runID string) []search.Option {
	tel := r.telemetry(ctx)
	if tel == nil {
		return nil
	}
	return []search.Option{search.WithObserver(tel.Observer(runID))}
}

func (r *Runner) withTimeout(ctx context.Context, inst *config.Instance) (context.Context, context.CancelFunc, error) {
	timeout, err := inst.Scenario.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	if timeout == 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func (r *Runner) newReport(inst *config.Instance, cfg config.StrategyConfig) *Report {
	return &Report{
		ID:        r.newID(),
		Scenario:  inst.Scenario.Name,
		Strategy:  cfg.Name,
		StartedAt: time.Now(),
	}
}

func (r *Runner) complete(ctx context.Context, report *Report, sess *config.Session, sol *search.Solution, stats search.Stats, err error) {
	report.Duration = time.Since(report.StartedAt)
	report.Stats = stats
	if err == nil {
		err = sess.Err()
	}
	if sol != nil {
		report.Found = true
		report.Depth = sol.Dimension()
		report.Cost = sol.Cost()
		report.Actions = sol.Actions()
	}

	event := r.logger.Debug()
	if err != nil {
		report.Error = err.Error()
		event = r.logger.Warn().Err(err)
	}
	event.
		Str("run_id", report.ID).
		Str("scenario", report.Scenario).
		Str("strategy", report.Strategy).
		Str("outcome", report.Outcome()).
		Int("created", stats.NodesCreated).
		Dur("duration", report.Duration).
		Str("trace_id", telemetry.TraceID(ctx)).
		Msg("run finished")
}
