package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openfroyo/statesearch/pkg/domains/counting"
	"github.com/openfroyo/statesearch/pkg/search"
)

type harness struct {
	tel    *Telemetry
	spans  *tracetest.InMemoryExporter
	logs   *bytes.Buffer
	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{logs: &bytes.Buffer{}, spans: tracetest.NewInMemoryExporter()}

	cfg := DefaultConfig()
	cfg.Logging.Writer = h.logs
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"
	cfg.Events.EnableAsync = false

	tel, err := NewTelemetry(cfg)
	require.NoError(t, err)
	tel.Tracer = NewTracerWithExporter("test", h.spans)
	tel.Events.Subscribe(func(e Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	}, nil)

	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	h.tel = tel
	return h
}

func (h *harness) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, len(h.events))
	for i, e := range h.events {
		types[i] = e.Type
	}
	return types
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestObserverSolvedSearch(t *testing.T) {
	h := newHarness(t)
	bfs := search.BreadthFirst(search.WithObserver(h.tel.Observer("run-1")))

	sol, err := bfs.Search(context.Background(), counting.NewProblem(0, 5, []int{1, 2}))
	require.NoError(t, err)
	require.NotNil(t, sol)
	stats := bfs.Stats()

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "search.breadth-first", spans[0].Name)
	outcome, ok := spanAttr(spans[0].Attributes, AttrOutcome)
	require.True(t, ok)
	assert.Equal(t, OutcomeSolved, outcome.AsString())
	created, ok := spanAttr(spans[0].Attributes, AttrNodesCreated)
	require.True(t, ok)
	assert.Equal(t, int64(stats.NodesCreated), created.AsInt64())
	runID, _ := spanAttr(spans[0].Attributes, AttrRunID)
	assert.Equal(t, "run-1", runID.AsString())

	m := h.tel.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues(search.StrategyBreadthFirst, OutcomeSolved)))
	assert.Equal(t, float64(stats.NodesCreated), testutil.ToFloat64(m.nodesCreated.WithLabelValues(search.StrategyBreadthFirst)))
	assert.Equal(t, float64(stats.Expanded), testutil.ToFloat64(m.nodesExpanded.WithLabelValues(search.StrategyBreadthFirst)))
	assert.Equal(t, float64(stats.PeakLive), testutil.ToFloat64(m.peakLive.WithLabelValues(search.StrategyBreadthFirst)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeSearches))

	assert.Equal(t, []string{EventTypeSearchStarted, EventTypeSearchSolved}, h.eventTypes())
	assert.Equal(t, "run-1", h.events[1].RunID)
	assert.Equal(t, sol.Cost(), h.events[1].Data["cost"])

	logs := h.logs.String()
	assert.Contains(t, logs, `"run_id":"run-1"`)
	assert.Contains(t, logs, "search started")
	assert.Contains(t, logs, "solution found")
}

func TestObserverExhaustedSearch(t *testing.T) {
	h := newHarness(t)
	bfs := search.BreadthFirst(search.WithObserver(h.tel.Observer("run-2")))

	sol, err := bfs.Search(context.Background(), counting.NewProblem(0, 10, []int{1}, counting.WithBounds(0, 5)))
	require.NoError(t, err)
	require.Nil(t, sol)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.tel.Metrics.searches.WithLabelValues(search.StrategyBreadthFirst, OutcomeExhausted)))
	assert.Equal(t, []string{EventTypeSearchStarted, EventTypeSearchExhausted}, h.eventTypes())
	assert.Equal(t, 0, testutil.CollectAndCount(h.tel.Metrics.solutionCost))
}

func TestObserverCanceledSearch(t *testing.T) {
	h := newHarness(t)
	astar := search.AStar(search.WithObserver(h.tel.Observer("run-3")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := counting.NewProblem(0, 50, []int{1, 3})
	_, err := astar.Search(ctx, p, p.Heuristic())
	require.Error(t, err)
	require.True(t, search.IsCanceled(err))

	m := h.tel.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues(search.StrategyAStar, OutcomeCanceled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByCode.WithLabelValues(search.ErrCodeCanceled)))
	assert.Equal(t, []string{EventTypeSearchStarted, EventTypeSearchFailed}, h.eventTypes())
	assert.Contains(t, h.logs.String(), "search failed")

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestObserverIterativeDeepeningSingleSpan(t *testing.T) {
	h := newHarness(t)
	id := search.NewIterativeDeepening(1, 10, search.WithObserver(h.tel.Observer("run-4")))

	sol, err := id.Search(context.Background(), counting.NewProblem(0, 5, []int{1, 2}))
	require.NoError(t, err)
	require.NotNil(t, sol)

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	iterations, ok := spanAttr(spans[0].Attributes, AttrIterations)
	require.True(t, ok)
	assert.Equal(t, int64(id.Stats().Iterations), iterations.AsInt64())
	assert.Equal(t, []string{EventTypeSearchStarted, EventTypeSearchSolved}, h.eventTypes())
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	m.RecordSearchStarted()
	m.RecordSearchFinished("astar", nil, search.Stats{NodesCreated: 3}, nil)
	m.RecordPolicyViolation("solution_required")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `statesearch_searches_total{outcome="exhausted",strategy="astar"} 1`)
	assert.Contains(t, string(body), `statesearch_policy_violations_total{policy="solution_required"} 1`)
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	m.RecordSearchStarted()
	m.RecordSearchFinished("astar", nil, search.Stats{}, nil)
	m.RecordPolicyViolation("x")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
	require.NoError(t, m.StartMetricsServer(context.Background(), zerolog.Nop()))
}

func TestOutcome(t *testing.T) {
	sol, err := search.BreadthFirst().Search(context.Background(), counting.NewProblem(0, 0, []int{1}))
	require.NoError(t, err)
	require.NotNil(t, sol)
	canceled := search.NewError(search.ErrCodeCanceled, "canceled", context.Canceled)

	assert.Equal(t, OutcomeSolved, Outcome(sol, nil))
	assert.Equal(t, OutcomeExhausted, Outcome(nil, nil))
	assert.Equal(t, OutcomeCanceled, Outcome(nil, canceled))
	assert.Equal(t, OutcomeFailed, Outcome(nil, search.ErrInvalidProblem))
}

func TestEventPublisherAsync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:       true,
		BufferSize:    16,
		FlushInterval: time.Hour,
		MaxBatchSize:  10,
		EnableAsync:   true,
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var got []Event
	ep.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	}, FilterByRunID("a"))

	require.NoError(t, ep.PublishSearchStarted("a", "astar"))
	require.NoError(t, ep.PublishSearchStarted("b", "astar"))
	require.NoError(t, ep.PublishSearchFailed("a", "astar", "boom"))
	require.NoError(t, ep.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, EventTypeSearchStarted, got[0].Type)
	assert.Equal(t, EventTypeSearchFailed, got[1].Type)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.False(t, got[0].Timestamp.IsZero())

	assert.Error(t, ep.PublishSearchStarted("a", "astar"), "publishing after shutdown")
}

func TestEventFilters(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 1})
	require.NoError(t, err)
	ep.AddFilter(FilterByLevel(EventLevelWarning))

	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Type) }, FilterByType(EventTypePolicyViolation, EventTypeSearchExhausted))

	require.NoError(t, ep.PublishSearchStarted("r", "astar"))
	require.NoError(t, ep.PublishSearchExhausted("r", "astar", 12))
	require.NoError(t, ep.PublishSearchFailed("r", "astar", "x"))
	require.NoError(t, ep.PublishPolicyViolation("r", "cost_budget", "too expensive"))

	assert.Equal(t, []string{EventTypeSearchExhausted, EventTypePolicyViolation}, got)
}

func TestDisabledEventPublisher(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, ep.PublishSearchStarted("r", "astar"))
	assert.NoError(t, ep.Shutdown(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"development", func(c *Config) { *c = *DevelopmentConfig() }, true},
		{"no service name", func(c *Config) { c.ServiceName = "" }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, false},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }, false},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, false},
		{"empty buffer", func(c *Config) { c.Events.BufferSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	ctx := l.NewComponentLogger("runner").WithScenario("maze").WithContext(context.Background())
	FromContext(ctx).WithStrategy("astar").Info("done")
	FromContext(ctx).Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"component":"runner"`)
	assert.Contains(t, out, `"scenario":"maze"`)
	assert.Contains(t, out, `"strategy":"astar"`)
	assert.False(t, strings.Contains(out, "hidden"))

	FromContext(context.Background()).Info("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}
