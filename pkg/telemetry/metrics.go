package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Search outcomes used as metric label values.
const (
	OutcomeSolved    = "solved"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
	OutcomeFailed    = "failed"
)

// Metrics provides Prometheus metrics for search runs.
type Metrics struct {
	config MetricsConfig

	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	solutionCost   *prometheus.HistogramVec
	nodesCreated   *prometheus.CounterVec
	nodesExpanded  *prometheus.CounterVec
	nodesDiscarded *prometheus.CounterVec
	peakLive       *prometheus.GaugeVec
	exploredSize   *prometheus.GaugeVec
	errorsByCode   *prometheus.CounterVec

	policyViolations *prometheus.CounterVec

	activeSearches prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of finished searches by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Wall time of search runs in seconds",
				Buckets:   buckets,
			},
			[]string{"strategy"},
		),
		solutionCost: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solution_cost",
				Help:      "Path cost of found solutions",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"strategy"},
		),
		nodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of search nodes created",
			},
			[]string{"strategy"},
		),
		nodesExpanded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_expanded_total",
				Help:      "Total number of search nodes expanded",
			},
			[]string{"strategy"},
		),
		nodesDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_discarded_total",
				Help:      "Total number of generated nodes rejected by the keep policy",
			},
			[]string{"strategy"},
		),
		peakLive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_live_nodes",
				Help:      "Peak number of live nodes of the last search",
			},
			[]string{"strategy"},
		),
		exploredSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "explored_size",
				Help:      "Explored table size of the last search",
			},
			[]string{"strategy"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of search errors by error code",
			},
			[]string{"code"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of report policy violations",
			},
			[]string{"policy"},
		),
		activeSearches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_searches",
				Help:      "Current number of running searches",
			},
		),
	}

	registry.MustRegister(
		m.searches,
		m.searchDuration,
		m.solutionCost,
		m.nodesCreated,
		m.nodesExpanded,
		m.nodesDiscarded,
		m.peakLive,
		m.exploredSize,
		m.errorsByCode,
		m.policyViolations,
		m.activeSearches,
	)

	return m, nil
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSearchStarted marks a search as running.
func (m *Metrics) RecordSearchStarted() {
	if m.activeSearches == nil {
		return
	}
	m.activeSearches.Inc()
}

// RecordSearchFinished records the outcome and counters of a finished search.
func (m *Metrics) RecordSearchFinished(strategy string, sol *search.Solution, stats search.Stats, err error) {
	if m.searches == nil {
		return
	}
	m.activeSearches.Dec()

	m.searches.WithLabelValues(strategy, Outcome(sol, err)).Inc()
	m.searchDuration.WithLabelValues(strategy).Observe(stats.Duration.Seconds())
	m.nodesCreated.WithLabelValues(strategy).Add(float64(stats.NodesCreated))
	m.nodesExpanded.WithLabelValues(strategy).Add(float64(stats.Expanded))
	m.nodesDiscarded.WithLabelValues(strategy).Add(float64(stats.Discarded))
	m.peakLive.WithLabelValues(strategy).Set(float64(stats.PeakLive))
	m.exploredSize.WithLabelValues(strategy).Set(float64(stats.ExploredSize))
	if sol != nil {
		m.solutionCost.WithLabelValues(strategy).Observe(sol.Cost())
	}

	var serr *search.Error
	if errors.As(err, &serr) {
		m.errorsByCode.WithLabelValues(serr.Code).Inc()
	}
}

// RecordPolicyViolation counts a failed report policy.
func (m *Metrics) RecordPolicyViolation(policy string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy).Inc()
}

// Outcome classifies a search result.
func Outcome(sol *search.Solution, err error) string {
	switch {
	case err != nil && search.IsCanceled(err):
		return OutcomeCanceled
	case err != nil:
		return OutcomeFailed
	case sol != nil:
		return OutcomeSolved
	default:
		return OutcomeExhausted
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint in the background until ctx
// is canceled.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", server.Addr).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", server.Addr).Str("path", path).Msg("serving metrics")
	return nil
}
