package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openfroyo/statesearch/pkg/search"
)

// Tracer wraps the OpenTelemetry tracer with search spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a new tracer with the given configuration.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		provider := sdktrace.NewTracerProvider()
		return &Tracer{
			provider: provider,
			tracer:   provider.Tracer(serviceName),
			config:   cfg,
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = createStdoutExporter(cfg)
	case "none":
		exporter = nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(
			exporter,
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		))
	}

	provider := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// NewTracerWithExporter creates a tracer that exports synchronously to exp.
// It does not touch the global provider.
func NewTracerWithExporter(serviceName string, exp sdktrace.SpanExporter) *Tracer {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   TracingConfig{Enabled: true},
	}
}

func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithUserAgent("statesearch")))

	return otlptracegrpc.New(context.Background(), opts...)
}

func createStdoutExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartSpan is a convenience method that starts a span with attributes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartSearchSpan starts the span of one search run.
func (t *Tracer) StartSearchSpan(ctx context.Context, runID string, info search.SearchInfo) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "search."+info.Strategy,
		AttrRunID.String(runID),
		AttrStrategy.String(info.Strategy),
		AttrDepthLimit.Int(info.DepthLimit),
	)
}

// StartBenchSpan starts the span that groups the searches of one scenario.
func (t *Tracer) StartBenchSpan(ctx context.Context, scenario string, strategies int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "bench",
		AttrScenario.String(scenario),
		attribute.Int("bench.strategies", strategies),
	)
}

// EndSearchSpan records the outcome and counters of a search and ends span.
func EndSearchSpan(span trace.Span, sol *search.Solution, stats search.Stats, err error) {
	span.SetAttributes(
		AttrOutcome.String(Outcome(sol, err)),
		AttrNodesCreated.Int(stats.NodesCreated),
		AttrNodesExpanded.Int(stats.Expanded),
		AttrPeakLive.Int(stats.PeakLive),
		AttrExploredSize.Int(stats.ExploredSize),
		AttrIterations.Int(stats.Iterations),
	)
	if sol != nil {
		span.SetAttributes(
			AttrSolutionCost.Float64(sol.Cost()),
			AttrSolutionDepth.Int(sol.Dimension()),
		)
	}
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown gracefully shuts down the tracer, flushing any pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush forces all pending spans to be exported immediately.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// Attribute keys of search spans.
var (
	AttrRunID         = attribute.Key("run.id")
	AttrScenario      = attribute.Key("scenario.name")
	AttrStrategy      = attribute.Key("search.strategy")
	AttrDepthLimit    = attribute.Key("search.depth_limit")
	AttrOutcome       = attribute.Key("search.outcome")
	AttrNodesCreated  = attribute.Key("search.nodes_created")
	AttrNodesExpanded = attribute.Key("search.nodes_expanded")
	AttrPeakLive      = attribute.Key("search.peak_live")
	AttrExploredSize  = attribute.Key("search.explored_size")
	AttrIterations    = attribute.Key("search.iterations")
	AttrSolutionCost  = attribute.Key("solution.cost")
	AttrSolutionDepth = attribute.Key("solution.depth")
)
