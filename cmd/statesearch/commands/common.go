package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/statesearch/pkg/config"
	"github.com/openfroyo/statesearch/pkg/search"
	"github.com/openfroyo/statesearch/pkg/stores"
	"github.com/openfroyo/statesearch/pkg/telemetry"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// loadInstance reads, validates and builds a scenario file.
func loadInstance(ctx context.Context, path string) (*config.Instance, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	sc, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return config.Build(ctx, sc, nil)
}

// strategyConfig picks a strategy of the scenario. An empty name selects
// the first one; a known strategy missing from the scenario runs with
// default settings.
func strategyConfig(inst *config.Instance, name string) (config.StrategyConfig, error) {
	strategies := inst.Scenario.Strategies
	if name == "" {
		return strategies[0], nil
	}
	for _, s := range strategies {
		if s.Name == name {
			return s, nil
		}
	}
	if !slices.Contains(search.Strategies(), name) {
		return config.StrategyConfig{}, fmt.Errorf("unknown strategy %q", name)
	}
	return config.StrategyConfig{Name: name}, nil
}

// telemetryFlags are shared by the commands that run searches.
type telemetryFlags struct {
	metricsAddr   string
	traceExporter string
	otlpEndpoint  string
	environment   string
}

func (f *telemetryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&f.traceExporter, "trace-exporter", "none", "trace exporter: none, stdout or otlp")
	cmd.Flags().StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint")
	cmd.Flags().StringVar(&f.environment, "environment", "development", "deployment environment reported in traces")
}

// start builds the telemetry stack and starts the metrics server when an
// address was given. Logs go to the command's error stream.
func (f *telemetryFlags) start(ctx context.Context, cmd *cobra.Command) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Environment = f.environment
	cfg.Logging.Writer = cmd.ErrOrStderr()
	cfg.Logging.Level = "warn"
	if verbose {
		cfg.Logging.Level = "debug"
	}

	cfg.Metrics.Enabled = f.metricsAddr != ""
	cfg.Metrics.ListenAddress = f.metricsAddr

	switch f.traceExporter {
	case "", "none":
	case "stdout":
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
		cfg.Tracing.Writer = cmd.ErrOrStderr()
	case "otlp":
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "otlp"
		cfg.Tracing.Endpoint = f.otlpEndpoint
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", f.traceExporter)
	}

	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(ctx); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

// openStore opens the history database and applies pending migrations.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// writeStructured prints v in the selected structured format.
func writeStructured(w io.Writer, v any) error {
	switch outputFormat {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("output format %q is not structured", outputFormat)
	}
}
