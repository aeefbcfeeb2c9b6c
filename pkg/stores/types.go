package stores

import (
	"context"
	"errors"
	"time"

	"github.com/openfroyo/statesearch/pkg/runner"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ReportFilter narrows ListReports. Zero fields match everything.
type ReportFilter struct {
	Scenario string
	Strategy string
	Outcome  string
	Limit    int
	Offset   int
}

// Verdict is a stored policy violation attached to a report.
type Verdict struct {
	ID         int64     `json:"id" yaml:"id"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	Policy     string    `json:"policy" yaml:"policy"`
	Severity   string    `json:"severity" yaml:"severity"`
	Message    string    `json:"message" yaml:"message"`
	DetectedAt time.Time `json:"detected_at" yaml:"detected_at"`
}

// StrategySummary aggregates the stored runs of one strategy.
type StrategySummary struct {
	Strategy    string        `json:"strategy" yaml:"strategy"`
	Runs        int           `json:"runs" yaml:"runs"`
	Solved      int           `json:"solved" yaml:"solved"`
	Failed      int           `json:"failed" yaml:"failed"`
	BestCost    float64       `json:"best_cost" yaml:"best_cost"`
	AvgCreated  float64       `json:"avg_created" yaml:"avg_created"`
	AvgDuration time.Duration `json:"avg_duration" yaml:"avg_duration"`
}

// Store defines the interface for the report history.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Report operations
	SaveReport(ctx context.Context, report *runner.Report) error
	SaveReports(ctx context.Context, reports []*runner.Report) error
	GetReport(ctx context.Context, id string) (*runner.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*runner.Report, error)
	DeleteReport(ctx context.Context, id string) error
	Summarize(ctx context.Context, scenario string) ([]StrategySummary, error)

	// Verdict operations
	SaveVerdicts(ctx context.Context, verdicts []Verdict) error
	ListVerdicts(ctx context.Context, runID string) ([]Verdict, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
