package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/search"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testReport(id, strategy string, started time.Time) *runner.Report {
	return &runner.Report{
		ID:       id,
		Scenario: "count",
		Strategy: strategy,
		Found:    true,
		Depth:    3,
		Cost:     9,
		Actions:  []string{"+1", "+2", "+2"},
		Stats: search.Stats{
			NodesCreated: 40,
			NodesLive:    12,
			PeakLive:     20,
			Expanded:     14,
			Discarded:    2,
			ExploredSize: 8,
			Steps:        15,
			Iterations:   1,
			Duration:     3 * time.Millisecond,
		},
		StartedAt: started,
		Duration:  4 * time.Millisecond,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	// Migrating twice is a no-op.
	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migration %d failed: %v", i, err)
		}
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"reports", "verdicts", "schema_migrations"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestReportRoundTrip tests that a saved report reads back unchanged
func TestReportRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Now()
	report := testReport("run-001", "astar", started)
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	got, err := store.GetReport(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get report: %v", err)
	}

	if got.Scenario != report.Scenario || got.Strategy != report.Strategy {
		t.Errorf("unexpected identity: %+v", got)
	}
	if !got.Found || got.Depth != 3 || got.Cost != 9 {
		t.Errorf("unexpected solution fields: %+v", got)
	}
	if len(got.Actions) != 3 || got.Actions[2] != "+2" {
		t.Errorf("unexpected actions: %v", got.Actions)
	}
	if got.Stats != report.Stats {
		t.Errorf("expected stats %+v, got %+v", report.Stats, got.Stats)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected start %v, got %v", started, got.StartedAt)
	}
	if got.Duration != report.Duration {
		t.Errorf("expected duration %v, got %v", report.Duration, got.Duration)
	}

	if err := store.SaveReport(ctx, report); err == nil {
		t.Error("expected error for duplicate run ID")
	}
	if err := store.SaveReport(ctx, &runner.Report{}); err == nil {
		t.Error("expected error for report without ID")
	}

	_, err = store.GetReport(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestFailedReport tests that failed and exhausted runs are stored
func TestFailedReport(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	failed := &runner.Report{ID: "run-failed", Scenario: "count", Strategy: "greedy", Error: "search canceled", StartedAt: time.Now()}
	exhausted := &runner.Report{ID: "run-exhausted", Scenario: "count", Strategy: "depth-limited", StartedAt: time.Now()}
	if err := store.SaveReports(ctx, []*runner.Report{failed, exhausted}); err != nil {
		t.Fatalf("failed to save reports: %v", err)
	}

	got, err := store.GetReport(ctx, "run-failed")
	if err != nil {
		t.Fatalf("failed to get report: %v", err)
	}
	if got.Error != "search canceled" || got.Outcome() != "failed" {
		t.Errorf("unexpected failed report: %+v", got)
	}
	if got.Actions != nil {
		t.Errorf("expected no actions, got %v", got.Actions)
	}

	got, err = store.GetReport(ctx, "run-exhausted")
	if err != nil {
		t.Fatalf("failed to get report: %v", err)
	}
	if got.Outcome() != "exhausted" {
		t.Errorf("expected exhausted, got %s", got.Outcome())
	}
}

// TestListReports tests filtering and pagination
func TestListReports(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now()
	reports := []*runner.Report{
		testReport("run-1", "astar", base),
		testReport("run-2", "breadth-first", base.Add(time.Second)),
		testReport("run-3", "astar", base.Add(2*time.Second)),
	}
	other := testReport("run-4", "astar", base.Add(3*time.Second))
	other.Scenario = "grid"
	other.Found = false
	other.Actions = nil
	reports = append(reports, other)

	if err := store.SaveReports(ctx, reports); err != nil {
		t.Fatalf("failed to save reports: %v", err)
	}

	tests := []struct {
		name   string
		filter ReportFilter
		want   []string
	}{
		{name: "all newest first", filter: ReportFilter{}, want: []string{"run-4", "run-3", "run-2", "run-1"}},
		{name: "by scenario", filter: ReportFilter{Scenario: "count"}, want: []string{"run-3", "run-2", "run-1"}},
		{name: "by strategy", filter: ReportFilter{Scenario: "count", Strategy: "astar"}, want: []string{"run-3", "run-1"}},
		{name: "by outcome", filter: ReportFilter{Outcome: "exhausted"}, want: []string{"run-4"}},
		{name: "limit", filter: ReportFilter{Limit: 2}, want: []string{"run-4", "run-3"}},
		{name: "offset", filter: ReportFilter{Limit: 2, Offset: 3}, want: []string{"run-1"}},
		{name: "no match", filter: ReportFilter{Strategy: "greedy"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListReports(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list reports: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d reports, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

// TestSaveReportsAtomic tests that a failing batch stores nothing
func TestSaveReportsAtomic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	batch := []*runner.Report{
		testReport("run-a", "astar", time.Now()),
		testReport("run-a", "greedy", time.Now()),
	}
	if err := store.SaveReports(ctx, batch); err == nil {
		t.Fatal("expected error for duplicate IDs in batch")
	}

	got, err := store.ListReports(ctx, ReportFilter{})
	if err != nil {
		t.Fatalf("failed to list reports: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected rolled back batch, found %d reports", len(got))
	}
}

// TestSummarize tests per-strategy aggregation
func TestSummarize(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cheap := testReport("run-1", "astar", time.Now())
	cheap.Cost = 5
	costly := testReport("run-2", "astar", time.Now())
	costly.Cost = 9
	costly.Stats.NodesCreated = 60
	failed := &runner.Report{ID: "run-3", Scenario: "count", Strategy: "greedy", Error: "boom", StartedAt: time.Now()}
	elsewhere := testReport("run-4", "astar", time.Now())
	elsewhere.Scenario = "grid"
	elsewhere.Cost = 1

	if err := store.SaveReports(ctx, []*runner.Report{cheap, costly, failed, elsewhere}); err != nil {
		t.Fatalf("failed to save reports: %v", err)
	}

	summaries, err := store.Summarize(ctx, "count")
	if err != nil {
		t.Fatalf("failed to summarize: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(summaries))
	}

	astar := summaries[0]
	if astar.Strategy != "astar" || astar.Runs != 2 || astar.Solved != 2 || astar.Failed != 0 {
		t.Errorf("unexpected astar summary: %+v", astar)
	}
	if astar.BestCost != 5 {
		t.Errorf("expected best cost 5, got %v", astar.BestCost)
	}
	if astar.AvgCreated != 50 {
		t.Errorf("expected average of 50 nodes, got %v", astar.AvgCreated)
	}
	if astar.AvgDuration != 4*time.Millisecond {
		t.Errorf("expected average duration 4ms, got %v", astar.AvgDuration)
	}

	greedy := summaries[1]
	if greedy.Strategy != "greedy" || greedy.Runs != 1 || greedy.Failed != 1 || greedy.BestCost != 0 {
		t.Errorf("unexpected greedy summary: %+v", greedy)
	}

	all, err := store.Summarize(ctx, "")
	if err != nil {
		t.Fatalf("failed to summarize: %v", err)
	}
	if all[0].Runs != 3 || all[0].BestCost != 1 {
		t.Errorf("unexpected summary across scenarios: %+v", all[0])
	}
}

// TestVerdicts tests verdict storage and foreign key cascading
func TestVerdicts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SaveReport(ctx, testReport("run-1", "astar", time.Now())); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	verdicts := []Verdict{
		{RunID: "run-1", Policy: "budget", Severity: "error", Message: "cost 9 exceeds budget 5"},
		{RunID: "run-1", Policy: "depth", Severity: "warning", Message: "deep", DetectedAt: time.Now()},
	}
	if err := store.SaveVerdicts(ctx, verdicts); err != nil {
		t.Fatalf("failed to save verdicts: %v", err)
	}

	got, err := store.ListVerdicts(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list verdicts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(got))
	}
	if got[0].Policy != "budget" || got[1].Policy != "depth" {
		t.Errorf("unexpected verdict order: %+v", got)
	}
	if got[0].DetectedAt.IsZero() || got[0].ID == 0 {
		t.Errorf("expected ID and detection time to be set: %+v", got[0])
	}

	orphan := []Verdict{{RunID: "missing", Policy: "budget", Severity: "error", Message: "x"}}
	if err := store.SaveVerdicts(ctx, orphan); err == nil {
		t.Error("expected foreign key violation for unknown run")
	}

	if err := store.DeleteReport(ctx, "run-1"); err != nil {
		t.Fatalf("failed to delete report: %v", err)
	}
	got, err = store.ListVerdicts(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list verdicts: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected verdicts to cascade, found %d", len(got))
	}

	if err := store.DeleteReport(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
