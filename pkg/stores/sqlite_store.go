package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/statesearch/pkg/runner"
	"github.com/openfroyo/statesearch/pkg/search"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertReport = `
	INSERT INTO reports (
		id, scenario, strategy, outcome, found, depth, cost, actions, error,
		nodes_created, nodes_live, peak_live, expanded, discarded, explored_size,
		steps, iterations, search_duration_ns, started_at_ns, duration_ns, created_at_ns
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func saveReport(ctx context.Context, ex execer, report *runner.Report) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("report ID is required")
	}

	actions := report.Actions
	if actions == nil {
		actions = []string{}
	}
	encoded, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	st := report.Stats
	_, err = ex.ExecContext(ctx, insertReport,
		report.ID,
		report.Scenario,
		report.Strategy,
		report.Outcome(),
		report.Found,
		report.Depth,
		report.Cost,
		string(encoded),
		report.Error,
		st.NodesCreated,
		st.NodesLive,
		st.PeakLive,
		st.Expanded,
		st.Discarded,
		st.ExploredSize,
		st.Steps,
		st.Iterations,
		st.Duration.Nanoseconds(),
		report.StartedAt.UnixNano(),
		report.Duration.Nanoseconds(),
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}
	return nil
}

// SaveReport stores a single report.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *runner.Report) error {
	return saveReport(ctx, s.db, report)
}

// SaveReports stores the reports of a bench in one transaction.
func (s *SQLiteStore) SaveReports(ctx context.Context, reports []*runner.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, report := range reports {
		if err := saveReport(ctx, tx, report); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reports: %w", err)
	}
	return nil
}

const selectReport = `
	SELECT id, scenario, strategy, found, depth, cost, actions, error,
		nodes_created, nodes_live, peak_live, expanded, discarded, explored_size,
		steps, iterations, search_duration_ns, started_at_ns, duration_ns
	FROM reports
`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*runner.Report, error) {
	var (
		report                          runner.Report
		st                              search.Stats
		actions                         string
		searchNs, startedNs, durationNs int64
	)

	err := row.Scan(
		&report.ID,
		&report.Scenario,
		&report.Strategy,
		&report.Found,
		&report.Depth,
		&report.Cost,
		&actions,
		&report.Error,
		&st.NodesCreated,
		&st.NodesLive,
		&st.PeakLive,
		&st.Expanded,
		&st.Discarded,
		&st.ExploredSize,
		&st.Steps,
		&st.Iterations,
		&searchNs,
		&startedNs,
		&durationNs,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actions), &report.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions of report %s: %w", report.ID, err)
	}
	if len(report.Actions) == 0 {
		report.Actions = nil
	}
	st.Duration = time.Duration(searchNs)
	report.Stats = st
	report.StartedAt = time.Unix(0, startedNs)
	report.Duration = time.Duration(durationNs)

	return &report, nil
}

// GetReport retrieves a report by run ID
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*runner.Report, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx, selectReport+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports lists reports matching filter, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]*runner.Report, error) {
	var (
		where []string
		args  []any
	)
	if filter.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, filter.Scenario)
	}
	if filter.Strategy != "" {
		where = append(where, "strategy = ?")
		args = append(args, filter.Strategy)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	query := selectReport
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at_ns DESC, id LIMIT ? OFFSET ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*runner.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// DeleteReport deletes a report and its verdicts.
func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("report %s: %w", id, ErrNotFound)
	}

	return nil
}

// Summarize aggregates stored runs per strategy. An empty scenario
// summarizes every scenario.
func (s *SQLiteStore) Summarize(ctx context.Context, scenario string) ([]StrategySummary, error) {
	query := `
		SELECT strategy,
			COUNT(*),
			SUM(CASE WHEN outcome = 'solved' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END),
			COALESCE(MIN(CASE WHEN found = 1 THEN cost END), 0.0),
			AVG(nodes_created),
			AVG(duration_ns)
		FROM reports
		WHERE ? = '' OR scenario = ?
		GROUP BY strategy
		ORDER BY strategy
	`

	rows, err := s.db.QueryContext(ctx, query, scenario, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reports: %w", err)
	}
	defer rows.Close()

	summaries := []StrategySummary{}
	for rows.Next() {
		var (
			sum         StrategySummary
			avgDuration float64
		)
		if err := rows.Scan(&sum.Strategy, &sum.Runs, &sum.Solved, &sum.Failed, &sum.BestCost, &sum.AvgCreated, &avgDuration); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.AvgDuration = time.Duration(avgDuration)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}

// SaveVerdicts stores policy violations in one transaction. Every verdict
// must reference a stored report.
func (s *SQLiteStore) SaveVerdicts(ctx context.Context, verdicts []Verdict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO verdicts (run_id, policy, severity, message, detected_at_ns)
		VALUES (?, ?, ?, ?, ?)
	`
	for i := range verdicts {
		v := &verdicts[i]
		detected := v.DetectedAt
		if detected.IsZero() {
			detected = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, v.RunID, v.Policy, v.Severity, v.Message, detected.UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save verdict for %s: %w", v.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verdicts: %w", err)
	}
	return nil
}

// ListVerdicts returns the verdicts of a run in insertion order.
func (s *SQLiteStore) ListVerdicts(ctx context.Context, runID string) ([]Verdict, error) {
	query := `
		SELECT id, run_id, policy, severity, message, detected_at_ns
		FROM verdicts
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []Verdict{}
	for rows.Next() {
		var (
			v          Verdict
			detectedNs int64
		)
		if err := rows.Scan(&v.ID, &v.RunID, &v.Policy, &v.Severity, &v.Message, &detectedNs); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.DetectedAt = time.Unix(0, detectedNs)
		verdicts = append(verdicts, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verdicts: %w", err)
	}

	return verdicts, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
