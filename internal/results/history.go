package results

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 20
)

// Run is one flushed run as stored in history.
type Run struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FlushedAt  time.Time `json:"flushedAt"`
	ReportPath string    `json:"reportPath"`
	Summary    Summary   `json:"summary"`
}

// StepRow is one step of a run.
type StepRow struct {
	Seq     int    `json:"seq"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Payload string `json:"payload"`
}

// History stores flushed runs in SQLite.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	h := &History{db: db, path: path}
	if err := h.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// RecordRun inserts or replaces run and its steps.
func (h *History) RecordRun(ctx context.Context, run Run, steps []StepRow) error {
	if strings.TrimSpace(run.RunID) == "" {
		return errors.New("run id required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := h.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		s := run.Summary
		if _, err := tx.ExecContext(ctx, `INSERT INTO runs (
				run_id, started_at, flushed_at, report_path,
				steps_total, steps_pass, steps_fail, steps_warning, steps_skipped,
				actions, nav_timings, requests
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				flushed_at = excluded.flushed_at,
				report_path = excluded.report_path,
				steps_total = excluded.steps_total,
				steps_pass = excluded.steps_pass,
				steps_fail = excluded.steps_fail,
				steps_warning = excluded.steps_warning,
				steps_skipped = excluded.steps_skipped,
				actions = excluded.actions,
				nav_timings = excluded.nav_timings,
				requests = excluded.requests`,
			run.RunID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FlushedAt.UTC().Format(time.RFC3339Nano),
			run.ReportPath,
			s.Steps, s.Pass, s.Fail, s.Warning, s.Skipped,
			s.Actions, s.NavTimings, s.Requests,
		); err != nil {
			return fmt.Errorf("upsert run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM steps WHERE run_id = ?", run.RunID); err != nil {
			return fmt.Errorf("clear steps: %w", err)
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO steps (run_id, seq, name, status, payload) VALUES (?, ?, ?, ?, ?)",
				run.RunID, step.Seq, nullableString(step.Name), step.Status, step.Payload,
			); err != nil {
				return fmt.Errorf("insert step %d: %w", step.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// ListRuns returns the most recently flushed runs first. Non-positive limit
// uses a default of 20.
func (h *History) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := h.db.QueryContext(ctx, `SELECT
			run_id, started_at, flushed_at, report_path,
			steps_total, steps_pass, steps_fail, steps_warning, steps_skipped,
			actions, nav_timings, requests
		FROM runs ORDER BY flushed_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedRaw string
			flushedRaw string
		)
		s := &run.Summary
		if err := rows.Scan(
			&run.RunID, &startedRaw, &flushedRaw, &run.ReportPath,
			&s.Steps, &s.Pass, &s.Fail, &s.Warning, &s.Skipped,
			&s.Actions, &s.NavTimings, &s.Requests,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Other = s.Steps - s.Pass - s.Fail - s.Warning - s.Skipped
		if t, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
			run.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, flushedRaw); err == nil {
			run.FlushedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the steps recorded for runID in order.
func (h *History) Steps(ctx context.Context, runID string) ([]StepRow, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT seq, name, status, payload FROM steps WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRow
	for rows.Next() {
		var (
			step StepRow
			name sql.NullString
		)
		if err := rows.Scan(&step.Seq, &name, &step.Status, &step.Payload); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Name = name.String
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

type migration struct {
	version string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{version: strings.TrimSuffix(name, ".sql"), sql: string(data)})
	}
	return migrations, nil
}

func (h *History) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
