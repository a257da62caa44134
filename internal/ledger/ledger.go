// Package ledger records batch runs and per-document outcomes in SQLite or
// PostgreSQL.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
)

// Store persists run history.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// DocumentRecord is one document's outcome within a run.
type DocumentRecord struct {
	Path        string
	Fingerprint string
	Output      string
	Engine      string
	Route       domain.Route
	Status      domain.StatusCode
	Pages       int
	Attempts    int
	Elapsed     time.Duration
	Error       string
}

// RunSummary is a row of the runs table.
type RunSummary struct {
	ID         string
	Input      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Documents  int
	Failures   int
	ExitCode   domain.StatusCode
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		documents INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		output TEXT NOT NULL,
		engine TEXT NOT NULL,
		route TEXT NOT NULL,
		status INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		error TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_fingerprint_idx ON documents (fingerprint, output, status)`,
}

// Open connects to the configured ledger and applies the schema. The none
// driver returns a nil store.
func Open(ctx context.Context, cfg config.LedgerConfig) (*Store, error) {
	var driver, dsn string
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		driver, dsn = "sqlite3", cfg.Path
	case "postgres":
		driver, dsn = "postgres", cfg.Postgres
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported ledger driver: %s", cfg.Driver), nil)
	}
	if dsn == "" {
		return nil, domain.ConfigError(fmt.Sprintf("ledger driver %s needs a path or dsn", cfg.Driver), nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a run row.
func (s *Store) StartRun(ctx context.Context, id, input string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, started_at) VALUES ($1, $2, $3)`,
		id, input, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordDocument inserts one document outcome.
func (s *Store) RecordDocument(ctx context.Context, runID string, rec DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(run_id, path, fingerprint, output, engine, route, status, pages, attempts, elapsed_ms, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		runID, rec.Path, rec.Fingerprint, rec.Output, rec.Engine, string(rec.Route),
		int(rec.Status), rec.Pages, rec.Attempts, rec.Elapsed.Milliseconds(), rec.Error,
		formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FinishRun stores the batch totals.
func (s *Store) FinishRun(ctx context.Context, batch *domain.BatchResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = $1, documents = $2, failures = $3, exit_code = $4
		WHERE id = $5`,
		formatTime(s.now()), len(batch.Results), batch.FailureCount, int(batch.ExitCode), batch.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Converted reports whether a document with this content was already
// converted successfully to the same output path.
func (s *Store) Converted(ctx context.Context, fingerprint, output string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM documents
		WHERE fingerprint = $1 AND output = $2 AND status = 0
		LIMIT 1`, fingerprint, output).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query converted: %w", err)
	}
	return true, nil
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, started_at, finished_at, documents, failures, exit_code
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var finished sql.NullString
		var exit int
		if err := rows.Scan(&r.ID, &r.Input, &started, &finished, &r.Documents, &r.Failures, &exit); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseDBTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := parseDBTime(finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			r.FinishedAt = &t
		}
		r.ExitCode = domain.StatusCode(exit)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Documents lists the document rows of a run in insertion order.
func (s *Store) Documents(ctx context.Context, runID string) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, fingerprint, output, engine, route, status, pages, attempts, elapsed_ms, error
		FROM documents
		WHERE run_id = $1
		ORDER BY recorded_at, path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		var route string
		var status int
		var elapsedMS int64
		if err := rows.Scan(&d.Path, &d.Fingerprint, &d.Output, &d.Engine, &route, &status,
			&d.Pages, &d.Attempts, &elapsedMS, &d.Error); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Route = domain.Route(route)
		d.Status = domain.StatusCode(status)
		d.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseDBTime parses timestamps returned by SQLite or RFC3339 formats.
func parseDBTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time: %s", s)
}
