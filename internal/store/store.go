// Package store persists cross-validation and sweep results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gojson "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"caterpillar/internal/quality"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Store represents the SQLite-based results store
type Store struct {
	db   *sql.DB
	path string
}

// Run describes one invocation of train, evaluate or sweep
type Run struct {
	ID        string
	Kind      string // train, evaluate or sweep
	StartedAt time.Time
	Config    any // Serialized as JSON
}

// Result is one labeled metrics row of a run, e.g. a fold, a halo or a sweep setting
type Result struct {
	Label   string
	Metrics quality.Metrics
}

// RunSummary is a stored run with its aggregate over all results
type RunSummary struct {
	ID        string
	Kind      string
	StartedAt time.Time
	Results   int
	Total     quality.Metrics
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			config TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			f1 REAL,
			metrics TEXT NOT NULL,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs (id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its results in one transaction, replacing any run with the same id
func (s *Store) SaveRun(ctx context.Context, run Run, results []Result) (err error) {
	config, err := gojson.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to encode run config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, kind, started_at, config) VALUES (?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt.UTC(), string(config)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, r := range results {
		data, merr := gojson.Marshal(r.Metrics)
		if merr != nil {
			err = fmt.Errorf("failed to encode metrics for %s: %w", r.Label, merr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO results (run_id, position, label, f1, metrics) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, r.Label, r.Metrics.F1, string(data)); err != nil {
			return fmt.Errorf("failed to insert result %s: %w", r.Label, err)
		}
	}
	return tx.Commit()
}

// Results returns the results of a run in insertion order
func (s *Store) Results(ctx context.Context, runID string) ([]Result, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT label, metrics FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var data string
		if err := rows.Scan(&r.Label, &data); err != nil {
			return nil, err
		}
		if err := gojson.Unmarshal([]byte(data), &r.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics for %s: %w", r.Label, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, started_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt); err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		results, err := s.Results(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		metrics := make([]quality.Metrics, len(results))
		for k, r := range results {
			metrics[k] = r.Metrics
		}
		runs[i].Results = len(results)
		runs[i].Total = quality.Aggregate(metrics...)
	}
	return runs, nil
}

// DeleteRun removes a run and its results
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
