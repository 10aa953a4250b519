// Package history persists pipeline run records in a local SQLite database so
// the daemon's status endpoint can report past runs across restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docpages/internal/pipeline"
)

// ErrNotFound is returned when no run record exists for the requested ID.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	RunID         string
	Repo          string
	SourceCommit  string
	Outcome       string
	FailedStage   string
	Error         string
	PublishCommit string
	Files         int
	Deleted       int
	UpToDate      bool
	StartedAt     time.Time
	Duration      time.Duration
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	repo           TEXT NOT NULL,
	source_commit  TEXT NOT NULL DEFAULT '',
	outcome        TEXT NOT NULL,
	failed_stage   TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	publish_commit TEXT NOT NULL DEFAULT '',
	files          INTEGER NOT NULL DEFAULT 0,
	deleted        INTEGER NOT NULL DEFAULT 0,
	up_to_date     INTEGER NOT NULL DEFAULT 0,
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Open opens (creating if necessary) the run history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite handles one writer at a time; constraining the pool avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record persists the outcome of a finished run.
func (s *Store) Record(ctx context.Context, res *pipeline.Result) error {
	rec := fromResult(res)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, repo, source_commit, outcome, failed_stage, error,
			publish_commit, files, deleted, up_to_date, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Repo, rec.SourceCommit, rec.Outcome, rec.FailedStage, rec.Error,
		rec.PublishCommit, rec.Files, rec.Deleted, boolToInt(rec.UpToDate),
		rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Get returns the record for a single run.
func (s *Store) Get(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

const selectColumns = `
	SELECT run_id, repo, source_commit, outcome, failed_stage, error,
		publish_commit, files, deleted, up_to_date, started_at, duration_ms
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var upToDate, startedAt, durationMS int64
	err := row.Scan(&rec.RunID, &rec.Repo, &rec.SourceCommit, &rec.Outcome,
		&rec.FailedStage, &rec.Error, &rec.PublishCommit, &rec.Files, &rec.Deleted,
		&upToDate, &startedAt, &durationMS)
	if err != nil {
		return nil, err
	}
	rec.UpToDate = upToDate != 0
	rec.StartedAt = time.UnixMilli(startedAt)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}

func fromResult(res *pipeline.Result) RunRecord {
	rec := RunRecord{
		RunID:        res.RunID,
		Repo:         res.Repo,
		SourceCommit: res.Commit,
		Outcome:      string(res.Outcome),
		FailedStage:  string(res.FailedStage()),
		StartedAt:    res.StartedAt,
		Duration:     res.Duration,
	}
	if err := res.Err(); err != nil {
		rec.Error = err.Error()
	}
	if res.Publish != nil {
		rec.PublishCommit = res.Publish.Commit
		rec.Files = res.Publish.Files
		rec.Deleted = res.Publish.Deleted
		rec.UpToDate = res.Publish.UpToDate
	}
	return rec
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
