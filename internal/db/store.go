package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when updating a job that was never recorded.
var ErrNotFound = errors.New("job not found")

const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		documentPath TEXT NOT NULL,
		phase TEXT NOT NULL DEFAULT 'queued',
		stage TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0,
		segmentCount INTEGER NOT NULL DEFAULT 0,
		totalPages INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		submittedAt REAL NOT NULL,
		updatedAt REAL NOT NULL,
		completedAt REAL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_submittedAt ON jobs(submittedAt);
`

// Store records submitted jobs in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database with WAL and a busy timeout.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := newStore(db, "PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB, pragmas ...string) (*Store, error) {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSubmitted stores a newly accepted job. Submitting the same id again
// starts its history over.
func (s *Store) RecordSubmitted(jobID, documentPath string, at time.Time) error {
	ts := unixFromTime(at)
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, documentPath, submittedAt, updatedAt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			documentPath = excluded.documentPath,
			phase = 'queued', stage = '', progress = 0,
			segmentCount = 0, totalPages = 0, error = '',
			submittedAt = excluded.submittedAt,
			updatedAt = excluded.updatedAt,
			completedAt = NULL
	`, jobID, documentPath, ts, ts)
	if err != nil {
		return fmt.Errorf("record submitted job: %w", err)
	}
	return nil
}

// RecordStatus stores the latest progress observation. A job that already
// finished keeps its final row.
func (s *Store) RecordStatus(jobID, phase, stage string, progress int) error {
	return s.update(`
		UPDATE jobs SET phase = ?, stage = ?, progress = ?, updatedAt = ?
		WHERE id = ? AND phase NOT IN ('completed', 'failed')
	`, phase, stage, progress, unixFromTime(time.Now()), jobID)
}

// RecordCompleted marks a job finished with its segment and page counts.
func (s *Store) RecordCompleted(jobID string, segments, totalPages int) error {
	now := unixFromTime(time.Now())
	return s.update(`
		UPDATE jobs SET phase = 'completed', progress = 100, segmentCount = ?, totalPages = ?,
			error = '', updatedAt = ?, completedAt = ?
		WHERE id = ?
	`, segments, totalPages, now, now, jobID)
}

// RecordFailed marks a job failed with the reason shown to the user.
func (s *Store) RecordFailed(jobID, reason string) error {
	return s.update(`UPDATE jobs SET phase = 'failed', error = ?, updatedAt = ? WHERE id = ?`,
		reason, unixFromTime(time.Now()), jobID)
}

func (s *Store) update(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns up to limit jobs, newest first.
func (s *Store) Recent(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, documentPath, phase, stage, progress, segmentCount, totalPages, error,
			submittedAt, updatedAt, completedAt
		FROM jobs
		ORDER BY submittedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Job returns a single job, or nil if it was never recorded.
func (s *Store) Job(id string) (*Job, error) {
	row := s.db.QueryRow(`
		SELECT id, documentPath, phase, stage, progress, segmentCount, totalPages, error,
			submittedAt, updatedAt, completedAt
		FROM jobs
		WHERE id = ?
	`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var j Job
	var submittedAt, updatedAt float64
	var completedAt sql.NullFloat64

	if err := row.Scan(&j.ID, &j.DocumentPath, &j.Phase, &j.Stage, &j.Progress,
		&j.SegmentCount, &j.TotalPages, &j.Error, &submittedAt, &updatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}

	j.SubmittedAt = timeFromUnix(submittedAt)
	j.UpdatedAt = timeFromUnix(updatedAt)
	if completedAt.Valid {
		t := timeFromUnix(completedAt.Float64)
		j.CompletedAt = &t
	}
	return j, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
