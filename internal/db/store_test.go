package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// createTestStore creates a store over an in-memory SQLite database.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	rawDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rawDB.SetMaxOpenConns(1)

	store, err := newStore(rawDB)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordSubmitted(t *testing.T) {
	store := createTestStore(t)
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if err := store.RecordSubmitted("job-1", "/papers/attention.pdf", at); err != nil {
		t.Fatalf("RecordSubmitted: %v", err)
	}

	job, err := store.Job("job-1")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job == nil {
		t.Fatal("expected job, got nil")
	}
	if job.DocumentName() != "attention.pdf" {
		t.Errorf("document = %q, want %q", job.DocumentName(), "attention.pdf")
	}
	if job.Phase != "queued" {
		t.Errorf("phase = %q, want queued", job.Phase)
	}
	if !job.SubmittedAt.Equal(at) {
		t.Errorf("submittedAt = %v, want %v", job.SubmittedAt, at)
	}
	if job.Completed() {
		t.Error("new job should not be completed")
	}
}

func TestRecordStatusAndCompleted(t *testing.T) {
	store := createTestStore(t)
	_ = store.RecordSubmitted("job-1", "/papers/a.pdf", time.Now())

	if err := store.RecordStatus("job-1", "running", "Generating audio", 60); err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
	job, _ := store.Job("job-1")
	if job.Phase != "running" || job.Stage != "Generating audio" || job.Progress != 60 {
		t.Errorf("job = %+v", job)
	}

	if err := store.RecordCompleted("job-1", 12, 8); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	job, _ = store.Job("job-1")
	if !job.Completed() || job.Phase != "completed" || job.Progress != 100 {
		t.Errorf("job = %+v, want completed", job)
	}
	if job.SegmentCount != 12 || job.TotalPages != 8 {
		t.Errorf("counts = %d/%d, want 12/8", job.SegmentCount, job.TotalPages)
	}
}

func TestRecordStatusAfterCompletion(t *testing.T) {
	store := createTestStore(t)
	_ = store.RecordSubmitted("job-1", "/papers/a.pdf", time.Now())
	_ = store.RecordCompleted("job-1", 3, 2)

	// A progress write that lands late must not reopen the job.
	_ = store.RecordStatus("job-1", "running", "Generating audio", 40)

	job, _ := store.Job("job-1")
	if job.Phase != "completed" || job.Progress != 100 {
		t.Errorf("job = %+v, want completed at 100", job)
	}
}

func TestRecordFailed(t *testing.T) {
	store := createTestStore(t)
	_ = store.RecordSubmitted("job-1", "/papers/a.pdf", time.Now())

	if err := store.RecordFailed("job-1", "PDF has no text"); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	job, _ := store.Job("job-1")
	if job.Phase != "failed" || job.Error != "PDF has no text" {
		t.Errorf("job = %+v", job)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	store := createTestStore(t)
	if err := store.RecordStatus("missing", "running", "", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestJobNotFound(t *testing.T) {
	store := createTestStore(t)
	job, err := store.Job("nonexistent")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil, got %q", job.ID)
	}
}

func TestResubmitResetsHistory(t *testing.T) {
	store := createTestStore(t)
	_ = store.RecordSubmitted("job-1", "/papers/a.pdf", time.Now())
	_ = store.RecordCompleted("job-1", 3, 3)

	if err := store.RecordSubmitted("job-1", "/papers/b.pdf", time.Now()); err != nil {
		t.Fatalf("RecordSubmitted: %v", err)
	}
	job, _ := store.Job("job-1")
	if job.Completed() || job.SegmentCount != 0 || job.DocumentName() != "b.pdf" {
		t.Errorf("job = %+v, want fresh history", job)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store := createTestStore(t)
	now := time.Now()
	_ = store.RecordSubmitted("job-old", "/a.pdf", now.Add(-2*time.Hour))
	_ = store.RecordSubmitted("job-new", "/b.pdf", now.Add(-time.Minute))
	_ = store.RecordSubmitted("job-mid", "/c.pdf", now.Add(-time.Hour))

	jobs, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "job-new" || jobs[1].ID != "job-mid" {
		t.Errorf("order = %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var mode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	if err := store.RecordSubmitted("job-1", "/a.pdf", time.Now()); err != nil {
		t.Fatalf("RecordSubmitted: %v", err)
	}
}
