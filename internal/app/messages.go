package app

import (
	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/db"
)

// DocumentChosenMsg selects a source document, replacing the current session.
type DocumentChosenMsg struct {
	Path string
}

// SubmitResultMsg carries the outcome of uploading the document.
type SubmitResultMsg struct {
	Gen   int
	JobID string
	Err   error
}

// HealthMsg carries the backend health check.
type HealthMsg struct {
	Health backend.Health
	Err    error
}

// HistoryLoadedMsg carries recent jobs read from SQLite.
type HistoryLoadedMsg struct {
	Jobs []db.Job
}

// ViewerErrorMsg reports a failure to open the document viewer.
type ViewerErrorMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
