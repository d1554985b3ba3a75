// Package db provides SQLite access to the paper-reader job history.
package db

import (
	"path/filepath"
	"time"
)

// Job is one submitted document and the last status seen for it.
type Job struct {
	ID           string
	DocumentPath string
	Phase        string
	Stage        string
	Progress     int
	SegmentCount int
	TotalPages   int
	Error        string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// DocumentName returns the base name of the submitted file.
func (j Job) DocumentName() string {
	return filepath.Base(j.DocumentPath)
}

// Completed reports whether the job finished with segments.
func (j Job) Completed() bool {
	return j.CompletedAt != nil
}
