// Package backend provides the HTTP client and wire types for the narration
// backend that converts a PDF into narrated audio segments.
package backend

import "strings"

// Phase is the lifecycle phase of a conversion job.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// IsTerminal reports whether the job status is final.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Segment is one page-scoped unit of narration text. Its position in the
// terminal batch is its identity.
type Segment struct {
	Text               string   `json:"text"`
	Page               int      `json:"page"`
	HasFigureReference bool     `json:"has_figure_reference"`
	FigureReferences   []string `json:"figure_references"`
}

// SubmitResponse is returned when the backend accepts a document.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// StatusResponse is the body of GET /api/status/{job_id}. While a job runs the
// backend omits Status and reports only stage and progress; the completed
// result carries Status, Segments and TotalPages.
type StatusResponse struct {
	JobID      string    `json:"job_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Progress   *int      `json:"progress,omitempty"`
	Message    string    `json:"message,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// Phase normalizes the response to a job phase. An explicit status wins;
// otherwise an "Error" stage means failed, zero progress means queued, and
// anything else is running.
func (r StatusResponse) Phase() Phase {
	switch Phase(strings.ToLower(strings.TrimSpace(r.Status))) {
	case PhaseQueued:
		return PhaseQueued
	case PhaseRunning:
		return PhaseRunning
	case PhaseCompleted:
		return PhaseCompleted
	case PhaseFailed:
		return PhaseFailed
	}

	if strings.HasPrefix(strings.TrimSpace(r.Stage), "Error") {
		return PhaseFailed
	}
	if r.ProgressValue() == 0 {
		return PhaseQueued
	}
	return PhaseRunning
}

// ProgressValue returns the reported progress clamped to 0..100.
func (r StatusResponse) ProgressValue() int {
	if r.Progress == nil {
		return 0
	}
	return min(100, max(0, *r.Progress))
}

// Health is the body of GET /api/health.
type Health struct {
	Status             string `json:"status"`
	Device             string `json:"device"`
	CUDAAvailable      bool   `json:"cuda_available"`
	TTSModelLoaded     bool   `json:"tts_model_loaded"`
	TextAnalyzerLoaded bool   `json:"text_analyzer_loaded"`
}

// IntPtr returns a pointer to an int value. Convenience for building responses.
func IntPtr(n int) *int { return &n }
