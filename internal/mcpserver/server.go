// Package mcpserver exposes document submission and job status as MCP tools
// so an assistant can drive the narration backend without the TUI.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/db"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/document"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100

	minSpeed = 0.5
	maxSpeed = 2.0
)

// Backend is the part of the narration backend the tools call.
type Backend interface {
	Submit(ctx context.Context, path string) (string, error)
	Status(ctx context.Context, jobID string) (backend.StatusResponse, error)
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)
}

// Server holds the MCP server and the collaborators its tools use.
type Server struct {
	backend Backend
	store   *db.Store
	mcp     *server.MCPServer
}

// New creates a server with the submit_document, job_status, recent_jobs and
// synthesize_text tools registered. store may be nil, which disables history.
func New(b Backend, store *db.Store, version string) *Server {
	s := &Server{
		backend: b,
		store:   store,
		mcp: server.NewMCPServer("paper-reader", version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool("submit_document",
		mcp.WithDescription("Upload a local PDF to the narration backend and return the job id"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the PDF file")),
	), s.handleSubmit)

	s.mcp.AddTool(mcp.NewTool("job_status",
		mcp.WithDescription("Report the phase, stage and progress of a narration job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id returned by submit_document")),
	), s.handleStatus)

	s.mcp.AddTool(mcp.NewTool("recent_jobs",
		mcp.WithDescription("List recently submitted documents and their last known status"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs to list"), mcp.Min(1), mcp.Max(maxRecentLimit)),
	), s.handleRecent)

	s.mcp.AddTool(mcp.NewTool("synthesize_text",
		mcp.WithDescription("Narrate a short passage and write it to a WAV file"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to narrate")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Where to write the WAV file")),
		mcp.WithNumber("speed", mcp.Description("Speech rate, 1.0 is normal"), mcp.Min(minSpeed), mcp.Max(maxSpeed)),
	), s.handleSynthesize)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := document.CheckPDF(path)
	if err != nil {
		return mcp.NewToolResultError((&backend.UploadError{Document: path, Err: err}).Error()), nil
	}

	jobID, err := s.backend.Submit(ctx, info.Path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.store != nil {
		if err := s.store.RecordSubmitted(jobID, info.Path, time.Now()); err != nil {
			slog.Warn("record submitted job failed", "job", jobID, "err", err)
		}
	}

	slog.Info("document submitted", "job", jobID, "document", info.Name)
	return mcp.NewToolResultText(fmt.Sprintf("Submitted %s (%s) as job %s",
		info.Name, humanize.Bytes(uint64(info.Size)), jobID)), nil
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.backend.Status(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status of job %s: %v", jobID, err)), nil
	}
	s.record(jobID, resp)

	return mcp.NewToolResultText(formatStatus(jobID, resp)), nil
}

func (s *Server) handleRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("job history is disabled"), nil
	}

	limit := min(maxRecentLimit, max(1, req.GetInt("limit", defaultRecentLimit)))
	jobs, err := s.store.Recent(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load history: %v", err)), nil
	}
	if len(jobs) == 0 {
		return mcp.NewToolResultText("No jobs yet."), nil
	}

	var b strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&b, "%s  %s  %s", j.ID, j.DocumentName(), j.Phase)
		switch {
		case j.Completed():
			fmt.Fprintf(&b, "  %d segments, %d pages", j.SegmentCount, j.TotalPages)
		case j.Error != "":
			fmt.Fprintf(&b, "  %s", j.Error)
		default:
			fmt.Fprintf(&b, "  %d%%", j.Progress)
		}
		fmt.Fprintf(&b, "  submitted %s\n", humanize.Time(j.SubmittedAt))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSynthesize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speed := min(maxSpeed, max(minSpeed, req.GetFloat("speed", 1.0)))

	audio, err := s.backend.Synthesize(ctx, text, speed)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("synthesize: %v", err)), nil
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write audio: %v", err)), nil
	}

	slog.Info("text synthesized", "path", path, "bytes", len(audio), "speed", speed)
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %s of audio to %s at %.2gx",
		humanize.Bytes(uint64(len(audio))), path, speed)), nil
}

// record folds one status observation into history. Jobs submitted
// elsewhere have no row and are skipped.
func (s *Server) record(jobID string, resp backend.StatusResponse) {
	if s.store == nil {
		return
	}

	var err error
	switch phase := resp.Phase(); phase {
	case backend.PhaseCompleted:
		err = s.store.RecordCompleted(jobID, len(resp.Segments), resp.TotalPages)
	case backend.PhaseFailed:
		reason := resp.Message
		if reason == "" {
			reason = resp.Stage
		}
		err = s.store.RecordFailed(jobID, reason)
	default:
		err = s.store.RecordStatus(jobID, string(phase), resp.Stage, resp.ProgressValue())
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Warn("record job status failed", "job", jobID, "err", err)
	}
}

func formatStatus(jobID string, resp backend.StatusResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s: %s\n", jobID, resp.Phase())
	if resp.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", resp.Stage)
	}
	fmt.Fprintf(&b, "Progress: %d%%\n", resp.ProgressValue())
	if resp.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", resp.Message)
	}
	if resp.Phase() == backend.PhaseCompleted {
		pages := resp.TotalPages
		for _, seg := range resp.Segments {
			pages = max(pages, seg.Page)
		}
		fmt.Fprintf(&b, "Segments: %d\nPages: %d\n", len(resp.Segments), pages)
	}
	return b.String()
}
