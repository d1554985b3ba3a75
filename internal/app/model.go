package app

import (
	"context"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/catalog"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/db"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/document"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/media"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/playback"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/poller"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	submitTimeout = 2 * time.Minute
	healthTimeout = 3 * time.Second
	historyLimit  = 10
)

// Backend is the subset of the narration backend the TUI uses.
type Backend interface {
	Submit(ctx context.Context, path string) (string, error)
	Status(ctx context.Context, jobID string) (backend.StatusResponse, error)
	AudioURL(jobID string, index int) string
	Health(ctx context.Context) (backend.Health, error)
}

// Viewer shows a document behind an object URL.
type Viewer interface {
	Open(url string) error
}

// Options wires the model to its collaborators.
type Options struct {
	Backend  Backend
	Opener   media.Opener
	Registry *document.Registry
	Viewer   Viewer
	Store    *db.Store // nil disables history

	PollInterval   time.Duration
	MaxPolls       int
	AdvanceDelay   time.Duration
	SampleInterval time.Duration

	// DocumentPath is selected at startup when set.
	DocumentPath string
}

// Model is the root bubbletea model. It owns the session: every job, handle,
// timer and object URL belongs to the current generation, and reset releases
// all of them before the next session starts.
type Model struct {
	backend Backend
	poller  *poller.Poller
	seq     *playback.Sequencer
	docs    *document.Registry
	viewer  Viewer
	store   *db.Store

	// Session
	gen        int
	doc        *document.Info
	docURL     string
	submitting bool
	jobID      string
	phase      backend.Phase
	stage      string
	progress   int
	message    string
	failed     bool

	// Startup
	initialPath string

	// Path prompt
	prompting bool
	input     string

	// Backend health
	health    *backend.Health
	healthErr string

	// History
	history     []db.Job
	showHistory bool
	selectedJob int

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool
}

// New creates a new Model with no session.
func New(opts Options) Model {
	return Model{
		backend:     opts.Backend,
		poller:      poller.New(opts.Backend, opts.PollInterval, opts.MaxPolls),
		seq:         playback.New(opts.Opener, opts.AdvanceDelay, opts.SampleInterval),
		docs:        opts.Registry,
		viewer:      opts.Viewer,
		store:       opts.Store,
		initialPath: opts.DocumentPath,
	}
}

// Init checks backend health, loads history, and selects the startup
// document if one was given.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{healthCmd(m.backend), loadHistoryCmd(m.store)}
	if m.initialPath != "" {
		path := m.initialPath
		cmds = append(cmds, func() tea.Msg { return DocumentChosenMsg{Path: path} })
	}
	return tea.Batch(cmds...)
}

// healthCmd queries backend readiness.
func healthCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		h, err := b.Health(ctx)
		return HealthMsg{Health: h, Err: err}
	}
}

// submitCmd uploads the document for the given session generation. An
// accepted job is recorded before the result is delivered, so status updates
// always find its history row.
func submitCmd(b Backend, store *db.Store, gen int, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		jobID, err := b.Submit(ctx, path)
		if err == nil && store != nil {
			if err := store.RecordSubmitted(jobID, path, time.Now()); err != nil {
				slog.Warn("record submitted job failed", "job", jobID, "err", err)
			}
		}
		return SubmitResultMsg{Gen: gen, JobID: jobID, Err: err}
	}
}

// loadHistoryCmd reads recent jobs from SQLite.
func loadHistoryCmd(store *db.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		jobs, err := store.Recent(historyLimit)
		if err != nil {
			slog.Warn("load history failed", "err", err)
			return HistoryLoadedMsg{}
		}
		return HistoryLoadedMsg{Jobs: jobs}
	}
}

// recordCmd writes to the history store off the update loop and then
// refreshes the history panel.
func recordCmd(store *db.Store, write func(*db.Store) error) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		if err := write(store); err != nil {
			slog.Warn("record history failed", "err", err)
		}
		return loadHistoryCmd(store)()
	}
}

// openViewerCmd shows the document in the platform viewer.
func openViewerCmd(v Viewer, url string) tea.Cmd {
	return func() tea.Msg {
		if err := v.Open(url); err != nil {
			return ViewerErrorMsg{Err: err}
		}
		return nil
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DocumentChosenMsg:
		cmd := m.selectDocument(msg.Path)
		return m, cmd

	case SubmitResultMsg:
		if msg.Gen != m.gen {
			slog.Debug("discarded submit result from an earlier session", "gen", msg.Gen)
			return m, nil
		}
		m.submitting = false
		if msg.Err != nil {
			m.stage = ""
			m.errorMessage = msg.Err.Error()
			m.errorTransient = false
			return m, nil
		}
		m.jobID = msg.JobID
		m.phase = backend.PhaseQueued
		slog.Info("job submitted", "job", msg.JobID)
		return m, tea.Batch(m.poller.Start(msg.JobID), loadHistoryCmd(m.store))

	case HealthMsg:
		if msg.Err != nil {
			m.healthErr = msg.Err.Error()
			m.health = nil
			return m, nil
		}
		h := msg.Health
		m.health = &h
		m.healthErr = ""
		return m, nil

	case HistoryLoadedMsg:
		m.history = msg.Jobs
		if m.selectedJob >= len(m.history) {
			m.selectedJob = max(0, len(m.history)-1)
		}
		return m, nil

	case ViewerErrorMsg:
		cmd := m.transientError(msg.Err)
		return m, cmd

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	if u, cmd := m.poller.Handle(msg); u != nil || cmd != nil {
		applied := m.applyUpdate(u)
		return m, tea.Batch(cmd, applied)
	}

	cmd, err := m.seq.Handle(msg)
	if err != nil {
		errCmd := m.transientError(err)
		return m, tea.Batch(cmd, errCmd)
	}
	return m, cmd
}

// applyUpdate folds one poller update into the session.
func (m *Model) applyUpdate(u *poller.Update) tea.Cmd {
	if u == nil {
		return nil
	}
	jobID := u.JobID

	switch u.Kind {
	case poller.KindProgress:
		m.phase = u.Phase
		m.stage = u.Stage
		m.progress = u.Progress
		m.message = u.Message
		phase, stage, progress := string(u.Phase), u.Stage, u.Progress
		return recordCmd(m.store, func(s *db.Store) error {
			return s.RecordStatus(jobID, phase, stage, progress)
		})

	case poller.KindTerminal:
		m.phase = backend.PhaseCompleted
		m.stage = "Complete"
		m.progress = u.Progress
		m.message = ""
		cat, err := catalog.Populate(jobID, u.Segments, m.backend.AudioURL)
		if err != nil {
			return m.fail(err)
		}
		cat.WithTotalPages(u.TotalPages)
		slog.Info("narration ready", "job", jobID, "segments", cat.Len(), "pages", cat.TotalPages())
		segments, pages := cat.Len(), cat.TotalPages()
		return tea.Batch(
			m.seq.Load(cat),
			recordCmd(m.store, func(s *db.Store) error {
				return s.RecordCompleted(jobID, segments, pages)
			}),
		)

	case poller.KindFailure:
		return m.fail(u.Err)
	}
	return nil
}

func (m *Model) fail(err error) tea.Cmd {
	m.failed = true
	m.phase = backend.PhaseFailed
	m.stage = "Error"
	m.progress = 0
	m.errorMessage = err.Error()
	m.errorTransient = false
	slog.Warn("job failed", "job", m.jobID, "err", err)

	jobID, reason := m.jobID, err.Error()
	return recordCmd(m.store, func(s *db.Store) error {
		return s.RecordFailed(jobID, reason)
	})
}

func (m *Model) transientError(err error) tea.Cmd {
	m.errorMessage = err.Error()
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// reset ends the session. Order matters: no poll result, sample tick or
// media callback from the old generation may land after its state is gone.
func (m *Model) reset() {
	m.poller.Cancel()
	m.seq.StopSampling()
	m.seq.Reset()
	if m.docURL != "" && m.docs != nil {
		m.docs.Revoke(m.docURL)
	}
	m.docURL = ""

	m.gen++
	m.doc = nil
	m.submitting = false
	m.jobID = ""
	m.phase = ""
	m.stage = ""
	m.progress = 0
	m.message = ""
	m.failed = false
	m.errorMessage = ""
	m.errorTransient = false
	slog.Debug("session reset", "gen", m.gen)
}

// Shutdown releases everything the session holds. Safe to call more than once.
func (m *Model) Shutdown() {
	m.reset()
	if m.docs != nil {
		m.docs.RevokeAll()
	}
}

// selectDocument validates path and makes it the source of a new session.
func (m *Model) selectDocument(path string) tea.Cmd {
	path = expandHome(strings.TrimSpace(path))
	info, err := document.CheckPDF(path)
	if err != nil {
		return m.transientError(&backend.UploadError{Document: path, Err: err})
	}

	m.reset()
	url, err := m.docs.Create(path)
	if err != nil {
		return m.transientError(&backend.UploadError{Document: path, Err: err})
	}
	m.doc = &info
	m.docURL = url
	return nil
}

// process submits the selected document.
func (m *Model) process() tea.Cmd {
	if m.doc == nil || m.submitting || m.poller.Active() || m.seq.State() != playback.Idle {
		return nil
	}
	m.submitting = true
	m.failed = false
	m.errorMessage = ""
	m.stage = "Uploading file..."
	m.progress = 0
	return submitCmd(m.backend, m.store, m.gen, m.doc.Path)
}

// reopen polls a job from history again. A finished job answers with its
// segments on the first query.
func (m *Model) reopen(job db.Job) tea.Cmd {
	m.reset()
	if info, err := document.CheckPDF(job.DocumentPath); err == nil {
		if url, err := m.docs.Create(job.DocumentPath); err == nil {
			m.doc = &info
			m.docURL = url
		}
	}
	m.jobID = job.ID
	m.stage = "Reopening..."
	m.showHistory = false
	return m.poller.Start(job.ID)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompting {
		return m.handlePromptKey(msg)
	}

	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.Shutdown()
		return m, tea.Quit

	case KeyUpload:
		m.prompting = true
		m.input = ""
		return m, nil

	case KeyProcess:
		cmd := m.process()
		return m, cmd

	case KeyCancel:
		m.reset()
		return m, nil

	case KeyOpenDoc:
		if m.docURL == "" || m.viewer == nil {
			return m, nil
		}
		return m, openViewerCmd(m.viewer, m.docURL)

	case KeyHistory:
		if m.store == nil {
			return m, nil
		}
		m.showHistory = !m.showHistory
		return m, nil

	case KeyJ, KeyDown:
		if m.showHistory && m.selectedJob < len(m.history)-1 {
			m.selectedJob++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.showHistory && m.selectedJob > 0 {
			m.selectedJob--
		}
		return m, nil

	case KeyEnter:
		if m.showHistory && m.selectedJob < len(m.history) {
			cmd := m.reopen(m.history[m.selectedJob])
			return m, cmd
		}
		return m, nil

	case KeySpace:
		cmd, err := m.seq.PlayPause()
		if err != nil {
			errCmd := m.transientError(err)
			return m, tea.Batch(cmd, errCmd)
		}
		return m, cmd

	case KeyFaster, KeyFasterAlt:
		m.seq.SetSpeed(roundSpeed(m.seq.Speed() + speedStep))
		return m, nil

	case KeySlower:
		m.seq.SetSpeed(roundSpeed(m.seq.Speed() - speedStep))
		return m, nil

	case KeySeekBack:
		cmd := m.seek(m.seq.Position() - seekStep)
		return m, cmd

	case KeySeekFwd:
		cmd := m.seek(m.seq.Position() + seekStep)
		return m, cmd

	case KeySeekStart:
		cmd := m.seek(0)
		return m, cmd

	case KeySeekEnd:
		cmd := m.seek(100)
		return m, cmd
	}

	if speed, ok := speedPresets[msg.String()]; ok {
		m.seq.SetSpeed(speed)
	}
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.input = ""
		return m, nil

	case tea.KeyCtrlC:
		m.Shutdown()
		return m, tea.Quit

	case tea.KeyEnter:
		m.prompting = false
		path := m.input
		m.input = ""
		if strings.TrimSpace(path) == "" {
			return m, nil
		}
		cmd := m.selectDocument(path)
		return m, cmd

	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.input += " "
		return m, nil

	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

// seek moves to an integer position in 0..100.
func (m *Model) seek(position float64) tea.Cmd {
	position = math.Round(min(100, max(0, position)))
	if err := m.seq.Seek(position); err != nil {
		return m.transientError(err)
	}
	return nil
}

func roundSpeed(v float64) float64 {
	return math.Round(v*10) / 10
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

// Gen returns the session generation.
func (m Model) Gen() int { return m.gen }

func (m Model) Stage() string { return m.stage }

func (m Model) Progress() int { return m.progress }

func (m Model) JobID() string { return m.jobID }

func (m Model) Failed() bool { return m.failed }

func (m Model) ErrorMessage() string { return m.errorMessage }

// Document returns the selected source document, or nil.
func (m Model) Document() *document.Info { return m.doc }

func (m Model) DocumentURL() string { return m.docURL }

// Sequencer exposes the playback state machine.
func (m Model) Sequencer() *playback.Sequencer { return m.seq }
