// Package poller drives a backend job to a terminal phase by querying its
// status on a fixed delay and emitting one Update per response.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	// ErrEmptyResult is reported when a job completes without any segments.
	ErrEmptyResult = errors.New("completed job returned no segments")
	// ErrPollLimit is reported when max polls is reached before a terminal phase.
	ErrPollLimit = errors.New("poll limit reached before the job finished")
	// ErrJobFailed is reported when the backend marks the job as failed.
	ErrJobFailed = errors.New("job failed")
)

// PollError is a status query failure after a job exists.
type PollError struct {
	JobID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll job %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// StatusFetcher queries a job's current status.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (backend.StatusResponse, error)
}

// Kind identifies what an Update carries.
type Kind int

const (
	KindProgress Kind = iota
	KindTerminal
	KindFailure
)

// Update is one status observation delivered to the caller.
type Update struct {
	Kind     Kind
	JobID    string
	Phase    backend.Phase
	Stage    string
	Progress int
	Message  string

	// Set on KindTerminal.
	Segments   []backend.Segment
	TotalPages int

	// Set on KindFailure.
	Err error
}

type resultMsg struct {
	gen   int
	jobID string
	resp  backend.StatusResponse
	err   error
}

type tickMsg struct {
	gen int
}

// Poller polls one job at a time. All methods must be called from the
// Bubble Tea update loop; only the status query itself runs in a command.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	maxPolls int

	gen    int
	jobID  string
	active bool
	polls  int
	cancel context.CancelFunc
}

// New creates a poller. maxPolls of 0 means unbounded.
func New(fetcher StatusFetcher, interval time.Duration, maxPolls int) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		maxPolls: maxPolls,
	}
}

// Start cancels any running poll and issues the first query for jobID
// immediately.
func (p *Poller) Start(jobID string) tea.Cmd {
	p.Cancel()
	p.jobID = jobID
	p.active = true
	p.polls = 0
	slog.Debug("poller started", "job", jobID, "gen", p.gen)
	return p.query()
}

// Cancel stops polling. A query already in flight is aborted and its
// response, if one still arrives, is discarded.
func (p *Poller) Cancel() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.active = false
}

// Active reports whether a job is being polled.
func (p *Poller) Active() bool {
	return p.active
}

// JobID returns the job being polled, or the last one polled.
func (p *Poller) JobID() string {
	return p.jobID
}

// Polls returns how many queries have been issued for the current job.
func (p *Poller) Polls() int {
	return p.polls
}

func (p *Poller) query() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.polls++

	gen, jobID, fetcher := p.gen, p.jobID, p.fetcher
	return func() tea.Msg {
		resp, err := fetcher.Status(ctx, jobID)
		return resultMsg{gen: gen, jobID: jobID, resp: resp, err: err}
	}
}

func (p *Poller) scheduleNext() tea.Cmd {
	gen := p.gen
	return tea.Tick(p.interval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// Handle processes a message produced by this poller. It returns the update
// to apply, if any, and the next command. Messages that belong to another
// component or to a cancelled poll yield (nil, nil).
func (p *Poller) Handle(msg tea.Msg) (*Update, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if msg.gen != p.gen || !p.active {
			slog.Debug("poller discarded stale tick", "gen", msg.gen, "current", p.gen)
			return nil, nil
		}
		return nil, p.query()

	case resultMsg:
		if msg.gen != p.gen || !p.active {
			slog.Debug("poller discarded stale result", "job", msg.jobID, "gen", msg.gen, "current", p.gen)
			return nil, nil
		}
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		return p.apply(msg)
	}
	return nil, nil
}

func (p *Poller) apply(msg resultMsg) (*Update, tea.Cmd) {
	if msg.err != nil {
		slog.Warn("status query failed", "job", msg.jobID, "err", msg.err)
		return p.fail(msg.err), nil
	}

	resp := msg.resp
	u := &Update{
		JobID:    msg.jobID,
		Phase:    resp.Phase(),
		Stage:    resp.Stage,
		Progress: resp.ProgressValue(),
		Message:  resp.Message,
	}

	if !u.Phase.IsTerminal() {
		if p.maxPolls > 0 && p.polls >= p.maxPolls {
			return p.fail(ErrPollLimit), nil
		}
		u.Kind = KindProgress
		return u, p.scheduleNext()
	}

	if u.Phase == backend.PhaseFailed {
		reason := resp.Message
		if reason == "" {
			reason = resp.Stage
		}
		if reason == "" {
			return p.fail(ErrJobFailed), nil
		}
		return p.fail(fmt.Errorf("%w: %s", ErrJobFailed, reason)), nil
	}

	if len(resp.Segments) == 0 {
		return p.fail(ErrEmptyResult), nil
	}
	p.active = false
	u.Kind = KindTerminal
	u.Progress = 100
	u.Segments = resp.Segments
	u.TotalPages = resp.TotalPages
	slog.Debug("job completed", "job", msg.jobID, "segments", len(resp.Segments))
	return u, nil
}

func (p *Poller) fail(err error) *Update {
	p.active = false
	return &Update{
		Kind:  KindFailure,
		JobID: p.jobID,
		Phase: backend.PhaseFailed,
		Err:   &PollError{JobID: p.jobID, Err: err},
	}
}
