package playback

import (
	"context"
	"log/slog"
	"time"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/catalog"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/media"
	"github.com/samber/lo"

	tea "github.com/charmbracelet/bubbletea"
)

const openTimeout = 15 * time.Second

// Sequencer plays a catalog's handles in index order as one narration. All
// methods must be called from the Bubble Tea update loop.
//
// Two counters guard asynchronous results. gen changes on Load and Reset and
// invalidates everything from an earlier session. token changes whenever the
// active handle stops playing, which invalidates its end watcher and any
// pending advance.
type Sequencer struct {
	opener       media.Opener
	advanceDelay time.Duration
	sampler      *Sampler

	cat      *catalog.Catalog
	state    State
	index    int
	speed    float64
	position float64
	waiting  bool

	gen        int
	token      int
	bound      map[int]media.Media
	opening    map[int]bool
	openCtx    context.Context
	openCancel context.CancelFunc
}

// New creates an idle sequencer. advanceDelay is the pause inserted between
// the natural end of one segment and the start of the next.
func New(opener media.Opener, advanceDelay, sampleInterval time.Duration) *Sequencer {
	s := &Sequencer{
		opener:       opener,
		advanceDelay: advanceDelay,
		sampler:      NewSampler(sampleInterval),
		speed:        DefaultSpeed,
		bound:        make(map[int]media.Media),
		opening:      make(map[int]bool),
	}
	s.openCtx, s.openCancel = context.WithCancel(context.Background())
	return s
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State { return s.state }

// Index returns the current segment index.
func (s *Sequencer) Index() int { return s.index }

// Speed returns the session playback rate.
func (s *Sequencer) Speed() float64 { return s.speed }

// Position returns the 0..100 position within the current segment.
func (s *Sequencer) Position() float64 { return s.position }

func (s *Sequencer) Catalog() *catalog.Catalog { return s.cat }

func (s *Sequencer) Sampling() bool { return s.sampler.Running() }

// Bound reports whether the handle at index has live media.
func (s *Sequencer) Bound(index int) bool {
	_, ok := s.bound[index]
	return ok
}

func (s *Sequencer) BoundCount() int { return len(s.bound) }

func (s *Sequencer) AdvanceDelay() time.Duration { return s.advanceDelay }

// Playing reports whether the active handle is producing media time.
func (s *Sequencer) Playing() bool {
	return s.state == Playing && !s.waiting
}

// Load replaces any current session with cat, ready at index 0. The first
// handle is bound in the background.
func (s *Sequencer) Load(cat *catalog.Catalog) tea.Cmd {
	s.Reset()
	s.cat = cat
	s.state = Ready
	slog.Debug("playback loaded", "job", cat.JobID(), "segments", cat.Len())
	return s.openCmd(0)
}

// Reset releases every bound handle and returns to Idle with default speed.
// It is safe to call in any state, any number of times.
func (s *Sequencer) Reset() {
	s.sampler.Stop()
	s.token++
	s.gen++
	if s.openCancel != nil {
		s.openCancel()
	}
	s.openCtx, s.openCancel = context.WithCancel(context.Background())

	for i, m := range s.bound {
		s.release(i, m)
	}
	s.bound = make(map[int]media.Media)
	s.opening = make(map[int]bool)

	s.cat = nil
	s.state = Idle
	s.index = 0
	s.speed = DefaultSpeed
	s.position = 0
	s.waiting = false
}

// StopSampling ends the position loop without changing playback state.
func (s *Sequencer) StopSampling() {
	s.sampler.Stop()
}

// PlayPause toggles between playing and paused for the current index. From
// Finished it starts again at the first segment.
func (s *Sequencer) PlayPause() (tea.Cmd, error) {
	switch s.state {
	case Ready, Paused:
		return s.play()

	case Finished:
		s.index = 0
		s.position = 0
		return s.play()

	case Playing, Advancing:
		s.pause()
		return nil, nil
	}
	return nil, nil
}

// SetSpeed clamps value into the speed range, applies it to the active handle
// if there is one, and keeps it for every later activation.
func (s *Sequencer) SetSpeed(value float64) float64 {
	s.speed = lo.Clamp(value, MinSpeed, MaxSpeed)
	if m, ok := s.active(); ok {
		if err := m.SetRate(s.speed); err != nil {
			slog.Warn("set rate failed", "index", s.index, "err", err)
		}
	}
	return s.speed
}

// Seek moves the active handle to percent of its duration. Without an active
// handle or a known duration it does nothing.
func (s *Sequencer) Seek(percent float64) error {
	m, ok := s.active()
	if !ok {
		return nil
	}
	duration := m.Duration()
	if !knownDuration(duration) {
		return nil
	}
	percent = lo.Clamp(percent, 0, 100)
	if err := m.Seek(percent / 100 * duration); err != nil {
		return &PlaybackError{Index: s.index, Err: err}
	}
	s.position = percent
	return nil
}

// Handle applies a message produced by the sequencer's own commands. Anything
// else, and anything from an earlier session or playback episode, is ignored.
func (s *Sequencer) Handle(msg tea.Msg) (tea.Cmd, error) {
	switch msg := msg.(type) {
	case mediaOpenedMsg:
		return s.handleOpened(msg)

	case endedMsg:
		if msg.gen != s.gen || msg.token != s.token || s.state != Playing || msg.index != s.index {
			slog.Debug("playback discarded stale end", "index", msg.index)
			return nil, nil
		}
		return s.handleEnded(), nil

	case mediaGoneMsg:
		if msg.gen != s.gen || msg.token != s.token || s.state != Playing || msg.index != s.index {
			return nil, nil
		}
		return nil, s.handleGone()

	case advanceMsg:
		if msg.gen != s.gen || msg.token != s.token || s.state != Advancing {
			slog.Debug("playback discarded stale advance")
			return nil, nil
		}
		return s.play()

	case sampleMsg:
		if !s.sampler.current(msg) || msg.index != s.index || !s.Playing() {
			return nil, nil
		}
		if m, ok := s.bound[s.index]; ok {
			s.position = Normalize(m.CurrentTime(), m.Duration())
		}
		return s.sampler.tick(msg.index), nil
	}
	return nil, nil
}

// active returns the handle at index while it is the current one.
func (s *Sequencer) active() (media.Media, bool) {
	switch s.state {
	case Ready, Playing, Paused:
		m, ok := s.bound[s.index]
		return m, ok
	}
	return nil, false
}

func (s *Sequencer) play() (tea.Cmd, error) {
	s.token++
	s.state = Playing
	m, ok := s.bound[s.index]
	if !ok {
		s.waiting = true
		return s.openCmd(s.index), nil
	}
	return s.begin(m)
}

// begin applies the session speed to m and starts it.
func (s *Sequencer) begin(m media.Media) (tea.Cmd, error) {
	s.waiting = false
	err := m.SetRate(s.speed)
	if err == nil {
		err = m.Play()
	}
	if err != nil {
		s.token++
		s.state = Paused
		s.release(s.index, m)
		delete(s.bound, s.index)
		slog.Warn("segment failed to start", "index", s.index, "err", err)
		return nil, &PlaybackError{Index: s.index, Err: err}
	}

	slog.Debug("playing segment", "index", s.index, "speed", s.speed)
	return tea.Batch(
		s.watchEnd(m),
		s.sampler.Start(s.index),
	), nil
}

func (s *Sequencer) pause() {
	s.token++
	s.sampler.Stop()
	s.waiting = false
	if m, ok := s.bound[s.index]; ok && s.state == Playing {
		if err := m.Pause(); err != nil {
			slog.Warn("pause failed", "index", s.index, "err", err)
		}
	}
	s.state = Paused
}

func (s *Sequencer) handleEnded() tea.Cmd {
	s.token++
	s.sampler.Stop()
	if m, ok := s.bound[s.index]; ok {
		s.release(s.index, m)
		delete(s.bound, s.index)
	}
	s.position = 0

	if s.index >= s.cat.Last() {
		s.state = Finished
		slog.Debug("playback finished", "segments", s.cat.Len())
		return nil
	}

	s.index++
	s.state = Advancing
	gen, token := s.gen, s.token
	return tea.Batch(
		s.openCmd(s.index),
		tea.Tick(s.advanceDelay, func(time.Time) tea.Msg {
			return advanceMsg{gen: gen, token: token}
		}),
	)
}

func (s *Sequencer) handleOpened(msg mediaOpenedMsg) (tea.Cmd, error) {
	if msg.gen != s.gen {
		if msg.media != nil {
			s.release(msg.index, msg.media)
		}
		slog.Debug("playback released media from an earlier session", "index", msg.index)
		return nil, nil
	}
	delete(s.opening, msg.index)

	if msg.err != nil {
		if s.waiting && s.state == Playing && msg.index == s.index {
			s.token++
			s.waiting = false
			s.state = Paused
			return nil, &PlaybackError{Index: msg.index, Err: msg.err}
		}
		slog.Warn("prefetch failed", "index", msg.index, "err", msg.err)
		return nil, nil
	}

	if msg.index < s.index || s.state == Finished {
		s.release(msg.index, msg.media)
		return nil, nil
	}
	s.bound[msg.index] = msg.media

	if s.waiting && s.state == Playing && msg.index == s.index {
		return s.begin(msg.media)
	}
	return nil, nil
}

// openCmd binds the handle at index unless it is bound or already opening.
func (s *Sequencer) openCmd(index int) tea.Cmd {
	if s.cat == nil {
		return nil
	}
	h, ok := s.cat.Handle(index)
	if !ok || s.opening[index] {
		return nil
	}
	if _, bound := s.bound[index]; bound {
		return nil
	}
	s.opening[index] = true

	gen, opener, url := s.gen, s.opener, h.URL
	parent := s.openCtx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, openTimeout)
		defer cancel()
		m, err := opener.Open(ctx, url)
		return mediaOpenedMsg{gen: gen, index: index, media: m, err: err}
	}
}

// watchEnd waits for m's natural end or for its player to go away. A
// deliberate release bumps the token first, so only an unexpected exit is
// acted on.
func (s *Sequencer) watchEnd(m media.Media) tea.Cmd {
	gen, token, index := s.gen, s.token, s.index
	return func() tea.Msg {
		select {
		case <-m.Ended():
			return endedMsg{gen: gen, token: token, index: index}
		case <-m.Done():
			return mediaGoneMsg{gen: gen, token: token, index: index}
		}
	}
}

// handleGone holds at the current index after the active player died.
func (s *Sequencer) handleGone() error {
	s.token++
	s.sampler.Stop()
	s.waiting = false
	if m, ok := s.bound[s.index]; ok {
		s.release(s.index, m)
		delete(s.bound, s.index)
	}
	s.state = Paused
	slog.Warn("media player exited during playback", "index", s.index)
	return &PlaybackError{Index: s.index, Err: ErrMediaGone}
}

func (s *Sequencer) release(index int, m media.Media) {
	if err := m.Release(); err != nil {
		slog.Warn("release media failed", "index", index, "err", err)
	}
}
