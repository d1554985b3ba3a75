package playback

import (
	"math"
	"time"

	"github.com/samber/lo"

	tea "github.com/charmbracelet/bubbletea"
)

// Sampler owns the position sampling loop. Each Start begins a fresh loop
// and Stop invalidates every tick already scheduled.
type Sampler struct {
	interval time.Duration
	token    int
	running  bool
}

// NewSampler creates a stopped sampler ticking at interval.
func NewSampler(interval time.Duration) *Sampler {
	return &Sampler{interval: interval}
}

// Start begins a new loop for the handle at index.
func (s *Sampler) Start(index int) tea.Cmd {
	s.token++
	s.running = true
	return s.tick(index)
}

// Stop ends the current loop.
func (s *Sampler) Stop() {
	s.token++
	s.running = false
}

// Running reports whether a loop is live.
func (s *Sampler) Running() bool {
	return s.running
}

func (s *Sampler) tick(index int) tea.Cmd {
	token := s.token
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return sampleMsg{token: token, index: index}
	})
}

func (s *Sampler) current(msg sampleMsg) bool {
	return s.running && msg.token == s.token
}

// Normalize converts a media time into a 0..100 position. An unknown duration
// or a ratio that is not a finite number yields 0.
func Normalize(current, duration float64) float64 {
	if !knownDuration(duration) {
		return 0
	}
	p := 100 * current / duration
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return lo.Clamp(p, 0, 100)
}

func knownDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}
