// Package mediatest provides in-memory media for tests.
package mediatest

import (
	"context"
	"errors"
	"sync"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/media"
)

// Media is a scriptable media.Media. Time only moves when the test sets it.
type Media struct {
	URL string

	mu       sync.Mutex
	playing  bool
	rate     float64
	current  float64
	duration float64
	released bool
	plays    int
	seeks    []float64
	playErr  error

	ended    chan struct{}
	endOnce  sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

// NewMedia returns paused media of the given duration at rate 1.
func NewMedia(url string, duration float64) *Media {
	return &Media{
		URL:      url,
		rate:     1,
		duration: duration,
		ended:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Media) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return media.ErrReleased
	}
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	m.plays++
	return nil
}

func (m *Media) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return media.ErrReleased
	}
	m.playing = false
	return nil
}

func (m *Media) SetRate(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return media.ErrReleased
	}
	m.rate = rate
	return nil
}

func (m *Media) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return media.ErrReleased
	}
	m.current = seconds
	m.seeks = append(m.seeks, seconds)
	return nil
}

func (m *Media) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Media) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Media) Ended() <-chan struct{} { return m.ended }

func (m *Media) Done() <-chan struct{} { return m.done }

func (m *Media) Release() error {
	m.mu.Lock()
	m.released = true
	m.playing = false
	m.mu.Unlock()
	m.doneOnce.Do(func() { close(m.done) })
	return nil
}

// SetCurrent moves the playback clock.
func (m *Media) SetCurrent(seconds float64) {
	m.mu.Lock()
	m.current = seconds
	m.mu.Unlock()
}

// SetDuration changes the reported duration.
func (m *Media) SetDuration(seconds float64) {
	m.mu.Lock()
	m.duration = seconds
	m.mu.Unlock()
}

// FailPlay makes subsequent Play calls return err.
func (m *Media) FailPlay(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

// End signals natural completion.
func (m *Media) End() {
	m.endOnce.Do(func() { close(m.ended) })
}

func (m *Media) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *Media) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *Media) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func (m *Media) Plays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays
}

func (m *Media) Seeks() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seeks...)
}

// ErrOpen is returned by an Opener configured to fail.
var ErrOpen = errors.New("open failed")

// Opener hands out Media and remembers every instance it opened.
type Opener struct {
	Duration float64
	Fail     map[string]bool

	mu     sync.Mutex
	opened []*Media
}

func (o *Opener) Open(ctx context.Context, url string) (media.Media, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail[url] {
		return nil, ErrOpen
	}
	d := o.Duration
	if d == 0 {
		d = 10
	}
	m := NewMedia(url, d)
	o.opened = append(o.opened, m)
	return m, nil
}

// Opened returns every media opened so far, in order.
func (o *Opener) Opened() []*Media {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Media(nil), o.opened...)
}

// Last returns the most recently opened media for url.
func (o *Opener) Last(url string) *Media {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.opened) - 1; i >= 0; i-- {
		if o.opened[i].URL == url {
			return o.opened[i]
		}
	}
	return nil
}
