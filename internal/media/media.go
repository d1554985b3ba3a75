// Package media is the audio playback primitive behind each segment handle.
// The production implementation drives one mpv process per opened handle over
// mpv's JSON IPC socket.
package media

import (
	"context"
	"errors"
)

// ErrReleased is returned by operations on media that has been released.
var ErrReleased = errors.New("media released")

// Media is one playable audio resource.
//
// Duration returns 0 while it is unknown. Ended is closed once, when playback
// reaches the natural end of the resource. Done is closed when the media is
// released or its backing player goes away.
type Media interface {
	Play() error
	Pause() error
	SetRate(rate float64) error
	Seek(seconds float64) error
	CurrentTime() float64
	Duration() float64
	Ended() <-chan struct{}
	Done() <-chan struct{}
	Release() error
}

// Opener binds an audio address to a paused Media.
type Opener interface {
	Open(ctx context.Context, url string) (Media, error)
}
