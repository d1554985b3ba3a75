// Package playback sequences a catalog's audio handles into one continuous
// narration and keeps a normalized position for the active handle.
package playback

import (
	"errors"
	"fmt"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/media"
)

// State is the sequencer's lifecycle state.
type State int

const (
	Idle State = iota
	Ready
	Playing
	Advancing
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Advancing:
		return "advancing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Speed limits.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
)

// PlaybackError reports a segment that could not begin playing.
type PlaybackError struct {
	Index int
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("play segment %d: %v", e.Index+1, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// ErrMediaGone is reported when the active handle's player exits mid-segment.
var ErrMediaGone = errors.New("media player exited")

type mediaOpenedMsg struct {
	gen   int
	index int
	media media.Media
	err   error
}

type endedMsg struct {
	gen   int
	token int
	index int
}

// mediaGoneMsg reports that a handle's player went away without being released.
type mediaGoneMsg struct {
	gen   int
	token int
	index int
}

type advanceMsg struct {
	gen   int
	token int
}

type sampleMsg struct {
	token int
	index int
}
