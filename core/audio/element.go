// Package audio binds a playable media source to the output device and
// reports its timing through an event stream.
package audio

import (
	"errors"
	"time"

	"github.com/gopxl/beep/v2"
)

var (
	// ErrNoSource is returned by Play before a source is ready or after it failed to load.
	ErrNoSource = errors.New("audio: no playable source")
	// ErrAlreadyBound is returned when a second graph is bound to one element.
	ErrAlreadyBound = errors.New("audio: element already bound to a processing graph")
)

// EventType 媒体事件类型
type EventType int

const (
	// EventReady fires once metadata (duration) is known and playback may start.
	EventReady EventType = iota
	EventTimeUpdate
	EventEnded
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by an Element. LoadID identifies the Load call that
// produced it so consumers can drop events from a superseded source.
type Event struct {
	Type     EventType
	LoadID   uint64
	Duration time.Duration
	Position time.Duration
	Err      error
}

// Graph is an audio processing graph that can sit between the decoded
// source and the output. Process wraps the element's signal; whatever the
// returned streamer yields is what gets played.
type Graph interface {
	Process(in beep.Streamer) beep.Streamer
}

// Element is a single media element: one source at a time, play/pause,
// seek, volume and an asynchronous event stream.
type Element interface {
	// Load starts loading src asynchronously and returns its load id.
	Load(src string) uint64
	Src() string
	Play() error
	Pause()
	Paused() bool
	CurrentTime() time.Duration
	// SetCurrentTime seeks; the position is clamped to [0, Duration()].
	SetCurrentTime(d time.Duration)
	Duration() time.Duration
	// SetVolume sets linear gain in [0,1].
	SetVolume(v float64)
	Volume() float64
	// BindGraph routes the element through g; nil releases the binding.
	BindGraph(g Graph) error
	Events() <-chan Event
	Close() error
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
