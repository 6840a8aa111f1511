package orchestrator

import (
	"fmt"

	"github.com/five82/skiff/internal/readiness"
	"github.com/five82/skiff/internal/streamd"
)

// State is the orchestrator's position in the browse/play flow.
type State int

const (
	Idle State = iota
	GatewayStarting
	Browsing
	Summary
	StreamStarting
	Buffering
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GatewayStarting:
		return "gateway starting"
	case Browsing:
		return "browsing"
	case Summary:
		return "summary"
	case StreamStarting:
		return "stream starting"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether a playback attempt owns the state.
func (s State) Active() bool {
	return s == StreamStarting || s == Buffering || s == Playing
}

// Event is something the presentation layer should react to.
type Event interface {
	event()
}

type (
	GatewayReady  struct{}
	StreamStarted struct {
		Locator string
	}
	PlaybackStarted struct {
		Title string
	}
	PlaybackFinished struct {
		ExitCode int
	}
	Progress struct {
		Snapshot streamd.Snapshot
		Result   readiness.Result
	}
	StateChanged struct {
		From, To State
	}
	// Notice is a user-visible message for a recoverable failure.
	Notice struct {
		Message string
		Err     error
	}
)

func (GatewayReady) event()     {}
func (StreamStarted) event()    {}
func (PlaybackStarted) event()  {}
func (PlaybackFinished) event() {}
func (Progress) event()         {}
func (StateChanged) event()     {}
func (Notice) event()           {}

// Sink receives events. Publish must not block for long; it is called from
// session goroutines.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

type discard struct{}

func (discard) Publish(Event) {}
