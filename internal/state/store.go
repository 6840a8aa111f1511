package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/skiff/internal/orchestrator"
	"github.com/five82/skiff/internal/readiness"
	"github.com/five82/skiff/internal/streamd"
)

// Notice is the most recent user-visible failure.
type Notice struct {
	Seq     int // increases with every notice
	Message string
	Err     error
	At      time.Time
}

// Text renders the notice for a status line.
func (n Notice) Text() string {
	if n.Err == nil {
		return n.Message
	}
	return fmt.Sprintf("%s: %v", n.Message, n.Err)
}

// Snapshot represents the latest orchestrator view available to the UI.
type Snapshot struct {
	State        orchestrator.State
	GatewayReady bool

	Locator     string
	Stream      streamd.Snapshot
	Progress    readiness.Result
	HasProgress bool

	Title    string // set once the player is running
	ExitCode int
	Finished bool

	Notice      Notice
	LastUpdated time.Time
}

// Buffering reports whether a stream is being prepared.
func (s Snapshot) Buffering() bool {
	return s.State == orchestrator.StreamStarting || s.State == orchestrator.Buffering
}

// Store folds orchestrator events into a snapshot. It implements
// orchestrator.Sink and never blocks the publisher for longer than a copy.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Publish applies e to the stored snapshot.
func (s *Store) Publish(e orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &s.snapshot
	switch e := e.(type) {
	case orchestrator.GatewayReady:
		snap.GatewayReady = true
	case orchestrator.StateChanged:
		snap.State = e.To
		if e.To == orchestrator.Idle {
			snap.GatewayReady = false
		}
	case orchestrator.StreamStarted:
		snap.Locator = e.Locator
		snap.Stream = streamd.Snapshot{}
		snap.Progress = readiness.Result{}
		snap.HasProgress = false
		snap.Title = ""
		snap.Finished = false
	case orchestrator.Progress:
		snap.Stream = e.Snapshot
		snap.Progress = e.Result
		snap.HasProgress = true
	case orchestrator.PlaybackStarted:
		snap.Title = e.Title
		snap.Finished = false
	case orchestrator.PlaybackFinished:
		snap.ExitCode = e.ExitCode
		snap.Finished = true
	case orchestrator.Notice:
		snap.Notice = Notice{Seq: snap.Notice.Seq + 1, Message: e.Message, Err: e.Err, At: time.Now()}
	default:
		return
	}
	snap.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.Notice.Err != nil {
		snap.Notice.Err = fmt.Errorf("%w", s.snapshot.Notice.Err)
	}
	return snap
}
