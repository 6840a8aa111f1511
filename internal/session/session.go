// Package session owns the lifecycles of the three external programs skiff
// drives: the metadata gateway, the stream daemon and the media player.
//
// Every session moves NotStarted -> Starting -> Running -> Stopping -> Stopped
// and is single use. Stop is idempotent, never fails, and is valid from any
// state; concurrent callers return once the first Stop has finished.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/five82/skiff/internal/process"
)

// State is the lifecycle state of a session.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyStarted is returned when Start is called twice on one session.
var ErrAlreadyStarted = errors.New("session already started")

// Supervisor is the process control a session needs.
type Supervisor interface {
	Start(process.Command) (*process.Handle, error)
	Stop(context.Context, *process.Handle, process.StopOptions)
}

// Template is a resolved program plus fixed leading arguments. The session
// appends its own arguments after Args.
type Template struct {
	Binary string
	Args   []string
	Dir    string
	Output io.Writer
}

func (t Template) command(args []string) process.Command {
	full := make([]string, 0, len(t.Args)+len(args))
	full = append(full, t.Args...)
	full = append(full, args...)
	return process.Command{Path: t.Binary, Args: full, Dir: t.Dir, Output: t.Output}
}

// units converts a count of time units into a duration.
func units(unit time.Duration, n float64) time.Duration {
	if unit <= 0 {
		unit = time.Second
	}
	return time.Duration(float64(unit) * n)
}

// lifecycle is the state shared by all session kinds.
type lifecycle struct {
	mu      sync.Mutex
	state   State
	handle  *process.Handle
	stopped chan struct{}
}

func newLifecycle() lifecycle {
	return lifecycle{stopped: make(chan struct{})}
}

// State returns the current lifecycle state.
func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Handle returns the process handle, or nil before a successful spawn.
func (l *lifecycle) Handle() *process.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// beginStart moves NotStarted -> Starting.
func (l *lifecycle) beginStart() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != NotStarted {
		return fmt.Errorf("%w (%s)", ErrAlreadyStarted, l.state)
	}
	l.state = Starting
	return nil
}

// spawned records the handle unless a Stop already claimed the session, in
// which case the caller must kill the orphan itself.
func (l *lifecycle) spawned(h *process.Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Starting {
		return false
	}
	l.handle = h
	return true
}

func (l *lifecycle) markRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Starting {
		return false
	}
	l.state = Running
	return true
}

// stop runs kill exactly once and leaves the session Stopped.
func (l *lifecycle) stop(kill func(*process.Handle)) {
	l.mu.Lock()
	switch l.state {
	case Stopped:
		l.mu.Unlock()
		return
	case Stopping:
		l.mu.Unlock()
		<-l.stopped
		return
	}
	h := l.handle
	l.state = Stopping
	l.mu.Unlock()

	if h != nil {
		kill(h)
	}

	l.mu.Lock()
	l.state = Stopped
	l.mu.Unlock()
	close(l.stopped)
}
