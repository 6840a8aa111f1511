// Package process starts and stops the external programs skiff depends on.
//
// Start never waits for a program to become useful; callers pair it with a
// status poll. Stop never fails: every error a dying process can produce is
// classified, logged and discarded.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
)

const (
	shutdownRequestTimeout = 2 * time.Second
	reapTimeout            = 3 * time.Second
)

// Command is a resolved command line.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string  // nil inherits the current environment
	Output io.Writer // receives stdout and stderr; nil discards
}

// Name returns the program name used in logs.
func (c Command) Name() string {
	return filepath.Base(c.Path)
}

// Handle is the exclusive reference to one started process.
type Handle struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error

	stopOnce sync.Once
}

// Pid returns the OS process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Name returns the program name.
func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Running reports whether the process has not exited yet.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit status, or -1 while running or when killed by a signal.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Wait blocks until the process exits or ctx ends.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.ExitCode(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	code := -1
	if h.cmd.ProcessState != nil {
		code = h.cmd.ProcessState.ExitCode()
	}
	h.mu.Lock()
	h.exitCode = code
	h.waitErr = err
	h.mu.Unlock()
	close(h.done)
}

// StopOptions tune Stop for one kind of process.
type StopOptions struct {
	// Shutdown, when set, asks a running process to exit on its own.
	Shutdown func(ctx context.Context) error
	// Grace is how long to wait after Shutdown before killing.
	Grace time.Duration
}

// Supervisor starts and stops processes.
type Supervisor struct {
	log   zerolog.Logger
	clock clock.Clock
}

// NewSupervisor creates a Supervisor. A nil clock uses real time.
func NewSupervisor(logger zerolog.Logger, c clock.Clock) *Supervisor {
	if c == nil {
		c = clock.Real{}
	}
	return &Supervisor{log: logger, clock: c}
}

// Start spawns the command in its own process group and returns immediately.
func (s *Supervisor) Start(c Command) (*Handle, error) {
	if c.Path == "" {
		return nil, errors.New("start: empty command path")
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Output != nil {
		cmd.Stdout = c.Output
		cmd.Stderr = c.Output
	}
	setGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name(), err)
	}

	h := &Handle{name: c.Name(), cmd: cmd, done: make(chan struct{}), exitCode: -1}
	go h.reap()

	s.log.Debug().Str("process", h.name).Int("pid", h.Pid()).Strs("args", c.Args).Msg("process started")
	return h, nil
}

// Stop shuts the process down and kills it together with its descendants.
// It is idempotent, safe on a nil handle, and never fails. Concurrent callers
// block until the first Stop has finished.
func (s *Supervisor) Stop(ctx context.Context, h *Handle, opts StopOptions) {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		s.stop(ctx, h, opts)
	})
}

func (s *Supervisor) stop(ctx context.Context, h *Handle, opts StopOptions) {
	logger := s.log.With().Str("process", h.name).Int("pid", h.Pid()).Logger()

	if h.Running() && opts.Shutdown != nil {
		reqCtx, cancel := context.WithTimeout(ctx, shutdownRequestTimeout)
		err := opts.Shutdown(reqCtx)
		cancel()
		if err != nil {
			logger.Debug().Err(err).Msg("shutdown request failed")
		}
		if opts.Grace > 0 {
			select {
			case <-h.Done():
			case <-ctx.Done():
			case <-s.clock.After(opts.Grace):
			}
		}
	}

	for _, err := range terminate(h) {
		if isGone(err) {
			logger.Debug().Err(err).Msg("process already gone")
			continue
		}
		logger.Warn().Err(err).Msg("terminate failed")
	}

	select {
	case <-h.Done():
		logger.Debug().Int("exit_code", h.ExitCode()).Msg("process stopped")
	case <-time.After(reapTimeout):
		logger.Warn().Msg("process did not exit after kill")
	}
}
