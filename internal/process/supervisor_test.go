//go:build linux

package process

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/skiff/internal/clock"
)

func newTestSupervisor() *Supervisor {
	return NewSupervisor(zerolog.Nop(), clock.Real{})
}

func TestStart_CapturesExitCode(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Start(Command{Path: "/bin/sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.False(t, h.Running())
}

func TestStart_MissingBinaryFails(t *testing.T) {
	s := newTestSupervisor()
	_, err := s.Start(Command{Path: "/nonexistent/skiff-daemon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skiff-daemon")

	_, err = s.Start(Command{})
	require.Error(t, err)
}

func TestStop_NilHandleAndRepeatedCallsAreSafe(t *testing.T) {
	s := newTestSupervisor()
	s.Stop(context.Background(), nil, StopOptions{})

	h, err := s.Start(Command{Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	require.NoError(t, err)

	s.Stop(context.Background(), h, StopOptions{})
	s.Stop(context.Background(), h, StopOptions{})
	assert.False(t, h.Running())
}

func TestStop_AlreadyExitedProcess(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Start(Command{Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)
	<-h.Done()

	var calls atomic.Int32
	s.Stop(context.Background(), h, StopOptions{
		Shutdown: func(context.Context) error { calls.Add(1); return nil },
	})
	assert.Zero(t, calls.Load(), "shutdown request must only go to running processes")
	assert.Equal(t, 0, h.ExitCode())
}

func TestStop_GracefulShutdownWithinGrace(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Start(Command{Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	require.NoError(t, err)

	var calls atomic.Int32
	s.Stop(context.Background(), h, StopOptions{
		Shutdown: func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("connection refused")
		},
		Grace: 50 * time.Millisecond,
	})
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, h.Running())
}

func TestStop_KillsDescendants(t *testing.T) {
	s := newTestSupervisor()
	pidFile := t.TempDir() + "/child.pid"
	h, err := s.Start(Command{Path: "/bin/sh", Args: []string{"-c", "sleep 30 & echo $! > " + pidFile + "; wait"}})
	require.NoError(t, err)

	var childPid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		childPid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && childPid > 0
	}, 5*time.Second, 20*time.Millisecond)

	s.Stop(context.Background(), h, StopOptions{})
	assert.False(t, h.Running())

	assert.Eventually(t, func() bool {
		err := syscall.Kill(childPid, syscall.Signal(0))
		return errors.Is(err, syscall.ESRCH) || zombie(childPid)
	}, 5*time.Second, 20*time.Millisecond, "descendant %d survived Stop", childPid)
}

// zombie reports whether pid is dead but not yet reaped by its new parent.
func zombie(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return true
	}
	fields := strings.Fields(string(data))
	return len(fields) > 2 && fields[2] == "Z"
}
