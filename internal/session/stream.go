package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/process"
)

const streamGraceUnits = 0.5

// StreamParams are the launch parameters of one stream daemon, snapshotted
// from settings when playback is requested.
type StreamParams struct {
	URI          string
	Bind         string
	DownloadDir  string
	ListenPort   int
	DownloadRate int // kB/s, -1 unlimited
	UploadRate   int // kB/s, -1 unlimited
	Encryption   int
	KeepComplete bool
	Verbose      bool
}

// Args renders the daemon's command line arguments.
func (p StreamParams) Args() []string {
	args := []string{
		"-bind", p.Bind,
		"-dl-path", p.DownloadDir,
		"-uri", p.URI,
		"-encryption", strconv.Itoa(p.Encryption),
		"-dl-rate", strconv.Itoa(p.DownloadRate),
		"-ul-rate", strconv.Itoa(p.UploadRate),
		"-listen-port", strconv.Itoa(p.ListenPort),
	}
	if p.KeepComplete {
		args = append(args, "-keep-complete")
	}
	if p.Verbose {
		args = append(args, "-verbose")
	}
	return args
}

// DownloadDir picks where the daemon stores data: the persisted directory when
// the user keeps files and configured one, the scratch directory otherwise.
func DownloadDir(keepFiles bool, persisted, scratch string) string {
	if keepFiles && strings.TrimSpace(persisted) != "" {
		return persisted
	}
	return scratch
}

// StreamControl is the part of the stream daemon API the session uses.
type StreamControl interface {
	Shutdown(ctx context.Context) error
}

// Stream runs one stream daemon for one playback attempt.
type Stream struct {
	lifecycle
	command Template
	unit    time.Duration
	sup     Supervisor
	control StreamControl
	log     zerolog.Logger
}

// NewStream creates a stream session. unit is one time unit.
func NewStream(command Template, unit time.Duration, sup Supervisor, control StreamControl, logger zerolog.Logger) *Stream {
	return &Stream{
		lifecycle: newLifecycle(),
		command:   command,
		unit:      unit,
		sup:       sup,
		control:   control,
		log:       logger,
	}
}

// Start spawns the daemon and returns immediately; readiness is established
// by polling its status endpoint.
func (s *Stream) Start(p StreamParams) error {
	if err := s.beginStart(); err != nil {
		return err
	}
	h, err := s.sup.Start(s.command.command(p.Args()))
	if err != nil {
		s.Stop(context.Background())
		return fmt.Errorf("start stream daemon: %w", err)
	}
	if !s.spawned(h) {
		s.kill(context.Background(), h)
		return fmt.Errorf("start stream daemon: stopped during startup")
	}
	s.markRunning()
	s.log.Info().Int("pid", h.Pid()).Str("dir", p.DownloadDir).Msg("stream daemon started")
	return nil
}

// Done is closed when the daemon process exits. It is nil before Start.
func (s *Stream) Done() <-chan struct{} {
	if h := s.Handle(); h != nil {
		return h.Done()
	}
	return nil
}

// Stop asks the daemon to shut down, waits half a unit, then kills its tree.
func (s *Stream) Stop(ctx context.Context) {
	s.stop(func(h *process.Handle) { s.kill(ctx, h) })
}

func (s *Stream) kill(ctx context.Context, h *process.Handle) {
	s.sup.Stop(context.WithoutCancel(ctx), h, process.StopOptions{
		Shutdown: s.control.Shutdown,
		Grace:    units(s.unit, streamGraceUnits),
	})
}
