package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/player"
	"github.com/five82/skiff/internal/process"
)

const playbackSettleUnits = 3

// PlaybackParams describe what to play.
type PlaybackParams struct {
	URL       string
	Subtitles []string
	Title     string
}

// Playback runs one media player.
type Playback struct {
	lifecycle
	command Template
	options player.Options
	unit    time.Duration
	sup     Supervisor
	clock   clock.Clock
	log     zerolog.Logger
}

// NewPlayback creates a playback session. A nil clock uses real time.
func NewPlayback(command Template, options player.Options, unit time.Duration, sup Supervisor, c clock.Clock, logger zerolog.Logger) *Playback {
	if c == nil {
		c = clock.Real{}
	}
	return &Playback{
		lifecycle: newLifecycle(),
		command:   command,
		options:   options,
		unit:      unit,
		sup:       sup,
		clock:     c,
		log:       logger,
	}
}

// Run spawns the player, lets it settle, reports started, and blocks until the
// player exits. onStarted is not called when the player dies while settling.
// A cancelled ctx returns ctx.Err() without killing the player; use Stop.
func (p *Playback) Run(ctx context.Context, params PlaybackParams, onStarted func(title string)) (int, error) {
	if err := p.beginStart(); err != nil {
		return -1, err
	}
	h, err := p.sup.Start(p.command.command(p.options.Args(params.URL, params.Subtitles, params.Title)))
	if err != nil {
		p.Stop(context.Background())
		return -1, fmt.Errorf("start player: %w", err)
	}
	if !p.spawned(h) {
		p.kill(ctx, h)
		return -1, fmt.Errorf("start player: stopped during startup")
	}
	p.log.Info().Int("pid", h.Pid()).Str("title", params.Title).Str("player", p.options.Kind.String()).Msg("player started")

	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-h.Done():
	case <-p.clock.After(units(p.unit, playbackSettleUnits)):
		if p.markRunning() && onStarted != nil {
			onStarted(params.Title)
		}
	}

	code, err := h.Wait(ctx)
	if err != nil {
		return -1, err
	}
	p.log.Info().Int("exit_code", code).Msg("player exited")
	return code, nil
}

// Stop kills the player and everything it spawned.
func (p *Playback) Stop(ctx context.Context) {
	p.stop(func(h *process.Handle) { p.kill(ctx, h) })
}

func (p *Playback) kill(ctx context.Context, h *process.Handle) {
	p.sup.Stop(context.WithoutCancel(ctx), h, process.StopOptions{})
}
