package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/media"
	"github.com/five82/skiff/internal/orchestrator"
)

// ErrPlaybackFailed means the attempt ended without the player running to
// completion.
var ErrPlaybackFailed = errors.New("playback failed")

// Play runs one locator without the TUI and returns the player's exit code.
// Progress is logged to stderr.
func Play(ctx context.Context, opts Options, locator string) (int, error) {
	ref, err := media.Parse(locator)
	if err != nil {
		return 1, err
	}

	env, err := prepare(opts, consoleLogging)
	if err != nil {
		return 1, err
	}
	defer env.cleanup()

	watcher := newPlayWatcher(env.log.With().Str("component", "play").Logger())
	o := env.orchestrator(watcher)
	if err := o.Start(ctx); err != nil {
		o.Close(context.Background())
		return 1, fmt.Errorf("%w: %w", ErrHelpersUnavailable, err)
	}
	defer o.Close(context.Background())

	if ref.Kind == media.KindMagnet {
		err = o.PlayMagnet(ctx, orchestrator.PlayRequest{Locator: ref.URI})
	} else {
		err = o.PlayURL(ctx, ref.URI, "")
	}
	if err != nil {
		return 1, err
	}

	select {
	case <-ctx.Done():
		return 1, ctx.Err()
	case <-watcher.done:
	}
	return watcher.result()
}

// playWatcher is the orchestrator sink for headless playback. It logs
// progress and signals done once the attempt is over.
type playWatcher struct {
	log  zerolog.Logger
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	finished bool
	code     int
	notice   *orchestrator.Notice
	lastPct  int
}

func newPlayWatcher(log zerolog.Logger) *playWatcher {
	return &playWatcher{log: log, done: make(chan struct{}), lastPct: -1}
}

func (w *playWatcher) Publish(e orchestrator.Event) {
	switch e := e.(type) {
	case orchestrator.Progress:
		pct := int(e.Result.Percent)
		w.mu.Lock()
		changed := pct != w.lastPct
		w.lastPct = pct
		w.mu.Unlock()
		if changed {
			w.log.Info().Int("percent", pct).Str("name", e.Snapshot.Name).Msg(e.Result.Description)
		}
	case orchestrator.PlaybackStarted:
		w.log.Info().Str("title", e.Title).Msg("player started")
	case orchestrator.PlaybackFinished:
		w.mu.Lock()
		w.finished, w.code = true, e.ExitCode
		w.mu.Unlock()
		w.log.Info().Int("exit_code", e.ExitCode).Msg("player exited")
	case orchestrator.Notice:
		w.mu.Lock()
		w.notice = &e
		w.mu.Unlock()
		w.log.Warn().Err(e.Err).Msg(e.Message)
	case orchestrator.StateChanged:
		w.log.Debug().Stringer("from", e.From).Stringer("to", e.To).Msg("state changed")
		if e.From.Active() && e.To == orchestrator.Browsing {
			w.once.Do(func() { close(w.done) })
		}
	}
}

// result reports the exit code, or the failure that ended the attempt.
func (w *playWatcher) result() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return w.code, nil
	}
	if w.notice != nil && w.notice.Err != nil {
		return 1, fmt.Errorf("%w: %s: %w", ErrPlaybackFailed, w.notice.Message, w.notice.Err)
	}
	if w.notice != nil {
		return 1, fmt.Errorf("%w: %s", ErrPlaybackFailed, w.notice.Message)
	}
	return 1, ErrPlaybackFailed
}
