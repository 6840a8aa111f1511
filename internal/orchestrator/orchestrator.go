// Package orchestrator sequences the gateway, stream and playback sessions
// behind a single state machine.
//
// There is at most one playback attempt at a time. Starting a new one, going
// back, or closing tears the previous attempt down in a fixed order: cancel
// buffering, stop the player, stop the stream daemon, then wait for the
// attempt's goroutine. A new stream daemon therefore never overlaps an old one
// on the shared control port.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/media"
	"github.com/five82/skiff/internal/player"
	"github.com/five82/skiff/internal/readiness"
	"github.com/five82/skiff/internal/session"
	"github.com/five82/skiff/internal/streamd"
)

const (
	firstContactUnits = 20
	suggestionLimit   = 10
)

var (
	// ErrNoPlayableURL means no URL could be found or resolved for playback.
	ErrNoPlayableURL = errors.New("no playable URL")
	// ErrStreamExited means the stream daemon died before playback began.
	ErrStreamExited = errors.New("stream daemon exited")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrNotBrowsing means the gateway is not up yet.
	ErrNotBrowsing = errors.New("metadata gateway not started")
)

// Metadata is the gateway API the orchestrator drives.
type Metadata interface {
	session.GatewayControl
	Top(ctx context.Context, q gateway.ListQuery) ([]gateway.Movie, error)
	Search(ctx context.Context, q gateway.ListQuery) ([]gateway.Movie, error)
	Summary(ctx context.Context, m gateway.Movie) (gateway.Summary, error)
	Subtitles(ctx context.Context, q gateway.SubtitleQuery) ([]gateway.Subtitle, error)
	UnzipSubtitle(ctx context.Context, downloadLink, dir string) (string, error)
	Trailer(ctx context.Context, videoID string) (string, error)
	Autocomplete(ctx context.Context, text string, limit int) ([]string, error)
}

// StreamAPI is the stream daemon control plane.
type StreamAPI interface {
	Status(ctx context.Context) (streamd.Snapshot, error)
	LargestFileURL(ctx context.Context) (string, error)
	Shutdown(ctx context.Context) error
}

// SettingsSource hands out the current settings snapshot.
type SettingsSource interface {
	Settings() config.Settings
}

// Config holds the fixed launch configuration resolved at startup.
type Config struct {
	Gateway       session.GatewayConfig
	Stream        session.Template
	StreamBind    string
	Player        session.Template
	PlayerOptions player.Options // Codepage is taken from settings per launch
	Unit          time.Duration
	ThresholdMB   float64
	BufferTimeout time.Duration
	Verbose       bool
	ScratchDir    string
	CacheDir      string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Supervisor session.Supervisor
	Metadata   Metadata
	Stream     StreamAPI
	Settings   SettingsSource
	Sink       Sink
	Clock      clock.Clock
	Log        zerolog.Logger
}

// PlayRequest describes a peer-to-peer playback.
type PlayRequest struct {
	Locator string        // magnet link or torrent URL
	Movie   gateway.Movie // optional; enables subtitle search
	ImdbID  string
}

// Orchestrator owns every session and the browse/play state.
type Orchestrator struct {
	cfg  Config
	deps Deps

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	// launchMu serializes Start, PlayMagnet, PlayURL, Back and Close.
	launchMu sync.Mutex

	mu       sync.Mutex
	state    State
	closed   bool
	gateway  *session.Gateway
	current  *attempt
	selected gateway.Movie
	summary  gateway.Summary
}

// New creates an idle Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Sink == nil {
		deps.Sink = discard{}
	}
	if cfg.Unit <= 0 {
		cfg.Unit = time.Second
	}
	if cfg.ThresholdMB <= 0 {
		cfg.ThresholdMB = readiness.DefaultThresholdMB
	}
	if cfg.Gateway.Unit <= 0 {
		cfg.Gateway.Unit = cfg.Unit
	}
	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{cfg: cfg, deps: deps, base: base, cancelBase: cancel}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Selected returns the movie and summary chosen with Select.
func (o *Orchestrator) Selected() (gateway.Movie, gateway.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected, o.summary
}

// Start launches the metadata gateway and waits for it to become healthy.
// ErrGatewayUnavailable is fatal for the application.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.state != Idle {
		o.mu.Unlock()
		return fmt.Errorf("start: already %s", o.state)
	}
	gw := session.NewGateway(o.cfg.Gateway, o.deps.Supervisor, o.deps.Metadata, o.deps.Clock, o.deps.Log.With().Str("session", "gateway").Logger())
	o.gateway = gw
	o.mu.Unlock()

	o.transition(GatewayStarting)
	if err := gw.Start(ctx); err != nil {
		o.transition(Idle)
		return err
	}
	o.transition(Browsing)
	o.deps.Sink.Publish(GatewayReady{})
	return nil
}

func (o *Orchestrator) listQuery(query string) gateway.ListQuery {
	s := o.deps.Settings.Settings()
	return gateway.ListQuery{
		Category: gateway.Category(s.Category),
		Query:    query,
		Limit:    s.Limit,
		Days:     s.Days,
		CacheDir: o.cfg.CacheDir,
	}
}

func (o *Orchestrator) browsable() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.state == Idle || o.state == GatewayStarting {
		return ErrNotBrowsing
	}
	return nil
}

// Top lists popular releases. A zero category uses the configured one.
func (o *Orchestrator) Top(ctx context.Context, category gateway.Category, force bool) ([]gateway.Movie, error) {
	if err := o.browsable(); err != nil {
		return nil, err
	}
	q := o.listQuery("")
	if category != 0 {
		q.Category = category
	}
	q.Force = force
	return o.deps.Metadata.Top(ctx, q)
}

// Search finds releases by title within a category. A zero category uses the
// configured one.
func (o *Orchestrator) Search(ctx context.Context, category gateway.Category, query string) ([]gateway.Movie, error) {
	if err := o.browsable(); err != nil {
		return nil, err
	}
	q := o.listQuery(query)
	if category != 0 {
		q.Category = category
	}
	return o.deps.Metadata.Search(ctx, q)
}

// Suggest returns title completions for a partial query.
func (o *Orchestrator) Suggest(ctx context.Context, text string) ([]string, error) {
	if err := o.browsable(); err != nil {
		return nil, err
	}
	return o.deps.Metadata.Autocomplete(ctx, text, suggestionLimit)
}

// Select fetches the summary of m and moves Browsing -> Summary.
func (o *Orchestrator) Select(ctx context.Context, m gateway.Movie) (gateway.Summary, error) {
	if err := o.browsable(); err != nil {
		return gateway.Summary{}, err
	}
	summary, err := o.deps.Metadata.Summary(ctx, m)
	if err != nil {
		return gateway.Summary{}, err
	}

	o.mu.Lock()
	o.selected, o.summary = m, summary
	from := o.state
	moved := from == Browsing
	if moved {
		o.state = Summary
	}
	o.mu.Unlock()
	if moved {
		o.deps.Sink.Publish(StateChanged{From: from, To: Summary})
	}
	return summary, nil
}

// Back leaves Summary, or abandons the current playback attempt, and returns
// to Browsing.
func (o *Orchestrator) Back(ctx context.Context) {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	o.mu.Lock()
	state := o.state
	a := o.current
	o.current = nil
	o.mu.Unlock()

	switch {
	case state == Summary:
		o.transition(Browsing)
	case state.Active():
		o.teardown(ctx, a)
		o.transition(Browsing)
	}
}

// PlayMagnet starts a stream daemon for req and plays it once enough is
// buffered. It returns when the daemon has been spawned; progress and the
// outcome arrive as events.
func (o *Orchestrator) PlayMagnet(ctx context.Context, req PlayRequest) error {
	locator := strings.TrimSpace(req.Locator)
	if locator == "" {
		return fmt.Errorf("play: %w", media.ErrUnsupported)
	}
	log := o.deps.Log
	if ref, err := media.Parse(locator); err == nil && ref.Kind == media.KindMagnet {
		log = log.With().Str("info_hash", ref.InfoHash).Logger()
	}

	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	a, err := o.replaceAttempt(ctx)
	if err != nil {
		return err
	}
	a.log = log.With().Str("attempt", a.id).Logger()
	settings := o.deps.Settings.Settings()

	o.advance(a, StreamStarting)
	params := session.StreamParams{
		URI:          locator,
		Bind:         o.cfg.StreamBind,
		DownloadDir:  session.DownloadDir(settings.KeepFiles, settings.DownloadDir, o.cfg.ScratchDir),
		ListenPort:   settings.ListenPort,
		DownloadRate: settings.DownloadRate,
		UploadRate:   settings.UploadRate,
		Encryption:   settings.Encryption,
		KeepComplete: settings.KeepFiles && strings.TrimSpace(settings.DownloadDir) != "",
		Verbose:      o.cfg.Verbose,
	}
	a.stream = session.NewStream(o.cfg.Stream, o.cfg.Unit, o.deps.Supervisor, o.deps.Stream, a.log.With().Str("session", "stream").Logger())
	if err := a.stream.Start(params); err != nil {
		a.cancel()
		close(a.done)
		o.release(a)
		o.deps.Sink.Publish(Notice{Message: "Could not start the stream daemon", Err: err})
		return err
	}
	o.deps.Sink.Publish(StreamStarted{Locator: locator})

	o.wg.Add(1)
	go o.runStream(a, req, settings)
	return nil
}

// PlayURL plays a direct or hosted video URL without a stream daemon. Hosted
// URLs are resolved through the gateway first; if that fails nothing changes.
func (o *Orchestrator) PlayURL(ctx context.Context, rawURL, title string) error {
	ref, err := media.Parse(rawURL)
	if err != nil {
		o.deps.Sink.Publish(Notice{Message: "No playable URL", Err: err})
		return fmt.Errorf("%w: %w", ErrNoPlayableURL, err)
	}
	if ref.Kind == media.KindMagnet {
		return o.PlayMagnet(ctx, PlayRequest{Locator: ref.URI})
	}

	url := ref.URI
	if ref.Kind == media.KindHosted {
		resolved, err := o.deps.Metadata.Trailer(ctx, ref.VideoID)
		if err == nil && strings.TrimSpace(resolved) == "" {
			err = errors.New("empty trailer URL")
		}
		if err != nil {
			o.deps.Sink.Publish(Notice{Message: "No playable URL", Err: err})
			return fmt.Errorf("%w: %w", ErrNoPlayableURL, err)
		}
		url = strings.TrimSpace(resolved)
	}

	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	a, err := o.replaceAttempt(ctx)
	if err != nil {
		return err
	}
	a.log = o.deps.Log.With().Str("attempt", a.id).Logger()
	settings := o.deps.Settings.Settings()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(a.done)
		defer o.finish(a)
		o.play(a, url, nil, title, settings)
	}()
	return nil
}

// Close stops the player, the stream daemon and the gateway, in that order,
// and waits for every background goroutine.
func (o *Orchestrator) Close(ctx context.Context) {
	o.launchMu.Lock()
	defer o.launchMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	a := o.current
	o.current = nil
	gw := o.gateway
	o.mu.Unlock()

	o.teardown(ctx, a)
	if gw != nil {
		gw.Stop(ctx)
	}
	o.cancelBase()
	o.wg.Wait()
	o.transition(Idle)
}

// replaceAttempt tears down the current attempt and installs a fresh one.
// Callers hold launchMu.
func (o *Orchestrator) replaceAttempt(ctx context.Context) (*attempt, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if o.state == Idle || o.state == GatewayStarting {
		o.mu.Unlock()
		return nil, ErrNotBrowsing
	}
	prev := o.current
	o.current = nil
	o.mu.Unlock()

	o.teardown(ctx, prev)

	a := newAttempt(o.base)
	o.mu.Lock()
	o.current = a
	o.mu.Unlock()
	return a, nil
}

func (o *Orchestrator) runStream(a *attempt, req PlayRequest, settings config.Settings) {
	defer o.wg.Done()
	defer close(a.done)
	defer o.finish(a)

	if !o.advance(a, Buffering) {
		return
	}
	ctx, stopWatch := watchStream(a.ctx, a.stream.Done())
	defer stopWatch()

	gate := readiness.Gate{
		Fetch:        o.deps.Stream.Status,
		Clock:        o.deps.Clock,
		Interval:     o.cfg.Unit,
		PerCall:      o.cfg.Unit,
		FirstContact: firstContactUnits * o.cfg.Unit,
		Timeout:      o.cfg.BufferTimeout,
		ThresholdMB:  o.cfg.ThresholdMB,
		OnProgress: func(snap streamd.Snapshot) {
			o.deps.Sink.Publish(Progress{Snapshot: snap, Result: readiness.Evaluate(snap, o.cfg.ThresholdMB)})
		},
		Log: a.log,
	}
	res, err := gate.Wait(ctx)
	if err != nil {
		switch {
		case o.streamExited(ctx, a):
		case !errors.Is(err, readiness.ErrCancelled):
			a.log.Warn().Err(err).Msg("buffering failed")
			o.deps.Sink.Publish(Notice{Message: "Buffering failed", Err: err})
		}
		return
	}

	subtitles := o.fetchSubtitles(ctx, a.log, req, settings)
	if ctx.Err() != nil {
		o.streamExited(ctx, a)
		return
	}

	url, err := o.deps.Stream.LargestFileURL(ctx)
	if err != nil {
		if o.streamExited(ctx, a) {
			return
		}
		if ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("no playable file")
			o.deps.Sink.Publish(Notice{Message: "No playable URL", Err: fmt.Errorf("%w: %w", ErrNoPlayableURL, err)})
		}
		return
	}

	title := res.Title
	if title == "" {
		title = req.Movie.Title
	}
	o.play(a, url, subtitles, title, settings)
}

// watchStream derives a context that is cancelled with ErrStreamExited when
// done closes. stop releases the watcher.
func watchStream(parent context.Context, done <-chan struct{}) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-done:
			cancel(ErrStreamExited)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		cancel(nil)
		<-exited
	}
}

// streamExited reports whether ctx ended because the daemon died, and tells
// the user if so. A user cancel of the attempt takes precedence.
func (o *Orchestrator) streamExited(ctx context.Context, a *attempt) bool {
	if a.ctx.Err() != nil || !errors.Is(context.Cause(ctx), ErrStreamExited) {
		return false
	}
	a.log.Warn().Msg("stream daemon exited while buffering")
	o.deps.Sink.Publish(Notice{Message: "Stream daemon exited", Err: ErrStreamExited})
	return true
}

// play runs the player for a and publishes its lifecycle.
func (o *Orchestrator) play(a *attempt, url string, subtitles []string, title string, settings config.Settings) {
	if !o.advance(a, Playing) {
		return
	}
	opts := o.cfg.PlayerOptions
	opts.Codepage = settings.Codepage
	opts.Verbose = o.cfg.Verbose
	pb := session.NewPlayback(o.cfg.Player, opts, o.cfg.Unit, o.deps.Supervisor, o.deps.Clock, a.log.With().Str("session", "player").Logger())
	if !a.setPlayer(pb) {
		return
	}

	code, err := pb.Run(a.ctx, session.PlaybackParams{URL: url, Subtitles: subtitles, Title: title}, func(title string) {
		o.deps.Sink.Publish(PlaybackStarted{Title: title})
	})
	if err != nil {
		if a.ctx.Err() == nil {
			o.deps.Sink.Publish(Notice{Message: "Could not start the player", Err: err})
		}
		return
	}
	o.deps.Sink.Publish(PlaybackFinished{ExitCode: code})
}

// finish stops a's sessions and, when a is still current, returns to Browsing.
func (o *Orchestrator) finish(a *attempt) {
	a.stopSessions(context.Background())
	o.release(a)
}

func (o *Orchestrator) release(a *attempt) {
	o.mu.Lock()
	if o.current != a {
		o.mu.Unlock()
		return
	}
	o.current = nil
	from := o.state
	o.state = Browsing
	o.mu.Unlock()
	if from != Browsing {
		o.deps.Sink.Publish(StateChanged{From: from, To: Browsing})
	}
}

// teardown cancels a, stops its player then its stream, and waits for its
// goroutine. It is safe on nil.
func (o *Orchestrator) teardown(ctx context.Context, a *attempt) {
	if a == nil {
		return
	}
	a.cancel()
	a.stopSessions(ctx)
	<-a.done
	a.log.Debug().Msg("attempt torn down")
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()
	if from != to {
		o.deps.Sink.Publish(StateChanged{From: from, To: to})
	}
}

// advance moves to the given state only while a is the current attempt.
func (o *Orchestrator) advance(a *attempt, to State) bool {
	o.mu.Lock()
	if o.current != a || a.ctx.Err() != nil {
		o.mu.Unlock()
		return false
	}
	from := o.state
	o.state = to
	o.mu.Unlock()
	if from != to {
		o.deps.Sink.Publish(StateChanged{From: from, To: to})
	}
	return true
}

// attempt is one playback request and the sessions it owns.
type attempt struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
	stream *session.Stream // set before the attempt goroutine starts

	mu     sync.Mutex
	player *session.Playback
}

func newAttempt(parent context.Context) *attempt {
	ctx, cancel := context.WithCancel(parent)
	return &attempt{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    zerolog.Nop(),
	}
}

// setPlayer records pb unless the attempt was already cancelled.
func (a *attempt) setPlayer(pb *session.Playback) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx.Err() != nil {
		return false
	}
	a.player = pb
	return true
}

// stopSessions stops the player before the stream daemon.
func (a *attempt) stopSessions(ctx context.Context) {
	a.mu.Lock()
	pb := a.player
	a.mu.Unlock()
	if pb != nil {
		pb.Stop(ctx)
	}
	if a.stream != nil {
		a.stream.Stop(ctx)
	}
}
