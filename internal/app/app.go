package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/config"
	"github.com/five82/skiff/internal/gateway"
	"github.com/five82/skiff/internal/logging"
	"github.com/five82/skiff/internal/orchestrator"
	"github.com/five82/skiff/internal/player"
	"github.com/five82/skiff/internal/prefs"
	"github.com/five82/skiff/internal/process"
	"github.com/five82/skiff/internal/session"
	"github.com/five82/skiff/internal/state"
	"github.com/five82/skiff/internal/streamd"
	"github.com/five82/skiff/internal/ui"
)

// ErrHelpersUnavailable wraps every startup failure that leaves skiff without
// its helper programs.
var ErrHelpersUnavailable = errors.New("skiff needs the metadata gateway and the stream daemon")

// Options configure the skiff application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/skiff/prefs.toml
	Verbose    bool
}

// Run boots the skiff TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := prepare(opts, fileLogging)
	if err != nil {
		return err
	}
	defer env.cleanup()

	store := &state.Store{}
	o := env.orchestrator(store)
	if err := o.Start(ctx); err != nil {
		o.Close(context.Background())
		return fmt.Errorf("%w: %w", ErrHelpersUnavailable, err)
	}
	defer o.Close(context.Background())

	runCtx, cancel := context.WithCancel(ctx)
	watchDone := env.watchSettings(runCtx)
	healthDone := StartHealthPoller(runCtx, store, env.gateway.Status, defaultHealthInterval, env.log.With().Str("component", "health").Logger())
	defer func() {
		cancel()
		<-watchDone
		<-healthDone
	}()

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	category := gateway.Category(userPrefs.Category)
	if category == 0 {
		category = gateway.Category(env.holder.Settings().Category)
	}

	return ui.Run(ui.Options{
		Context:    runCtx,
		Controller: o,
		Store:      store,
		LogPath:    env.cfg.LogPath(),
		Category:   category,
		ThemeName:  userPrefs.Theme,
		PrefsPath:  opts.PrefsPath,
	})
}

// environment holds everything resolved before the orchestrator exists.
type environment struct {
	cfg     config.Runtime
	log     zerolog.Logger
	output  io.Writer // helper and player output
	scratch string
	gateway *gateway.Client
	stream  *streamd.Client
	holder  *config.Holder
	closers []func()
}

// logSetup configures logging for one front end and returns where helper
// output should go.
type logSetup func(cfg config.Config) (io.Writer, func(), error)

func prepare(opts Options, setupLog logSetup) (*environment, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Verbose {
		cfg.Verbose = true
	}

	rt, err := config.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHelpersUnavailable, err)
	}

	env := &environment{cfg: rt}
	output, closeLog, err := setupLog(cfg)
	if err != nil {
		return nil, err
	}
	env.output = output
	env.closers = append(env.closers, closeLog)
	env.log = logging.WithComponent("app")
	env.log.Info().
		Str("gateway", rt.GatewayBinary).
		Str("stream", rt.StreamBinary).
		Str("player", rt.PlayerBinary).
		Str("config", cfg.Path).
		Msg("resolved helper programs")

	scratch, err := os.MkdirTemp("", "skiff-")
	if err != nil {
		env.cleanup()
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	env.scratch = scratch
	env.closers = append(env.closers, func() {
		if err := os.RemoveAll(scratch); err != nil {
			env.log.Warn().Err(err).Str("dir", scratch).Msg("scratch cleanup failed")
		}
	})

	if env.gateway, err = gateway.NewClient(cfg.Gateway.Bind); err != nil {
		env.cleanup()
		return nil, fmt.Errorf("init gateway client: %w", err)
	}
	if env.stream, err = streamd.NewClient(cfg.Stream.Bind); err != nil {
		env.cleanup()
		return nil, fmt.Errorf("init stream client: %w", err)
	}
	env.holder = config.NewHolder(cfg, logging.WithComponent("config"))
	return env, nil
}

// cleanup runs the closers in reverse order.
func (e *environment) cleanup() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *environment) orchestrator(sink orchestrator.Sink) *orchestrator.Orchestrator {
	cfg := e.cfg
	return orchestrator.New(orchestrator.Config{
		Gateway: session.GatewayConfig{
			Command: session.Template{Binary: cfg.GatewayBinary, Output: e.output},
			Bind:    cfg.Gateway.Bind,
			Verbose: cfg.Verbose,
			Unit:    cfg.TimeUnit,
		},
		Stream:     session.Template{Binary: cfg.StreamBinary, Output: e.output},
		StreamBind: cfg.Stream.Bind,
		Player:     session.Template{Binary: cfg.PlayerBinary, Output: e.output},
		PlayerOptions: player.Options{
			Binary:     cfg.PlayerBinary,
			Kind:       player.Detect(cfg.PlayerBinary),
			Fullscreen: cfg.Player.Fullscreen,
		},
		Unit:          cfg.TimeUnit,
		ThresholdMB:   cfg.ThresholdMB,
		BufferTimeout: cfg.BufferTimeout,
		Verbose:       cfg.Verbose,
		ScratchDir:    e.scratch,
		CacheDir:      filepath.Join(cfg.LogDir, "gateway"),
	}, orchestrator.Deps{
		Supervisor: process.NewSupervisor(logging.WithComponent("process"), nil),
		Metadata:   e.gateway,
		Stream:     e.stream,
		Settings:   e.holder,
		Sink:       sink,
		Clock:      clock.Real{},
		Log:        logging.WithComponent("orchestrator"),
	})
}

// watchSettings reloads [settings] on config file changes until ctx ends.
func (e *environment) watchSettings(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.holder.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn().Err(err).Msg("config watch stopped")
		}
	}()
	return done
}

// fileLogging sends JSON lines and helper output to the log file, keeping the
// terminal for the TUI.
func fileLogging(cfg config.Config) (io.Writer, func(), error) {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	logging.Configure(logging.Config{Level: levelFor(cfg), Output: file})
	return file, func() { _ = file.Close() }, nil
}

// consoleLogging writes human-readable lines to stderr. Helper output is only
// shown when verbose.
func consoleLogging(cfg config.Config) (io.Writer, func(), error) {
	logging.Configure(logging.Config{Level: levelFor(cfg), Output: os.Stderr, Console: true})
	if cfg.Verbose {
		return os.Stderr, func() {}, nil
	}
	return nil, func() {}, nil
}

func levelFor(cfg config.Config) string {
	if cfg.Verbose {
		return "debug"
	}
	return ""
}
