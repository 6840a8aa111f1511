package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/poll"
	"github.com/five82/skiff/internal/process"
)

// ErrGatewayUnavailable means the metadata gateway never answered its health
// check. skiff cannot work without it.
var ErrGatewayUnavailable = errors.New("metadata gateway unavailable")

const gatewayHealthUnits = 10

// GatewayControl is the part of the gateway API the session uses.
type GatewayControl interface {
	Status(ctx context.Context) (map[string]any, error)
	Shutdown(ctx context.Context) error
}

// GatewayConfig configures a Gateway session.
type GatewayConfig struct {
	Command Template
	Bind    string
	Verbose bool
	Unit    time.Duration
}

// Gateway runs the metadata gateway for the whole program lifetime.
type Gateway struct {
	lifecycle
	cfg     GatewayConfig
	sup     Supervisor
	control GatewayControl
	clock   clock.Clock
	log     zerolog.Logger
}

// NewGateway creates a gateway session. A nil clock uses real time.
func NewGateway(cfg GatewayConfig, sup Supervisor, control GatewayControl, c clock.Clock, logger zerolog.Logger) *Gateway {
	if c == nil {
		c = clock.Real{}
	}
	return &Gateway{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		sup:       sup,
		control:   control,
		clock:     c,
		log:       logger,
	}
}

// Args returns the gateway's own arguments.
func (g *Gateway) Args() []string {
	args := []string{"-bind", g.cfg.Bind}
	if g.cfg.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Start spawns the gateway and waits until its status endpoint answers. On
// failure the session is stopped and ErrGatewayUnavailable is returned.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.beginStart(); err != nil {
		return err
	}
	h, err := g.sup.Start(g.cfg.Command.command(g.Args()))
	if err != nil {
		g.Stop(ctx)
		return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	if !g.spawned(h) {
		g.kill(ctx, h)
		return fmt.Errorf("%w: stopped during startup", ErrGatewayUnavailable)
	}

	unit := units(g.cfg.Unit, 1)
	_, healthy := poll.Until(ctx, g.clock, unit, g.control.Status, unit, units(g.cfg.Unit, gatewayHealthUnits))
	if !healthy || !g.markRunning() {
		g.Stop(ctx)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		return ErrGatewayUnavailable
	}
	g.log.Info().Str("bind", g.cfg.Bind).Int("pid", h.Pid()).Msg("metadata gateway ready")
	return nil
}

// Stop asks the gateway to shut down and kills its process tree.
func (g *Gateway) Stop(ctx context.Context) {
	g.stop(func(h *process.Handle) { g.kill(ctx, h) })
}

func (g *Gateway) kill(ctx context.Context, h *process.Handle) {
	g.sup.Stop(context.WithoutCancel(ctx), h, process.StopOptions{Shutdown: g.control.Shutdown})
}
