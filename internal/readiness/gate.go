// Package readiness decides when enough of a stream is buffered to start the
// player.
//
// Evaluate is pure and level-triggered: it looks only at the snapshot it is
// given, so it can be re-run on every poll. Gate.Wait drives it from the
// stream daemon's status endpoint.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/clock"
	"github.com/five82/skiff/internal/poll"
	"github.com/five82/skiff/internal/streamd"
)

// DefaultThresholdMB is the minimum buffered content before playback.
const DefaultThresholdMB = 12.0

// Decision is the outcome of evaluating one snapshot.
type Decision int

const (
	Continue Decision = iota
	Ready
)

func (d Decision) String() string {
	if d == Ready {
		return "ready"
	}
	return "continue"
}

// Result describes one evaluation.
type Result struct {
	Decision    Decision
	Title       string  // daemon-reported name, set when Ready
	Description string  // human-readable progress line
	Percent     float64 // share of the threshold buffered, 0..100
}

// Evaluate decides whether snap is buffered enough to play.
func Evaluate(snap streamd.Snapshot, thresholdMB float64) Result {
	if thresholdMB <= 0 {
		thresholdMB = DefaultThresholdMB
	}
	res := Result{Decision: Continue, Description: Describe(snap)}
	if snap.State < streamd.StateStreaming {
		return res
	}

	downloaded := snap.DownloadedMB()
	res.Percent = min(downloaded/thresholdMB*100, 100)
	if downloaded >= thresholdMB {
		res.Decision = Ready
		res.Title = snap.Name
	}
	return res
}

// Describe renders the status line shown while buffering.
func Describe(snap streamd.Snapshot) string {
	if snap.State < streamd.StateStreaming {
		if snap.StateStr == "" {
			return "Connecting..."
		}
		return snap.StateStr + "..."
	}
	return fmt.Sprintf("D:%.2fkB/s U:%.2fkB/s S:%d (%d) P:%d (%d)",
		snap.DownloadRate, snap.UploadRate,
		snap.NumSeeds, snap.TotalSeeds,
		snap.NumPeers, snap.TotalPeers)
}

var (
	// ErrNoContact means the daemon never answered during the first-contact wait.
	ErrNoContact = errors.New("stream daemon did not answer")
	// ErrBufferTimeout means the outer buffering bound elapsed.
	ErrBufferTimeout = errors.New("buffering timed out")
	// ErrCancelled means the wait was cancelled by the caller.
	ErrCancelled = errors.New("buffering cancelled")
)

// Gate polls a stream daemon until the buffered content crosses the threshold.
type Gate struct {
	Fetch        poll.FetchFunc[streamd.Snapshot]
	Clock        clock.Clock
	Interval     time.Duration // one time unit
	PerCall      time.Duration // per poll timeout
	FirstContact time.Duration // wait for the first answer before looping
	Timeout      time.Duration // outer bound on buffering; zero waits until cancelled
	ThresholdMB  float64
	OnProgress   func(streamd.Snapshot)
	Log          zerolog.Logger
}

// Wait blocks until Ready, cancellation, or the optional timeout. On success
// the returned Result carries the title to show in the player.
func (g Gate) Wait(ctx context.Context) (Result, error) {
	c := g.Clock
	if c == nil {
		c = clock.Real{}
	}
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}

	if _, ok := poll.Until(ctx, c, interval, g.Fetch, g.PerCall, g.FirstContact); !ok {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		return Result{}, ErrNoContact
	}

	start := c.Now()
	for {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}

		if snap, ok := poll.Until(ctx, c, interval, g.Fetch, g.PerCall, interval); ok {
			if g.OnProgress != nil {
				g.OnProgress(snap)
			}
			res := Evaluate(snap, g.ThresholdMB)
			if res.Decision == Ready {
				g.Log.Info().Str("title", res.Title).Float64("downloaded_mb", snap.DownloadedMB()).Msg("stream ready")
				return res, nil
			}
		}

		if g.Timeout > 0 && c.Now().Sub(start) >= g.Timeout {
			return Result{}, ErrBufferTimeout
		}

		select {
		case <-ctx.Done():
			return Result{}, ErrCancelled
		case <-c.After(interval):
		}
	}
}
