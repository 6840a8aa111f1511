package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/orchestrator"
)

const (
	defaultHealthInterval = 5 * time.Second
	maxBackoff            = 30 * time.Second

	// offlineAfter is how many consecutive failed checks count as an outage.
	offlineAfter = 2
)

// StatusFunc checks the metadata gateway.
type StatusFunc func(ctx context.Context) (map[string]any, error)

// StartHealthPoller watches the gateway in the background after startup. An
// outage and the following recovery are each published once as a Notice.
// Checks back off while the gateway is failing. The returned channel closes
// when ctx ends and the goroutine has exited.
func StartHealthPoller(ctx context.Context, sink orchestrator.Sink, status StatusFunc, interval time.Duration, log zerolog.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		failures := 0
		offline := false
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			checkCtx, cancel := context.WithTimeout(ctx, interval)
			_, err := status(checkCtx)
			cancel()
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				failures++
				log.Debug().Err(err).Int("failures", failures).Msg("gateway health check failed")
				if failures >= offlineAfter && !offline {
					offline = true
					log.Warn().Err(err).Msg("metadata gateway not responding")
					sink.Publish(orchestrator.Notice{Message: "Metadata gateway not responding", Err: err})
				}
			} else {
				if offline {
					log.Info().Msg("metadata gateway recovered")
					sink.Publish(orchestrator.Notice{Message: "Metadata gateway is back"})
				}
				failures = 0
				offline = false
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
	return done
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
