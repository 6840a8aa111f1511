// Package poll repeatedly queries a status source until it answers.
//
// The daemons skiff supervises expose no push channel, only pull endpoints, so
// both startup health checks and the buffering loop are built on Until.
package poll

import (
	"context"
	"time"

	"github.com/five82/skiff/internal/clock"
)

// FetchFunc performs one attempt. Any error means "not available yet".
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Until calls fetch once per interval until it succeeds, overall elapses, or
// ctx is cancelled. Each attempt runs under its own perCall timeout. An
// overall of zero or less disables the overall bound.
//
// Failed attempts are never reported to the caller: a false result only means
// the dependency did not become available in time.
func Until[T any](ctx context.Context, c clock.Clock, interval time.Duration, fetch FetchFunc[T], perCall, overall time.Duration) (T, bool) {
	var zero T
	if c == nil {
		c = clock.Real{}
	}
	start := c.Now()

	for {
		if ctx.Err() != nil {
			return zero, false
		}

		if v, err := attempt(ctx, fetch, perCall); err == nil {
			return v, true
		}

		if overall > 0 && c.Now().Sub(start)+interval >= overall {
			return zero, false
		}

		select {
		case <-ctx.Done():
			return zero, false
		case <-c.After(interval):
		}
	}
}

func attempt[T any](ctx context.Context, fetch FetchFunc[T], perCall time.Duration) (T, error) {
	if perCall <= 0 {
		return fetch(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, perCall)
	defer cancel()
	return fetch(callCtx)
}
