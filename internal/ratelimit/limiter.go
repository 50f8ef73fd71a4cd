// Package ratelimit wraps golang.org/x/time/rate to cap the global
// rate of listing requests a Worker pool issues, independent of the
// Autoscaler's decisions about how many Workers exist.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps requests per second across every Worker sharing it.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a Limiter allowing ratePerSecond requests/second with
// burst capacity burst. A ratePerSecond of 0 disables limiting.
func New(ratePerSecond, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled, matching
// the listing request's normal suspension points.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// SetLimit changes the allowed rate and burst in place, for the config
// Watcher's hot-reload path. A ratePerSecond of 0 disables limiting.
func (l *Limiter) SetLimit(ratePerSecond, burst int) {
	if ratePerSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		l.limiter.SetBurst(0)
		return
	}
	l.limiter.SetLimit(rate.Limit(ratePerSecond))
	l.limiter.SetBurst(burst)
}
