// Package pacing spaces out calls to rate-limited third-party APIs.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Limiter is a token bucket that releases one call per interval.
type Limiter struct {
	limiter *rate.Limiter
}

var _ ports.Pacer = (*Limiter)(nil)

// NewLimiter allows one call every interval with no burst beyond a single token.
// A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// None never blocks.
type None struct{}

// Wait returns immediately unless ctx is already done.
func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}
