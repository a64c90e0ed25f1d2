package rateLimit

import (
	"context"
	"time"

	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

// Counter counts hits for a key within a fixed window.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimiter struct {
	counter Counter
	logger  observability.Logger
}

func NewRateLimiter(counter Counter, logger observability.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, logger: logger}
}

// Allow reports whether key is within rate hits per period. A counter
// failure lets the request through.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	n, err := rl.counter.IncrWindow(ctx, key, period)
	if err != nil {
		rl.logger.WithError(err).WithField("key", key).Warn("rate limit counter unavailable")
		return true
	}
	if n > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
