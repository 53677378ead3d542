// Package ratelimit gates outbound remote lookups (address label
// explorer calls) behind a per-chain token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
)

// Limiter holds one token bucket per chain, created lazily on first use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[model.Chain]*rate.Limiter
	rps      float64
	burst    int
}

// New creates a Limiter issuing rps tokens/sec per chain with a burst
// equal to rps truncated to an integer (minimum 1).
func New(rps float64) *Limiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[model.Chain]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) forChain(chain model.Chain) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[chain]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[chain] = lim
	}
	return lim
}

// Wait blocks until a token is available for chain or ctx is done.
// Records a metric when it actually had to wait (Reserve().Delay() > 0).
func (l *Limiter) Wait(ctx context.Context, chain model.Chain) error {
	lim := l.forChain(chain)
	reservation := lim.Reserve()
	if !reservation.OK() {
		reservation.Cancel()
		return context.DeadlineExceeded
	}
	if delay := reservation.Delay(); delay > 0 {
		metrics.LabelRateLimitWaits.WithLabelValues(string(chain)).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
