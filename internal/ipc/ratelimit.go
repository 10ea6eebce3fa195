package ipc

import (
	"sync"
	"time"
)

// rateLimiter is a small token-bucket used to cap add_task throughput per
// connection (§4.7, default 100/s). No third-party rate-limiting package
// appears anywhere in the example pack, so this stays on the standard
// library rather than importing one speculatively.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	refillPerS float64
	last       time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{
		tokens:     float64(perSecond),
		max:        float64(perSecond),
		refillPerS: float64(perSecond),
		last:       time.Now(),
	}
}

// Allow reports whether one unit of work may proceed now.
func (r *rateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now
	r.tokens += elapsed * r.refillPerS
	if r.tokens > r.max {
		r.tokens = r.max
	}
	if r.tokens < 1 {
		return false
	}
	r.tokens--
	return true
}
