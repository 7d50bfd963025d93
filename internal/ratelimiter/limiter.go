package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyLimiters holds one token bucket per client fingerprint. Buckets
// refill at the configured per-minute rate; burst equals the per-minute
// allowance so a client can never exceed its minute budget in one spike.
//
// Buckets for idle fingerprints are pruned so the map does not grow
// without bound under fingerprint churn.
type KeyLimiters struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	maxIdle  time.Duration
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a KeyLimiters granting perMinute requests per fingerprint.
func New(perMinute int) *KeyLimiters {
	return &KeyLimiters{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		maxIdle:  10 * time.Minute,
	}
}

// Allow reports whether the client identified by key may proceed now.
// Inbound limiting rejects instead of blocking: the handler returns 429
// and the client retries on its own schedule.
func (kl *KeyLimiters) Allow(key string) bool {
	kl.mu.Lock()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	kl.mu.Unlock()

	return e.lim.Allow()
}

// Run prunes idle buckets every interval until ctx is cancelled.
func (kl *KeyLimiters) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			kl.prune(time.Now())
		}
	}
}

func (kl *KeyLimiters) prune(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.maxIdle {
			delete(kl.limiters, key)
		}
	}
}

// Len returns the number of tracked fingerprints. Used in tests and the
// metrics snapshot.
func (kl *KeyLimiters) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}
