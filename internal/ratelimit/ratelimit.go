package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(key string) bool
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// PerKey keeps one token bucket per key (a player id).
type PerKey struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewPerMinute allows n requests per minute per key with a burst of n.
func NewPerMinute(n int) *PerKey {
	if n <= 0 {
		n = 1
	}
	return &PerKey{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(n)),
		burst:   n,
		now:     time.Now,
	}
}

func (p *PerKey) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(p.limit, p.burst)}
		p.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Prune drops buckets not used for idle. Returns how many were removed.
func (p *PerKey) Prune(idle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-idle)
	removed := 0
	for k, b := range p.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(p.buckets, k)
			removed++
		}
	}
	return removed
}
