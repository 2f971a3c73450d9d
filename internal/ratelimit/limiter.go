// Package ratelimit applies a per-identity token bucket to inbound
// channel payloads so one noisy sender cannot starve the dispatcher.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerIdentity keeps one token bucket per identity and evicts idle
// entries as a side effect of use.
type PerIdentity struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a per-identity limiter; returns nil if args are invalid,
// and a nil limiter allows everything.
func New(perSecond float64, burst int, idleTTL time.Duration) *PerIdentity {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &PerIdentity{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*entry),
	}
}

// Allow reports whether one payload from identity may proceed at now.
func (l *PerIdentity) Allow(identity string, now time.Time) bool {
	if l == nil || identity == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[identity]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[identity] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}
