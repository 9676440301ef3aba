package transport

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter enforces a token-bucket rate limit per remote host. Idle hosts
// are evicted so the map stays bounded under address churn.
type hostLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	limiters map[string]*hostEntry
	lastScan time.Time
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleEviction = 10 * time.Minute

func newHostLimiter(rps float64, burst int) *hostLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &hostLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*hostEntry),
		lastScan: time.Now(),
	}
}

// Allow reports whether a request from remoteAddr fits the host's budget.
func (l *hostLimiter) Allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[host] = entry
	}
	entry.lastSeen = now

	if now.Sub(l.lastScan) > limiterIdleEviction {
		for h, e := range l.limiters {
			if now.Sub(e.lastSeen) > limiterIdleEviction {
				delete(l.limiters, h)
			}
		}
		l.lastScan = now
	}

	return entry.limiter.Allow()
}
