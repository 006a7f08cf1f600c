package updates

import (
	"sync"
	"time"
)

// LoginLimiter caps login attempts per client IP over a sliding window.
type LoginLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

// NewLoginLimiter allows limit attempts per window for each IP.
func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go l.sweep()
	return l
}

// prune drops attempts older than the window. Caller holds the lock.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (l *LoginLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	for range ticker.C {
		cutoff := time.Now().Add(-l.window)
		l.mu.Lock()
		for ip, hits := range l.hits {
			if kept := prune(hits, cutoff); len(kept) == 0 {
				delete(l.hits, ip)
			} else {
				l.hits[ip] = kept
			}
		}
		l.mu.Unlock()
	}
}

// Check reports whether the IP still has attempts left. It records nothing;
// call Record on a failed login.
func (l *LoginLimiter) Check(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.hits[ip], time.Now().Add(-l.window))
	l.hits[ip] = kept
	return len(kept) < l.limit
}

// Record registers a failed login attempt for the IP.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	l.hits[ip] = append(l.hits[ip], time.Now())
	l.mu.Unlock()
}

// Allow combines Check and Record in one step for callers that count every
// attempt, successful or not.
func (l *LoginLimiter) Allow(ip string) bool {
	if !l.Check(ip) {
		return false
	}
	l.Record(ip)
	return true
}
