package analytics

import (
	"sync"
	"time"
)

// keyWindow is one key's budget in the current fixed window.
type keyWindow struct {
	start time.Time
	count int
}

// rateLimiter caps requests per key with a fixed window: the count resets
// when the window rolls over.
type rateLimiter struct {
	mu   sync.Mutex
	keys map[string]*keyWindow
	max  int
	per  time.Duration
}

func newRateLimiter(max int, per time.Duration) *rateLimiter {
	rl := &rateLimiter{
		keys: make(map[string]*keyWindow),
		max:  max,
		per:  per,
	}
	go rl.sweep()
	return rl
}

// allow records a request for key and reports whether it fits the budget.
func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.keys[key]
	if w == nil || now.Sub(w.start) >= rl.per {
		rl.keys[key] = &keyWindow{start: now, count: 1}
		return true
	}
	if w.count >= rl.max {
		return false
	}
	w.count++
	return true
}

// sweep drops keys whose window has expired, keeping the map bounded.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(rl.per)
	for range ticker.C {
		cutoff := time.Now().Add(-rl.per)
		rl.mu.Lock()
		for key, w := range rl.keys {
			if w.start.Before(cutoff) {
				delete(rl.keys, key)
			}
		}
		rl.mu.Unlock()
	}
}
