package ratelimit

import (
	"sync"
	"time"
)

// Limiter - sliding-window admission control keyed by connection identity.
// Each connection owns an independent list of admitted-request timestamps;
// requests are denied once the list holds the ceiling within the window.
type Limiter struct {
	window  time.Duration
	ceiling int

	mu   sync.Mutex
	hits map[string][]time.Time
}

func New(window time.Duration, ceiling int) *Limiter {
	return &Limiter{
		window:  window,
		ceiling: ceiling,
		hits:    make(map[string][]time.Time),
	}
}

// Admit - records and allows the request unless the connection already spent
// its budget within the trailing window.
func (that *Limiter) Admit(connID string, now time.Time) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	cutoff := now.Add(-that.window)

	recent := that.hits[connID][:0]
	for _, hit := range that.hits[connID] {
		if hit.After(cutoff) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= that.ceiling {
		that.hits[connID] = recent
		return false
	}

	that.hits[connID] = append(recent, now)

	return true
}

// Forget - drops all state for a connection; called on disconnect.
func (that *Limiter) Forget(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.hits, connID)
}
