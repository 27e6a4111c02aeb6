package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// RateLimiter throttles login attempts per client address with a sliding
// window, so a stolen password list cannot be ground through the login
// endpoint.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records an attempt for the key and reports whether it is still
// under the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.prune(key, time.Now())
	if len(recent) >= rl.limit {
		rl.attempts[key] = recent
		return false
	}
	rl.attempts[key] = append(recent, time.Now())
	return true
}

// Reset forgets a key. Called after a successful login so a user who
// mistyped their password a few times is not locked out afterwards.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Cleanup drops keys whose attempts have all aged out. Run periodically,
// the per-request path never removes idle keys.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key := range rl.attempts {
		recent := rl.prune(key, now)
		if len(recent) == 0 {
			delete(rl.attempts, key)
		} else {
			rl.attempts[key] = recent
		}
	}
}

// prune returns the attempts for key still inside the window. Caller
// holds the lock.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	entries := rl.attempts[key]
	recent := entries[:0]
	for _, at := range entries {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	return recent
}

// clientKey identifies the caller for rate limiting purposes. Behind the
// reverse proxy the remote address is the proxy itself, so a forwarded
// header wins when present.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// withRateLimit rejects requests over the limit with a 429 in the same
// JSON shape as the rest of the API.
func withRateLimit(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "too many attempts"})
			return
		}
		next(w, r)
	}
}
