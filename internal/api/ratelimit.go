package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter caps requests per client IP with a fixed one-minute window.
// Counts are soft; a slight race on the increment is acceptable here.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limit   int
}

type rateWindow struct {
	count int
	start time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{windows: make(map[string]*rateWindow), limit: perMinute}
	go rl.prune()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) > time.Minute {
		rl.windows[key] = &rateWindow{count: 1, start: now}
		return true
	}
	w.count++
	return w.count <= rl.limit
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.allow(host) {
			slog.Warn("rate limit exceeded", "client", host)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// prune drops stale windows so the map does not grow without bound.
func (rl *rateLimiter) prune() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, w := range rl.windows {
			if now.Sub(w.start) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
