package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a sliding-window rate limit.
type RateLimitConfig struct {
	// Max requests per Window and key.
	Max    int
	Window time.Duration
	// KeyFunc defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Match restricts the limit to some requests; nil limits every request.
	Match func(*http.Request) bool
}

// counter approximates a sliding window from the previous and current fixed
// windows.
type counter struct {
	start time.Time
	prev  int
	curr  int
}

// RateLimiter enforces RateLimitConfig per key.
type RateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	counters map[string]*counter
}

// NewRateLimiter creates a limiter. Call Run to evict idle keys.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &RateLimiter{cfg: cfg, counters: make(map[string]*counter)}
}

// Allow counts a request for key at now. It reports whether the request fits
// the limit, the remaining budget and when the current window ends.
func (l *RateLimiter) Allow(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.cfg.Window
	start := now.Truncate(window)
	c, found := l.counters[key]
	switch {
	case !found:
		c = &counter{start: start}
		l.counters[key] = c
	case start.Sub(c.start) == window:
		c.prev, c.curr, c.start = c.curr, 0, start
	case start.Sub(c.start) > window:
		c.prev, c.curr, c.start = 0, 0, start
	}

	// Weight of the previous window still inside the sliding window.
	weight := 1 - float64(now.Sub(start))/float64(window)
	used := float64(c.prev)*weight + float64(c.curr)
	reset = start.Add(window)
	if used+1 > float64(l.cfg.Max) {
		return false, 0, reset
	}
	c.curr++
	return true, max(0, int(float64(l.cfg.Max)-used-1)), reset
}

// Run evicts keys idle for two windows until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *RateLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every limited route.
func (l *RateLimiter) Middleware() Middleware {
	limit := strconv.Itoa(l.cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.cfg.Match != nil && !l.cfg.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			ok, remaining, reset := l.Allow(l.cfg.KeyFunc(r), now)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := math.Ceil(max(0, reset.Sub(now).Seconds()))
				h.Set("Retry-After", strconv.Itoa(int(wait)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit is NewRateLimiter(cfg).Middleware() without eviction.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewRateLimiter(cfg).Middleware()
}

// PathPrefix matches requests whose path starts with prefix.
func PathPrefix(prefix string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, prefix)
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
