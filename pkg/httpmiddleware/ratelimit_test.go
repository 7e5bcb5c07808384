package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.168.1.1:12345", "/"))

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:9999", "/"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:9999", "/"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var msg string
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		var err error
		msg, err = d.Str()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	for _, tc := range []struct {
		addr string
		want int
	}{
		{addr: "10.0.0.1:1234", want: http.StatusOK},
		{addr: "10.0.0.2:1234", want: http.StatusOK},
		{addr: "10.0.0.1:5678", want: http.StatusTooManyRequests},
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(tc.addr, "/"))
		assert.Equal(t, tc.want, w.Code, tc.addr)
	}
}

func TestRateLimit_Match(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Match:  PathPrefix("/api/promotions/"),
	})(okHandler())

	for range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:1", "/api/pincodes/check"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"), "unmatched routes carry no headers")
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:1", "/api/promotions/validate"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:1", "/api/promotions/validate"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("api_key") },
	})(okHandler())

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("key-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("key-a"))
	assert.Equal(t, http.StatusOK, send("key-b"))
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		ok, _, _ := l.Allow("k", base)
		require.True(t, ok)
	}
	ok, _, reset := l.Allow("k", base.Add(30*time.Second))
	assert.False(t, ok)
	assert.Equal(t, base.Add(time.Minute), reset)

	// A quarter into the next window three quarters of the previous window
	// still count: 4*0.75 = 3, so one request fits.
	next := base.Add(75 * time.Second)
	ok, _, _ = l.Allow("k", next)
	assert.True(t, ok)
	ok, _, _ = l.Allow("k", next)
	assert.False(t, ok)

	// Two windows later everything has expired.
	ok, remaining, _ := l.Allow("k", base.Add(3*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestRateLimiter_Evict(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Allow("a", now)
	l.Allow("b", now.Add(2*time.Minute))

	l.evict(now.Add(2*time.Minute + time.Second))

	assert.NotContains(t, l.counters, "a")
	assert.Contains(t, l.counters, "b")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, remote: "1.1.1.1:1", want: "203.0.113.50"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "1.1.1.1:1", want: "198.51.100.7"},
		{name: "remote addr", remote: "192.0.2.1:4321", want: "192.0.2.1"},
		{name: "bare remote", remote: "pipe", want: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestFrom(tt.remote, "/")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
