package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

var epoch = time.Unix(1_700_000_000, 0)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	assert.Equal(t, 1, rl.cfg.Max)
	assert.Equal(t, time.Minute, rl.cfg.Window)
	assert.NotNil(t, rl.cfg.KeyFunc)
}

func TestRateLimiter_BurstEqualsMax(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 5, Window: time.Minute})

	for want := 4; want >= 0; want-- {
		remaining, _, retryAfter, ok := rl.allow("client", epoch)
		require.True(t, ok)
		assert.Equal(t, want, remaining)
		assert.Zero(t, retryAfter)
	}

	remaining, _, _, ok := rl.allow("client", epoch)
	assert.False(t, ok)
	assert.Zero(t, remaining)
}

func TestRateLimiter_OneTokenPerInterval(t *testing.T) {
	// Four per two seconds: a token every 500ms.
	rl := newRateLimiter(RateLimitConfig{Max: 4, Window: 2 * time.Second})
	for range 4 {
		_, _, _, ok := rl.allow("client", epoch)
		require.True(t, ok)
	}

	_, _, _, ok := rl.allow("client", epoch.Add(499*time.Millisecond))
	assert.False(t, ok)

	_, _, _, ok = rl.allow("client", epoch.Add(500*time.Millisecond))
	assert.True(t, ok)
	_, _, _, ok = rl.allow("client", epoch.Add(500*time.Millisecond))
	assert.False(t, ok, "only one token came back")

	_, _, _, ok = rl.allow("client", epoch.Add(time.Second))
	assert.True(t, ok)
}

func TestRateLimiter_RetryAfterAndReset(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 4, Window: 2 * time.Second})
	for range 4 {
		_, _, _, ok := rl.allow("client", epoch)
		require.True(t, ok)
	}

	// 200ms in, 0.4 of a token has refilled; the rest takes 300ms.
	now := epoch.Add(200 * time.Millisecond)
	_, resetAt, retryAfter, ok := rl.allow("client", now)
	require.False(t, ok)
	assert.InDelta(t, float64(300*time.Millisecond), float64(retryAfter), float64(time.Millisecond))
	// Refilling the remaining 3.6 tokens takes 1.8s.
	assert.InDelta(t, float64(1800*time.Millisecond), float64(resetAt.Sub(now)), float64(time.Millisecond))
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

	_, _, _, ok := rl.allow("a", epoch)
	require.True(t, ok)
	_, _, _, ok = rl.allow("a", epoch)
	require.False(t, ok)

	_, _, _, ok = rl.allow("b", epoch)
	assert.True(t, ok)
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

	rl.allow("idle", epoch)
	rl.allow("recent", epoch.Add(time.Second))
	require.Equal(t, 2, rl.size())

	rl.cleanup(epoch.Add(2*time.Minute - time.Nanosecond))
	assert.Equal(t, 2, rl.size(), "neither bucket idle for two windows yet")

	rl.cleanup(epoch.Add(2 * time.Minute))
	assert.Equal(t, 1, rl.size())

	// The dropped bucket would have been full again anyway.
	_, _, _, ok := rl.allow("idle", epoch.Add(2*time.Minute))
	assert.True(t, ok)
}

func TestRateLimiter_RejectedRequestsKeepBucketAlive(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

	rl.allow("busy", epoch)
	_, _, _, ok := rl.allow("busy", epoch.Add(59*time.Second))
	require.False(t, ok)

	rl.cleanup(epoch.Add(2 * time.Minute))
	assert.Equal(t, 1, rl.size())
}

func TestRateLimit_Middleware(t *testing.T) {
	// One token every 20 minutes.
	handler := RateLimit(RateLimitConfig{Max: 3, Window: time.Hour})(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/create-order", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	start := time.Now()
	for _, want := range []string{"2", "1", "0"} {
		w := send()
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, w.Header().Get("Retry-After"))
	}

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, (20 * time.Minute).Seconds(), retryAfter, 1, "one refill interval")
	assert.JSONEq(t, `{"success":false,"message":"Too many requests. Please try again later."}`, w.Body.String())

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	full := start.Add(time.Hour).Unix()
	assert.InDelta(t, full, reset, 2, "bucket is full again one window after draining")
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-Client") },
	})(okHandler())

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("storefront"))
	assert.Equal(t, http.StatusTooManyRequests, send("storefront"))
	assert.Equal(t, http.StatusOK, send("admin"))
}

func TestDefaultKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:5000", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{
			name:       "forwarded chain uses first hop",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:       "203.0.113.50",
		},
		{
			name:       "single forwarded address",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.9 "},
			want:       "203.0.113.9",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			want:       "198.51.100.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, defaultKeyFunc(req))
		})
	}
}

func TestRateLimitWithCleanup_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := RateLimitWithCleanup(ctx, RateLimitConfig{Max: 1, Window: time.Millisecond})(okHandler())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
