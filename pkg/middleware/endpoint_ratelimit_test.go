package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limits Limits) (*EndpointRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewEndpointRateLimiter(rdb, limits, time.Hour), mr
}

func TestAllowWithinBudget(t *testing.T) {
	rl, _ := setupLimiter(t, Limits{ClassTimeseries: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "10.0.0.1", ClassTimeseries)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := rl.Allow(ctx, "10.0.0.1", ClassTimeseries)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestBudgetsAreIndependent(t *testing.T) {
	rl, _ := setupLimiter(t, Limits{ClassIngest: 1, ClassCompare: 1})
	ctx := context.Background()

	d, err := rl.Allow(ctx, "10.0.0.1", ClassIngest)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Exhausting ingest does not touch compare, and other clients
	// keep their own counters.
	d, err = rl.Allow(ctx, "10.0.0.1", ClassIngest)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = rl.Allow(ctx, "10.0.0.1", ClassCompare)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = rl.Allow(ctx, "10.0.0.2", ClassIngest)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWindowResets(t *testing.T) {
	rl, mr := setupLimiter(t, Limits{ClassAggregate: 1})
	ctx := context.Background()

	d, err := rl.Allow(ctx, "10.0.0.1", ClassAggregate)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = rl.Allow(ctx, "10.0.0.1", ClassAggregate)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	mr.FastForward(time.Hour + time.Second)

	d, err = rl.Allow(ctx, "10.0.0.1", ClassAggregate)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestHandlerSetsHeadersAndRejects(t *testing.T) {
	rl, _ := setupLimiter(t, Limits{ClassIngest: 1})
	handler := rl.Handler(func(r *http.Request) EndpointClass { return ClassIngest })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.RemoteAddr = "10.0.0.1:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestHandlerFailsOpenOnRedisError(t *testing.T) {
	rl, mr := setupLimiter(t, Limits{ClassIngest: 1})
	mr.Close()

	handler := rl.Handler(func(r *http.Request) EndpointClass { return ClassIngest })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:1234"
	assert.Equal(t, "192.0.2.9", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.4")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
