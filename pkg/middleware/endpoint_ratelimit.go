package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// EndpointClass buckets requests for rate limiting. Write traffic,
// cheap reads and the two expensive read modes each get their own
// hourly budget.
type EndpointClass string

const (
	ClassIngest     EndpointClass = "ingest"
	ClassAggregate  EndpointClass = "aggregate"
	ClassTimeseries EndpointClass = "timeseries"
	ClassCompare    EndpointClass = "compare"
)

// Limits maps endpoint classes to requests per window.
type Limits map[EndpointClass]int

// DefaultLimits are the hourly per-client budgets.
func DefaultLimits() Limits {
	return Limits{
		ClassIngest:     100,
		ClassAggregate:  300,
		ClassTimeseries: 50,
		ClassCompare:    50,
	}
}

// DefaultRateLimitWindow is the fixed counting window.
const DefaultRateLimitWindow = time.Hour

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// EndpointRateLimiter counts requests per client and endpoint class
// in Redis, so the budgets hold across service instances. A Redis
// failure fails open: dropping telemetry over a broken limiter is a
// worse outcome than briefly losing the ceiling.
type EndpointRateLimiter struct {
	rdb    *redis.Client
	limits Limits
	window time.Duration
	prefix string

	// OnReject, when set, observes every rejected request by class.
	OnReject func(class EndpointClass)
}

// NewEndpointRateLimiter builds a limiter with the given budgets.
func NewEndpointRateLimiter(rdb *redis.Client, limits Limits, window time.Duration) *EndpointRateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &EndpointRateLimiter{
		rdb:    rdb,
		limits: limits,
		window: window,
		prefix: "ratelimit",
	}
}

// Allow counts one request for a client against a class budget.
func (rl *EndpointRateLimiter) Allow(ctx context.Context, client string, class EndpointClass) (Decision, error) {
	limit, ok := rl.limits[class]
	if !ok {
		limit = rl.limits[ClassAggregate]
	}
	key := fmt.Sprintf("%s:%s:%s", rl.prefix, client, class)

	pipe := rl.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("rate limit check: %w", err)
	}

	count := incr.Val()
	d := Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: limit - int(count),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		if ttl, err := rl.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			d.RetryAfter = ttl
		} else {
			d.RetryAfter = rl.window
		}
	}
	return d, nil
}

// Handler wraps an HTTP handler with per-class rate limiting. The
// classifier maps each request to its budget class.
func (rl *EndpointRateLimiter) Handler(classify func(r *http.Request) EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := classify(r)
			d, err := rl.Allow(r.Context(), ClientIP(r), class)
			if err != nil {
				// Fail open on backend errors.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))

			if !d.Allowed {
				if rl.OnReject != nil {
					rl.OnReject(class)
				}
				retryAfter := int(d.RetryAfter.Seconds())
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","limit":%q,"retry_after":%d}`, class, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the caller address, honoring the proxy headers
// set by the edge.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
