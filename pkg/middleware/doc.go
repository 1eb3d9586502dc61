// Package middleware provides HTTP middleware for request identity
// and per-endpoint rate limiting.
//
// # Overview
//
// This package implements the request processing middleware shared by
// the telemetry API: request ID propagation and Redis-backed rate
// limiting with per-endpoint budgets.
//
// # Middleware Components
//
// EndpointRateLimiter: Redis-backed fixed-window rate limiting
//
//	limiter := middleware.NewEndpointRateLimiter(redisClient, middleware.DefaultLimits(), time.Hour)
//	router.Use(limiter.Handler(classify))
//	// Counts requests per (client IP, endpoint class); rejected
//	// requests get a 429 with Retry-After and X-RateLimit-* headers.
//
// RequestID: Request ID propagation
//
//	router.Use(middleware.RequestID)
//	// Reuses an incoming X-Request-ID or generates a UUID, and
//	// echoes it in the response.
//
// # Rate Limiting
//
// The default hourly budgets per client:
//
//	ingest:     100
//	aggregate:  300
//	timeseries:  50
//	compare:     50
//
// A Redis failure fails open: requests are allowed through while the
// limiter is unavailable.
package middleware
