// Package api exposes the telemetry HTTP surface: an ingest endpoint
// for widget event batches and an analytics endpoint that serves
// aggregate, timeseries and comparison views over the stored events.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/starsystemlabs/nebula-telemetry/pkg/cache"
	"github.com/starsystemlabs/nebula-telemetry/pkg/httputil"
	"github.com/starsystemlabs/nebula-telemetry/pkg/middleware"
	"github.com/starsystemlabs/nebula-telemetry/pkg/observability"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
	"github.com/starsystemlabs/nebula-telemetry/pkg/store"
)

// Server represents our analytics API server.
type Server struct {
	store     *store.Client
	respCache *cache.ResponseCache
	dedup     *cache.DedupCache
	wallet    *rolling.Tracker
	load      *rolling.Tracker
	limiter   *middleware.EndpointRateLimiter
	logger    *observability.Logger
	metrics   *observability.Metrics
	router    *mux.Router
	handler   http.Handler

	now func() time.Time
}

// Options wires the server's dependencies. Store is required; the
// caches, limiter and metrics are optional and the matching behavior
// degrades gracefully when absent.
type Options struct {
	Store         *store.Client
	ResponseCache *cache.ResponseCache
	Dedup         *cache.DedupCache
	Limiter       *middleware.EndpointRateLimiter
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	MaxBodyBytes  int64

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		respCache: opts.ResponseCache,
		dedup:     opts.Dedup,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		router:    mux.NewRouter(),
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.store != nil {
		s.wallet = rolling.NewTracker(s.store, rolling.DefaultWindowSize)
		s.load = rolling.NewTracker(s.store, rolling.DefaultWindowSize)
	}
	if s.limiter != nil && s.metrics != nil {
		s.limiter.OnReject = func(class middleware.EndpointClass) {
			s.metrics.RateLimitRejectionsTotal.WithLabelValues(string(class)).Inc()
		}
	}

	s.setupRoutes()
	s.handler = s.buildMiddleware(opts)(s.router)
	return s
}

// setupRoutes configures all the API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/events", s.handleIngest).Methods("POST")
	s.router.HandleFunc("/api/v1/analytics", s.handleAnalytics).Methods("GET")
}

// buildMiddleware assembles the request pipeline. CORS runs first so
// preflight requests never reach the router; the rate limiter runs
// last so rejected requests still carry CORS and request ID headers.
func (s *Server) buildMiddleware(opts Options) func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{
		s.recoverer,
		httputil.CORS,
		middleware.RequestID,
	}
	if s.metrics != nil {
		mws = append(mws, observability.HTTPMetricsMiddleware(s.metrics))
	}
	mws = append(mws, httputil.ContentTypeMiddleware)
	if opts.MaxBodyBytes > 0 {
		mws = append(mws, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	if s.limiter != nil {
		mws = append(mws, s.limiter.Handler(ClassifyRequest))
	}
	return httputil.Chain(mws...)
}

// recoverer turns a handler panic into a 500 instead of tearing down
// the connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer observability.RecoverPanicWithCallback(s.logger, "http handler", func() {
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		})
		next.ServeHTTP(w, r)
	})
}

// ClassifyRequest maps a request to its rate limit budget.
func ClassifyRequest(r *http.Request) middleware.EndpointClass {
	if r.Method == http.MethodPost {
		return middleware.ClassIngest
	}
	switch r.URL.Query().Get("mode") {
	case "timeseries":
		return middleware.ClassTimeseries
	case "compare":
		return middleware.ClassCompare
	}
	return middleware.ClassAggregate
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router, without the middleware
// pipeline. Used by tests that exercise handlers directly.
func (s *Server) Router() *mux.Router {
	return s.router
}
