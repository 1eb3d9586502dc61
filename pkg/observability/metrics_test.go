package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		// Verify HTTP metrics are initialized
		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.HTTPRequestSize == nil {
			t.Error("HTTPRequestSize is nil")
		}
		if metrics.HTTPResponseSize == nil {
			t.Error("HTTPResponseSize is nil")
		}

		// Verify ingest metrics are initialized
		if metrics.EventsIngestedTotal == nil {
			t.Error("EventsIngestedTotal is nil")
		}
		if metrics.EventsDroppedTotal == nil {
			t.Error("EventsDroppedTotal is nil")
		}
		if metrics.IngestBatchSize == nil {
			t.Error("IngestBatchSize is nil")
		}

		// Verify query metrics are initialized
		if metrics.QueryTotal == nil {
			t.Error("QueryTotal is nil")
		}
		if metrics.QueryDuration == nil {
			t.Error("QueryDuration is nil")
		}

		// Verify cache metrics are initialized
		if metrics.CacheHitsTotal == nil {
			t.Error("CacheHitsTotal is nil")
		}
		if metrics.CacheMissesTotal == nil {
			t.Error("CacheMissesTotal is nil")
		}

		// Verify rate limit and Redis metrics are initialized
		if metrics.RateLimitRejectionsTotal == nil {
			t.Error("RateLimitRejectionsTotal is nil")
		}
		if metrics.RedisCommandsTotal == nil {
			t.Error("RedisCommandsTotal is nil")
		}
		if metrics.RedisCommandDuration == nil {
			t.Error("RedisCommandDuration is nil")
		}

		// Verify gauges are initialized
		if metrics.EventsStoredTotal == nil {
			t.Error("EventsStoredTotal is nil")
		}
		if metrics.InterpolationRate == nil {
			t.Error("InterpolationRate is nil")
		}
	})

	t.Run("double registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.EventsIngestedTotal.WithLabelValues("load").Add(3)
	metrics.EventsIngestedTotal.WithLabelValues("wallet_connect").Inc()
	metrics.EventsDroppedTotal.WithLabelValues("overflow").Inc()
	metrics.QueryTotal.WithLabelValues("timeseries", "7d", "200").Inc()
	metrics.CacheHitsTotal.WithLabelValues("response").Inc()
	metrics.RateLimitRejectionsTotal.WithLabelValues("ingest").Inc()

	if got := testutil.ToFloat64(metrics.EventsIngestedTotal.WithLabelValues("load")); got != 3 {
		t.Errorf("EventsIngestedTotal[load] = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.EventsDroppedTotal.WithLabelValues("overflow")); got != 1 {
		t.Errorf("EventsDroppedTotal[overflow] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.QueryTotal.WithLabelValues("timeseries", "7d", "200")); got != 1 {
		t.Errorf("QueryTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RateLimitRejectionsTotal.WithLabelValues("ingest")); got != 1 {
		t.Errorf("RateLimitRejectionsTotal[ingest] = %v, want 1", got)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.EventsStoredTotal.Set(1500)
	metrics.InterpolationRate.Set(0.25)

	if got := testutil.ToFloat64(metrics.EventsStoredTotal); got != 1500 {
		t.Errorf("EventsStoredTotal = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(metrics.InterpolationRate); got != 0.25 {
		t.Errorf("InterpolationRate = %v, want 0.25", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest("POST", "/api/v1/events", strings.NewReader(`{"metrics":[]}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("handler status = %d, want %d", rr.Code, http.StatusCreated)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/events", "201"))
	if count != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", count)
	}
}

func TestHTTPMetricsMiddleware_DefaultStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/api/v1/analytics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/analytics", "200"))
	if count != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", count)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.EventsIngestedTotal.WithLabelValues("load").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics returned %d", rr.Code)
	}

	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "telemetry_events_ingested_total") {
		t.Error("Expected telemetry_events_ingested_total in /metrics output")
	}
}
