package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewHealthChecker(t *testing.T) {
	t.Run("with nil redis", func(t *testing.T) {
		checker := NewHealthChecker(nil)
		if checker == nil {
			t.Fatal("Expected non-nil checker")
		}
		if checker.redis != nil {
			t.Error("Expected nil redis")
		}
	})

	t.Run("with redis", func(t *testing.T) {
		client, _ := newTestRedis(t)
		checker := NewHealthChecker(client)
		if checker.redis == nil {
			t.Error("Expected non-nil redis")
		}
	})
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil)

	req := httptest.NewRequest("GET", "/health/live", nil)
	rr := httptest.NewRecorder()

	checker.Liveness(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("Liveness check returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	contentType := rr.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != StatusHealthy {
		t.Errorf("Expected status %s, got %v", StatusHealthy, response["status"])
	}

	if _, ok := response["timestamp"]; !ok {
		t.Error("Expected timestamp in response")
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("healthy with redis up", func(t *testing.T) {
		client, _ := newTestRedis(t)
		checker := NewHealthChecker(client)

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()

		checker.Readiness(rr, req)

		if status := rr.Code; status != http.StatusOK {
			t.Errorf("Readiness check returned wrong status code: got %v want %v", status, http.StatusOK)
		}

		var response HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, response.Status)
		}
		if dep, ok := response.Dependencies["redis"]; !ok || dep.Status != StatusHealthy {
			t.Errorf("Expected healthy redis dependency, got %+v", response.Dependencies)
		}
	})

	t.Run("unhealthy with redis down", func(t *testing.T) {
		client, mr := newTestRedis(t)
		mr.Close()
		checker := NewHealthChecker(client)

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()

		checker.Readiness(rr, req)

		if status := rr.Code; status != http.StatusServiceUnavailable {
			t.Errorf("Readiness check returned wrong status code: got %v want %v", status, http.StatusServiceUnavailable)
		}

		var response HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, response.Status)
		}
	})
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("no dependencies configured", func(t *testing.T) {
		checker := NewHealthChecker(nil)
		status := checker.Check(context.Background())

		if status.Status != StatusHealthy {
			t.Errorf("Expected %s, got %s", StatusHealthy, status.Status)
		}
		if len(status.Dependencies) != 0 {
			t.Errorf("Expected no dependencies, got %d", len(status.Dependencies))
		}
	})

	t.Run("records redis latency", func(t *testing.T) {
		client, _ := newTestRedis(t)
		checker := NewHealthChecker(client)

		status := checker.Check(context.Background())
		dep := status.Dependencies["redis"]
		if dep.Status != StatusHealthy {
			t.Errorf("Expected healthy redis, got %s: %s", dep.Status, dep.Message)
		}
		if dep.Timestamp.IsZero() {
			t.Error("Expected dependency timestamp to be set")
		}
	})
}

func TestRegisterHealthRoutes(t *testing.T) {
	client, _ := newTestRedis(t)
	checker := NewHealthChecker(client)

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, checker)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s returned %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
