// Command telemetryd serves the widget telemetry API: event ingest
// plus the aggregate, timeseries and comparison analytics views.
// Health probes and Prometheus metrics run on a separate port.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/starsystemlabs/nebula-telemetry/pkg/api"
	"github.com/starsystemlabs/nebula-telemetry/pkg/cache"
	"github.com/starsystemlabs/nebula-telemetry/pkg/config"
	"github.com/starsystemlabs/nebula-telemetry/pkg/middleware"
	"github.com/starsystemlabs/nebula-telemetry/pkg/observability"
	"github.com/starsystemlabs/nebula-telemetry/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "telemetryd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"port":        cfg.Server.Port,
		"health_port": cfg.Server.HealthPort,
	}).Info("starting telemetryd")

	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer st.Close()

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		st.Redis().AddHook(observability.NewRedisHook(metrics))
	}

	var limiter *middleware.EndpointRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewEndpointRateLimiter(st.Redis(), cfg.RateLimit.Limits, cfg.RateLimit.Window)
	}

	server := api.NewServer(api.Options{
		Store:         st,
		ResponseCache: cache.NewResponseCache(st.Redis(), cfg.Cache.ResponseEntries, cfg.Cache.ResponseTTL),
		Dedup:         cache.NewDedupCache(st.Redis(), cfg.Cache.DedupTTL),
		Limiter:       limiter,
		Logger:        logger,
		Metrics:       metrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "telemetry-api")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, st, registry, logger)

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("telemetry API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
		}
	}()

	manager := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if otelProviders != nil {
		manager.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		return st.Close()
	})

	return manager.WaitForShutdown()
}

// startHealthServer serves probes and metrics on the health port so
// they stay reachable when the API port is saturated.
func startHealthServer(cfg *config.Config, st *store.Client, registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(st.Redis()))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
	go func() {
		logger.WithField("addr", srv.Addr).Info("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	return srv
}
