// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	TELEMETRY_HOST="0.0.0.0"
//	TELEMETRY_PORT="8080"
//	TELEMETRY_HEALTH_PORT="9090"
//	TELEMETRY_READ_TIMEOUT="15s"
//	TELEMETRY_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	TELEMETRY_REDIS_URL="redis://localhost:6379"
//	TELEMETRY_REDIS_POOL_SIZE="10"
//	TELEMETRY_EVENT_RETENTION="720h"
//	TELEMETRY_ROLLING_TTL="168h"
//	TELEMETRY_BASELINE_TTL="720h"
//
// Cache settings:
//
//	TELEMETRY_RESPONSE_CACHE_TTL="15m"
//	TELEMETRY_RESPONSE_CACHE_ENTRIES="1000"
//	TELEMETRY_DEDUP_TTL="30s"
//
// Rate limit settings:
//
//	TELEMETRY_RATE_LIMIT_ENABLED="true"
//	TELEMETRY_RATE_LIMIT_INGEST="100"
//	TELEMETRY_RATE_LIMIT_AGGREGATE="300"
//	TELEMETRY_RATE_LIMIT_TIMESERIES="50"
//	TELEMETRY_RATE_LIMIT_COMPARE="50"
//
// Observability settings:
//
//	TELEMETRY_LOG_LEVEL="info"  # debug, info, warn, error
//	TELEMETRY_METRICS_ENABLED="true"
//	TELEMETRY_OTEL_ENABLED="true"
//	TELEMETRY_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Redis: %s\n", cfg.Store.RedisURL)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/store: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
