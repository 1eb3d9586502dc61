package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/starsystemlabs/nebula-telemetry/pkg/cache"
	"github.com/starsystemlabs/nebula-telemetry/pkg/middleware"
	"github.com/starsystemlabs/nebula-telemetry/pkg/observability"
	"github.com/starsystemlabs/nebula-telemetry/pkg/store"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Redis storage and retention configuration
	Store store.Config

	// Response cache and request dedup configuration
	Cache CacheConfig

	// Per-endpoint rate limits
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Request body cap for the ingest endpoint
	MaxBodyBytes int64
}

// CacheConfig holds response cache and dedup settings
type CacheConfig struct {
	ResponseTTL     time.Duration
	ResponseEntries int
	DedupTTL        time.Duration
}

// RateLimitConfig holds the hourly per-client request budgets
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Limits  middleware.Limits
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Cache:         loadCacheConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TELEMETRY_HOST", "0.0.0.0"),
		Port:            getEnv("TELEMETRY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TELEMETRY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TELEMETRY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TELEMETRY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TELEMETRY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TELEMETRY_HEALTH_PORT", "9090"),
		MaxBodyBytes:    getEnvInt64("TELEMETRY_MAX_BODY_BYTES", 1<<20),
	}
}

// loadStoreConfig loads Redis configuration from environment
func loadStoreConfig() store.Config {
	cfg := store.DefaultConfig()

	if redisURL := getEnv("TELEMETRY_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("TELEMETRY_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("TELEMETRY_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("TELEMETRY_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("TELEMETRY_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	if retention := getEnvDuration("TELEMETRY_EVENT_RETENTION", 0); retention > 0 {
		cfg.EventRetention = retention
	}
	if rollingTTL := getEnvDuration("TELEMETRY_ROLLING_TTL", 0); rollingTTL > 0 {
		cfg.RollingTTL = rollingTTL
	}
	if baselineTTL := getEnvDuration("TELEMETRY_BASELINE_TTL", 0); baselineTTL > 0 {
		cfg.BaselineTTL = baselineTTL
	}

	return cfg
}

// loadCacheConfig loads response cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		ResponseTTL:     getEnvDuration("TELEMETRY_RESPONSE_CACHE_TTL", cache.DefaultResponseTTL),
		ResponseEntries: getEnvInt("TELEMETRY_RESPONSE_CACHE_ENTRIES", cache.DefaultResponseEntries),
		DedupTTL:        getEnvDuration("TELEMETRY_DEDUP_TTL", cache.DefaultDedupTTL),
	}
}

// loadRateLimitConfig loads rate limit budgets from environment
func loadRateLimitConfig() RateLimitConfig {
	limits := middleware.DefaultLimits()
	if v := getEnvInt("TELEMETRY_RATE_LIMIT_INGEST", 0); v > 0 {
		limits[middleware.ClassIngest] = v
	}
	if v := getEnvInt("TELEMETRY_RATE_LIMIT_AGGREGATE", 0); v > 0 {
		limits[middleware.ClassAggregate] = v
	}
	if v := getEnvInt("TELEMETRY_RATE_LIMIT_TIMESERIES", 0); v > 0 {
		limits[middleware.ClassTimeseries] = v
	}
	if v := getEnvInt("TELEMETRY_RATE_LIMIT_COMPARE", 0); v > 0 {
		limits[middleware.ClassCompare] = v
	}
	return RateLimitConfig{
		Enabled: getEnvBool("TELEMETRY_RATE_LIMIT_ENABLED", true),
		Window:  getEnvDuration("TELEMETRY_RATE_LIMIT_WINDOW", middleware.DefaultRateLimitWindow),
		Limits:  limits,
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("TELEMETRY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TELEMETRY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TELEMETRY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TELEMETRY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TELEMETRY_OTEL_SERVICE_NAME", "nebula-telemetry"),
		OTelServiceVersion: getEnv("TELEMETRY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TELEMETRY_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Store.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.RateLimit.Enabled {
		for class, limit := range c.RateLimit.Limits {
			if limit <= 0 {
				return fmt.Errorf("rate limit for %s must be positive", class)
			}
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
