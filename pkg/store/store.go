// Package store persists telemetry in Redis: the event log as sorted
// sets scored by event timestamp, rolling outcome windows, and the
// last-known metric baselines used when a query period is empty.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
)

// Redis key layout. Every event lands in the global log and in a
// per-day shard; the shards make retention cleanup a key delete
// instead of a range scan.
const (
	keyEvents        = "events:all"
	keyDayShard      = "events:day:" // + YYYY-MM-DD
	keyRolling       = "rolling:"    // + family
	keyWalletRate    = "last_known_wallet_rate"
	keyLoadRate      = "last_known_widget_load_rate"
	keyRenderProfile = "last_known_render_times"
)

// Config holds Redis connection and retention settings.
type Config struct {
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	EventRetention time.Duration // events:all and day shards
	RollingTTL     time.Duration // rolling windows
	BaselineTTL    time.Duration // last-known baselines
}

// DefaultConfig returns production retention settings: a month of
// events, a week of rolling window state, a month of baselines.
func DefaultConfig() Config {
	return Config{
		RedisURL:       "redis://localhost:6379",
		RedisDB:        -1,
		EventRetention: 30 * 24 * time.Hour,
		RollingTTL:     7 * 24 * time.Hour,
		BaselineTTL:    30 * 24 * time.Hour,
	}
}

// Client wraps the Redis connection used by the analytics service.
type Client struct {
	rdb *redis.Client
	cfg Config
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, cfg: cfg}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests and by
// callers that manage the connection themselves.
func NewWithClient(rdb *redis.Client, cfg Config) *Client {
	return &Client{rdb: rdb, cfg: cfg}
}

// AppendEvents stores a batch in the event log, stamping each record
// with the ingestion time. Events missing a timestamp get the
// ingestion time as their event time too. Returns how many records
// were stored.
func (c *Client) AppendEvents(ctx context.Context, events []event.Event, now time.Time) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	nowMS := now.UnixMilli()
	dayKey := keyDayShard + now.UTC().Format("2006-01-02")

	pipe := c.rdb.Pipeline()
	stored := 0
	for _, e := range events {
		if e.Timestamp == 0 {
			e.Timestamp = nowMS
		}
		e.StoredAt = nowMS
		data, err := event.Encode(e)
		if err != nil {
			continue
		}
		member := &redis.Z{Score: float64(e.Timestamp), Member: string(data)}
		pipe.ZAdd(ctx, keyEvents, member)
		pipe.ZAdd(ctx, dayKey, member)
		stored++
	}
	pipe.Expire(ctx, dayKey, c.cfg.EventRetention)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("appending events: %w", err)
	}
	return stored, nil
}

// EventsBetween reads the events whose timestamps fall in [from, to],
// in milliseconds, oldest first. Records that no longer parse are
// skipped.
func (c *Client) EventsBetween(ctx context.Context, from, to int64) ([]event.Event, error) {
	raw, err := c.rdb.ZRangeByScore(ctx, keyEvents, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from),
		Max: fmt.Sprintf("%d", to),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return event.DecodeAll(raw), nil
}

// EventCount reports the size of the event log.
func (c *Client) EventCount(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, keyEvents).Result()
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis exposes the underlying connection for components that share
// it, like the response cache and the rate limiter.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
