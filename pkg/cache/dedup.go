package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultDedupTTL bounds how long an identical query is answered
// from the dedup cache. Long enough to absorb a dashboard rendering
// the same panel twice, short enough not to mask fresh data.
const DefaultDedupTTL = 30 * time.Second

// DedupCache short-circuits repeated identical read queries. Entries
// live in Redis so the window holds across instances.
type DedupCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewDedupCache builds a dedup cache with the given TTL.
func NewDedupCache(rdb *redis.Client, ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupCache{rdb: rdb, ttl: ttl, prefix: "dedup:"}
}

// Get returns the payload recorded for a request hash, if any.
func (c *DedupCache) Get(ctx context.Context, hash string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+hash).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set records a response payload under a request hash.
func (c *DedupCache) Set(ctx context.Context, hash string, payload []byte) error {
	if err := c.rdb.Set(ctx, c.prefix+hash, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("recording dedup entry: %w", err)
	}
	return nil
}
