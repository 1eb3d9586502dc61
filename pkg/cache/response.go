// Package cache provides the query-side caches: a response cache for
// rendered analytics payloads and a short-lived deduplication cache
// that collapses identical in-flight queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// Response cache defaults, sized for a handful of range/mode
// combinations per widget deployment.
const (
	DefaultResponseTTL     = 15 * time.Minute
	DefaultResponseEntries = 1000
)

// ResponseCache caches rendered query payloads. Redis is the source
// of truth so every instance sees the same entries; the in-process
// LRU front avoids a round trip for hot keys.
type ResponseCache struct {
	rdb    *redis.Client
	front  *expirable.LRU[string, []byte]
	ttl    time.Duration
	prefix string
}

// NewResponseCache builds a cache with the given capacity and TTL.
func NewResponseCache(rdb *redis.Client, maxEntries int, ttl time.Duration) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultResponseEntries
	}
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	return &ResponseCache{
		rdb:    rdb,
		front:  expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
		ttl:    ttl,
		prefix: "respcache:",
	}
}

// Get returns a cached payload. The front cache is consulted first;
// a Redis hit is promoted into it.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := c.front.Get(key); ok {
		return data, true
	}
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	c.front.Add(key, data)
	return data, true
}

// Set stores a payload in both tiers. A Redis write failure is
// returned but the front cache keeps the entry; serving slightly
// stale data beats recomputing it.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte) error {
	c.front.Add(key, payload)
	if err := c.rdb.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching response: %w", err)
	}
	return nil
}

// Invalidate drops every cached response. Called after ingestion so
// queries never serve aggregates that predate the newest events
// beyond the cache TTL.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	c.front.Purge()
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning response cache: %w", err)
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("invalidating response cache: %w", err)
		}
	}
	return nil
}

// RequestHash derives a stable deduplication key from a method and
// its query parameters.
func RequestHash(method string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(method)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
