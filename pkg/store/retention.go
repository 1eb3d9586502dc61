package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TrimBefore removes events older than the horizon from the global
// log and returns how many were dropped.
func (c *Client) TrimBefore(ctx context.Context, horizon time.Time) (int64, error) {
	n, err := c.rdb.ZRemRangeByScore(ctx, keyEvents, "-inf",
		fmt.Sprintf("%d", horizon.UnixMilli())).Result()
	if err != nil {
		return 0, fmt.Errorf("trimming event log: %w", err)
	}
	return n, nil
}

// CleanupDayShards deletes day shards whose date falls before the
// horizon. Shards carry their own TTL, so this is a safety net for
// keys whose expiry was lost.
func (c *Client) CleanupDayShards(ctx context.Context, horizon time.Time) (int, error) {
	deleted := 0
	iter := c.rdb.Scan(ctx, 0, keyDayShard+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		day, err := time.Parse("2006-01-02", strings.TrimPrefix(key, keyDayShard))
		if err != nil {
			continue
		}
		if day.Before(horizon.UTC().Truncate(24 * time.Hour)) {
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				return deleted, fmt.Errorf("deleting shard %s: %w", key, err)
			}
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning day shards: %w", err)
	}
	return deleted, nil
}
