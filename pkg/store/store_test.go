package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
)

func setupTestStore(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(rdb, DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestAppendAndReadEvents(t *testing.T) {
	c, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1735689600000).UTC()

	stored, err := c.AppendEvents(ctx, []event.Event{
		{Kind: event.KindLoad, Timestamp: 1735689500000, Success: event.Bool(true), LoadTime: 320},
		{Kind: event.KindRender, Timestamp: 1735689550000, RenderTime: 140},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	events, err := c.EventsBetween(ctx, 1735689000000, 1735690000000)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.KindLoad, events[0].Kind)
	assert.Equal(t, now.UnixMilli(), events[0].StoredAt)
	assert.Equal(t, event.KindRender, events[1].Kind)

	// Out-of-range read is empty.
	events, err = c.EventsBetween(ctx, 0, 1735689000000)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendStampsMissingTimestamp(t *testing.T) {
	c, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1735689600000).UTC()

	_, err := c.AppendEvents(ctx, []event.Event{{Kind: event.KindCustom, EventName: "widget_init"}}, now)
	require.NoError(t, err)

	events, err := c.EventsBetween(ctx, now.UnixMilli(), now.UnixMilli())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now.UnixMilli(), events[0].Timestamp)
}

func TestAppendWritesDayShardWithTTL(t *testing.T) {
	c, mr := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

	_, err := c.AppendEvents(ctx, []event.Event{{Kind: event.KindLoad, Timestamp: now.UnixMilli()}}, now)
	require.NoError(t, err)

	shard := "events:day:2025-01-02"
	assert.True(t, mr.Exists(shard))
	ttl := mr.TTL(shard)
	assert.Equal(t, 30*24*time.Hour, ttl)
}

func TestRollingWindowRoundTrip(t *testing.T) {
	c, mr := setupTestStore(t)
	ctx := context.Background()

	s, err := c.LoadWindow(ctx, rolling.FamilyWallet)
	require.NoError(t, err)
	assert.Nil(t, s)

	in := rolling.NewState(100)
	in.Append(rolling.Outcome{Success: true, Timestamp: 1}, rolling.Outcome{Success: false, Category: "user_rejected", Timestamp: 2})
	require.NoError(t, c.SaveWindow(ctx, rolling.FamilyWallet, in))

	out, err := c.LoadWindow(ctx, rolling.FamilyWallet)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Events, out.Events)

	ttl := mr.TTL("rolling:" + rolling.FamilyWallet)
	assert.Equal(t, 7*24*time.Hour, ttl)
}

func TestLoadWindowDropsCorruptState(t *testing.T) {
	c, mr := setupTestStore(t)
	ctx := context.Background()

	mr.Set("rolling:"+rolling.FamilyLoad, "{broken")
	s, err := c.LoadWindow(ctx, rolling.FamilyLoad)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, mr.Exists("rolling:"+rolling.FamilyLoad))
}

func TestBaselinesRoundTrip(t *testing.T) {
	c, _ := setupTestStore(t)
	ctx := context.Background()

	h, err := c.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Nil(t, h.WalletRate)
	assert.Nil(t, h.LoadRate)
	assert.Nil(t, h.Render)

	require.NoError(t, c.SaveRateBaseline(ctx, rolling.FamilyWallet, &stats.KnownRate{SuccessRate: 91, Timestamp: 10}))
	require.NoError(t, c.SaveRateBaseline(ctx, rolling.FamilyLoad, &stats.KnownRate{SuccessRate: 88, Timestamp: 11}))
	require.NoError(t, c.SaveRenderBaseline(ctx, &stats.RenderBaseline{Avg: 120, P50: 100, P95: 300}))

	h, err = c.LoadHistory(ctx)
	require.NoError(t, err)
	require.NotNil(t, h.WalletRate)
	assert.InDelta(t, 91.0, h.WalletRate.SuccessRate, 0.001)
	require.NotNil(t, h.LoadRate)
	assert.InDelta(t, 88.0, h.LoadRate.SuccessRate, 0.001)
	require.NotNil(t, h.Render)
	assert.InDelta(t, 100.0, h.Render.P50, 0.001)
}

func TestTrimBefore(t *testing.T) {
	c, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(2_000_000).UTC()

	_, err := c.AppendEvents(ctx, []event.Event{
		{Kind: event.KindLoad, Timestamp: 500_000},
		{Kind: event.KindLoad, Timestamp: 900_000},
		{Kind: event.KindLoad, Timestamp: 1_500_000},
	}, now)
	require.NoError(t, err)

	removed, err := c.TrimBefore(ctx, time.UnixMilli(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := c.EventCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCleanupDayShards(t *testing.T) {
	c, mr := setupTestStore(t)
	ctx := context.Background()

	mr.Set("events:day:2024-11-01", "stale")
	mr.Set("events:day:2025-01-02", "fresh")
	mr.Set("events:day:not-a-date", "junk")

	deleted, err := c.CleanupDayShards(ctx, time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, mr.Exists("events:day:2024-11-01"))
	assert.True(t, mr.Exists("events:day:2025-01-02"))
	assert.True(t, mr.Exists("events:day:not-a-date"))
}
