package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
)

// LoadWindow implements rolling.Store. A missing key means no window
// exists yet and returns nil; corrupt state is dropped rather than
// poisoning every future aggregation.
func (c *Client) LoadWindow(ctx context.Context, family string) (*rolling.State, error) {
	key := keyRolling + family
	data, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("loading %s window: %w", family, err)
	}
	var s rolling.State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		c.rdb.Del(ctx, key)
		return nil, nil
	}
	return &s, nil
}

// SaveWindow implements rolling.Store.
func (c *Client) SaveWindow(ctx context.Context, family string, s *rolling.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling %s window: %w", family, err)
	}
	if err := c.rdb.Set(ctx, keyRolling+family, data, c.cfg.RollingTTL).Err(); err != nil {
		return fmt.Errorf("saving %s window: %w", family, err)
	}
	return nil
}

func rateBaselineKey(family string) string {
	if family == rolling.FamilyLoad {
		return keyLoadRate
	}
	return keyWalletRate
}

// RateBaseline returns the persisted success rate for a family, or
// nil when none has been stored.
func (c *Client) RateBaseline(ctx context.Context, family string) (*stats.KnownRate, error) {
	data, err := c.rdb.Get(ctx, rateBaselineKey(family)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("loading %s rate baseline: %w", family, err)
	}
	var r stats.KnownRate
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, nil
	}
	return &r, nil
}

// SaveRateBaseline persists a family success rate baseline.
func (c *Client) SaveRateBaseline(ctx context.Context, family string, r *stats.KnownRate) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling %s rate baseline: %w", family, err)
	}
	if err := c.rdb.Set(ctx, rateBaselineKey(family), data, c.cfg.BaselineTTL).Err(); err != nil {
		return fmt.Errorf("saving %s rate baseline: %w", family, err)
	}
	return nil
}

// RenderBaseline returns the persisted render latency profile, or
// nil when none has been stored.
func (c *Client) RenderBaseline(ctx context.Context) (*stats.RenderBaseline, error) {
	data, err := c.rdb.Get(ctx, keyRenderProfile).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("loading render baseline: %w", err)
	}
	var b stats.RenderBaseline
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, nil
	}
	return &b, nil
}

// SaveRenderBaseline persists the render latency profile.
func (c *Client) SaveRenderBaseline(ctx context.Context, b *stats.RenderBaseline) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling render baseline: %w", err)
	}
	if err := c.rdb.Set(ctx, keyRenderProfile, data, c.cfg.BaselineTTL).Err(); err != nil {
		return fmt.Errorf("saving render baseline: %w", err)
	}
	return nil
}

// LoadHistory gathers all baselines for an aggregation pass. A
// missing baseline is simply nil in the result.
func (c *Client) LoadHistory(ctx context.Context) (stats.History, error) {
	var h stats.History
	var err error
	if h.WalletRate, err = c.RateBaseline(ctx, rolling.FamilyWallet); err != nil {
		return h, err
	}
	if h.LoadRate, err = c.RateBaseline(ctx, rolling.FamilyLoad); err != nil {
		return h, err
	}
	if h.Render, err = c.RenderBaseline(ctx); err != nil {
		return h, err
	}
	return h, nil
}
