package observability

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRedisHookCountsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	metrics := NewMetrics(prometheus.NewRegistry())
	rdb.AddHook(NewRedisHook(metrics))

	ctx := context.Background()
	if err := rdb.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := rdb.Get(ctx, "k").Err(); err != nil {
		t.Fatalf("get: %v", err)
	}
	// A miss answers redis.Nil, which is not a command failure.
	if err := rdb.Get(ctx, "absent").Err(); err != redis.Nil {
		t.Fatalf("get absent: %v", err)
	}

	if got := testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("set", "ok")); got != 1 {
		t.Errorf("RedisCommandsTotal[set,ok] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("get", "ok")); got != 2 {
		t.Errorf("RedisCommandsTotal[get,ok] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("get", "error")); got != 0 {
		t.Errorf("RedisCommandsTotal[get,error] = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(metrics.RedisCommandDuration); got == 0 {
		t.Error("RedisCommandDuration recorded no samples")
	}
}

func TestRedisHookCountsPipelinedCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	metrics := NewMetrics(prometheus.NewRegistry())
	rdb.AddHook(NewRedisHook(metrics))

	ctx := context.Background()
	pipe := rdb.Pipeline()
	pipe.Incr(ctx, "counter")
	pipe.Expire(ctx, "counter", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if got := testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("incr", "ok")); got != 1 {
		t.Errorf("RedisCommandsTotal[incr,ok] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("expire", "ok")); got != 1 {
		t.Errorf("RedisCommandsTotal[expire,ok] = %v, want 1", got)
	}
}
