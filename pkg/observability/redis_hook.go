package observability

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type redisStartKey struct{}

// RedisHook times every Redis command and counts it by name and
// outcome. Register it on the client with AddHook; pipelined commands
// share one timer and are counted individually.
type RedisHook struct {
	metrics *Metrics
}

// NewRedisHook creates a hook reporting into the given metrics.
func NewRedisHook(m *Metrics) *RedisHook {
	return &RedisHook{metrics: m}
}

func (h *RedisHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	return context.WithValue(ctx, redisStartKey{}, time.Now()), nil
}

func (h *RedisHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	h.observe(ctx, cmd)
	return nil
}

func (h *RedisHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return context.WithValue(ctx, redisStartKey{}, time.Now()), nil
}

func (h *RedisHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		h.observe(ctx, cmd)
	}
	return nil
}

func (h *RedisHook) observe(ctx context.Context, cmd redis.Cmder) {
	// A key miss is a normal answer, not a command failure.
	status := "ok"
	if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	h.metrics.RedisCommandsTotal.WithLabelValues(cmd.Name(), status).Inc()
	if start, ok := ctx.Value(redisStartKey{}).(time.Time); ok {
		h.metrics.RedisCommandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
	}
}
