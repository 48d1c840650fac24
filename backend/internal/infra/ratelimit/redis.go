package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript 首次计数时设置过期时间，之后只累加，保证窗口固定不滑动。
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisLimiter 使用 Redis 计数实现跨实例共享的固定窗口限流。
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter 根据 Redis 客户端构造限流器，可自定义 key 前缀。
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "promptvault"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow 原子地累加计数并读取剩余有效期，计数超过 limit 时拒绝。
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 || r == nil || r.client == nil {
		return unlimited(limit), nil
	}
	if window <= 0 {
		window = time.Minute
	}

	namespaced := r.prefix + ":" + key
	values, err := fixedWindowScript.Run(ctx, r.client, []string{namespaced}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return AllowResult{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(values) != 2 {
		return AllowResult{}, fmt.Errorf("rate limit script: unexpected reply %v", values)
	}

	count := int(values[0])
	ttl := time.Duration(values[1]) * time.Millisecond
	resetAt := r.now().Add(ttl)

	if count > limit {
		return AllowResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: ttl,
		}, nil
	}

	return AllowResult{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: resetAt}, nil
}
