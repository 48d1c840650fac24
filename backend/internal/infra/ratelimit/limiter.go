/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-10 17:01:17
 * @FilePath: \prompt-vault\backend\internal\infra\ratelimit\limiter.go
 * @LastEditTime: 2025-10-21 14:20:45
 */
package ratelimit

import (
	"context"
	"time"
)

// AllowResult 描述限流请求的结果。
type AllowResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter 定义限流器的通用能力：在 window 内最多放行 limit 次。
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error)
}

// UserKey 生成按用户维度计数的 key。
func UserKey(identifier, userID string) string {
	return "rate:" + identifier + ":user:" + userID
}

// IPKey 生成按客户端 IP 维度计数的 key。
func IPKey(identifier, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "rate:" + identifier + ":ip:" + ip
}

func unlimited(limit int) AllowResult {
	return AllowResult{Allowed: true, Limit: limit, Remaining: -1}
}
