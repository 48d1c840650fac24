package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval 是清理过期窗口的默认周期。
const DefaultSweepInterval = 5 * time.Minute

// MemoryLimiter 是单进程内的固定窗口计数器，多实例部署时各实例独立计数。
type MemoryLimiter struct {
	mu    sync.Mutex
	store map[string]entry
	now   func() time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter 构建内存版限流器，常用于本地开发与单元测试。
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]entry), now: time.Now}
}

// WithClock 替换时间源，便于测试窗口过期。
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

// Allow 固定窗口计数：无记录或窗口已过期时开启新窗口并计 1；计数已达上限时拒绝；否则加一放行。
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if limit <= 0 || m == nil {
		return unlimited(limit), nil
	}
	if window <= 0 {
		window = time.Minute
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ent, ok := m.store[key]
	if !ok || !now.Before(ent.resetAt) {
		ent = entry{count: 1, resetAt: now.Add(window)}
		m.store[key] = ent
		return AllowResult{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: ent.resetAt}, nil
	}

	if ent.count >= limit {
		return AllowResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    ent.resetAt,
			RetryAfter: ent.resetAt.Sub(now),
		}, nil
	}

	ent.count++
	m.store[key] = ent
	return AllowResult{Allowed: true, Limit: limit, Remaining: limit - ent.count, ResetAt: ent.resetAt}, nil
}

// Sweep 删除所有窗口已过期的记录，返回删除数量。
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, ent := range m.store {
		if !now.Before(ent.resetAt) {
			delete(m.store, key)
			removed++
		}
	}
	return removed
}

// Len 返回当前记录数。
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// StartSweeper 启动后台清理协程，ctx 取消后退出并关闭返回的 channel。
func (m *MemoryLimiter) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
	return done
}
