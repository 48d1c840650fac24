package feedcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL 是订阅源缓存的默认有效期。
const DefaultTTL = time.Hour

// Cache 按用户缓存已序列化的订阅源内容。
type Cache interface {
	Get(ctx context.Context, userID string) ([]byte, bool, error)
	Set(ctx context.Context, userID string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

// MemoryCache 是进程内实现，条目在读取时按 expiresAt 判定过期。
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryCache 创建进程内缓存。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock 替换时间源，供测试使用。
func (m *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	m.now = now
	return m
}

// Get 返回未过期的缓存内容，过期条目会被顺带删除。
func (m *MemoryCache) Get(_ context.Context, userID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, userID)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Set 写入缓存。
func (m *MemoryCache) Set(_ context.Context, userID string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{payload: payload, expiresAt: m.now().Add(ttl)}
	return nil
}

// Invalidate 删除用户的缓存。
func (m *MemoryCache) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// RedisCache 使用 Redis 字符串保存订阅源内容，过期交给 Redis TTL。
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache 构造 Redis 缓存。
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "feed"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) key(userID string) string {
	return r.prefix + ":" + userID
}

// Get 读取缓存，键不存在视为未命中。
func (r *RedisCache) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get feed cache: %w", err)
	}
	return payload, true, nil
}

// Set 写入缓存并设置 TTL。
func (r *RedisCache) Set(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.client.Set(ctx, r.key(userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set feed cache: %w", err)
	}
	return nil
}

// Invalidate 删除缓存键。
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	return nil
}
