package feedcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := cache.Set(ctx, "u1", []byte(`[{"name":"a"}]`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(59 * time.Minute)
	payload, ok, err := cache.Get(ctx, "u1")
	if err != nil || !ok || string(payload) != `[{"name":"a"}]` {
		t.Fatalf("expected cache hit, got ok=%v err=%v payload=%s", ok, err, payload)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := cache.Get(ctx, "u1"); ok {
		t.Fatalf("entry should expire at ttl")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	_ = cache.Set(ctx, "u1", []byte("x"), 0)
	_ = cache.Set(ctx, "u2", []byte("y"), 0)

	if err := cache.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "u1"); ok {
		t.Fatalf("u1 should be gone")
	}
	if _, ok, _ := cache.Get(ctx, "u2"); !ok {
		t.Fatalf("u2 should remain")
	}
}

func TestRedisCache(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, "")
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "u1"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "u1", []byte("payload"), 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := server.TTL("feed:u1"); ttl != 30*time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	payload, ok, err := cache.Get(ctx, "u1")
	if err != nil || !ok || string(payload) != "payload" {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}

	server.FastForward(31 * time.Second)
	if _, ok, _ := cache.Get(ctx, "u1"); ok {
		t.Fatalf("entry should expire")
	}

	_ = cache.Set(ctx, "u1", []byte("again"), time.Minute)
	if err := cache.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "u1"); ok {
		t.Fatalf("entry should be invalidated")
	}
}
