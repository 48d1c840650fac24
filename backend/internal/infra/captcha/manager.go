package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prompt-vault/backend/internal/infra/ratelimit"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCaptchaNotFound = errors.New("captcha not found or expired")
	ErrCaptchaMismatch = errors.New("captcha code mismatch")
	ErrRateLimited     = errors.New("captcha requests too frequent")
)

type Generator interface {
	Generate(ctx context.Context, ip string) (id string, b64 string, err error)
}

type Verifier interface {
	Verify(ctx context.Context, id string, answer string) error
}

// AnswerStore 保存验证码答案，Take 读取后立即删除，保证一次性使用。
type AnswerStore interface {
	Set(ctx context.Context, id, answer string, ttl time.Duration) error
	Take(ctx context.Context, id string) (string, bool, error)
}

// Manager 负责注册验证码的生成、校验与生成限流。
type Manager struct {
	store   AnswerStore
	limiter ratelimit.Limiter // 可为空
	driver  base64Captcha.Driver
	ttl     time.Duration
	maxHits int // 0 表示不限
	window  time.Duration
}

// NewManager 根据给定的选项构造验证码管理器，未设置的字段使用默认值。
func NewManager(store AnswerStore, limiter ratelimit.Limiter, opts Options) *Manager {
	if store == nil {
		panic("captcha manager requires answer store")
	}
	opts = opts.withDefaults()

	return &Manager{
		store:   store,
		limiter: limiter,
		driver:  base64Captcha.NewDriverDigit(opts.Height, opts.Width, opts.Length, opts.MaxSkew, opts.DotCount),
		ttl:     opts.TTL,
		maxHits: max(opts.GenerateLimit, 0),
		window:  opts.GenerateWindow,
	}
}

// Generate 返回验证码 ID 与 base64 图片，答案以小写保存。
func (m *Manager) Generate(ctx context.Context, ip string) (string, string, error) {
	if err := m.checkRateLimit(ctx, ip); err != nil {
		return "", "", err
	}

	id, content, answer := m.driver.GenerateIdQuestionAnswer()

	item, err := m.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", fmt.Errorf("draw captcha: %w", err)
	}

	if err := m.store.Set(ctx, id, strings.ToLower(answer), m.ttl); err != nil {
		return "", "", fmt.Errorf("store captcha: %w", err)
	}

	return id, item.EncodeB64string(), nil
}

// Verify 校验答案，不论结果答案都会被消费。
func (m *Manager) Verify(ctx context.Context, id string, answer string) error {
	if strings.TrimSpace(id) == "" {
		return ErrCaptchaNotFound
	}

	stored, ok, err := m.store.Take(ctx, id)
	if err != nil {
		return fmt.Errorf("take captcha: %w", err)
	}
	if !ok {
		return ErrCaptchaNotFound
	}

	if !strings.EqualFold(strings.TrimSpace(answer), stored) {
		return ErrCaptchaMismatch
	}

	return nil
}

// checkRateLimit 超过单个 IP 的生成阈值时返回 ErrRateLimited。
func (m *Manager) checkRateLimit(ctx context.Context, ip string) error {
	if m.limiter == nil || m.maxHits <= 0 || strings.TrimSpace(ip) == "" {
		return nil
	}

	result, err := m.limiter.Allow(ctx, ratelimit.IPKey("register-captcha", ip), m.maxHits, m.window)
	if err != nil {
		return fmt.Errorf("captcha rate limit: %w", err)
	}
	if !result.Allowed {
		return ErrRateLimited
	}
	return nil
}

// RedisStore 使用 Redis 保存验证码答案。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 构造 Redis 答案存储。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

// Set 写入答案并设置过期时间。
func (s *RedisStore) Set(ctx context.Context, id, answer string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(id), answer, ttl).Err()
}

// Take 通过 GETDEL 原子地读取并删除答案。
func (s *RedisStore) Take(ctx context.Context, id string) (string, bool, error) {
	stored, err := s.client.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return stored, true, nil
}

// MemoryStore 复用 base64Captcha 自带的进程内存储，过期时间在构造时固定。
type MemoryStore struct {
	inner base64Captcha.Store
}

// NewMemoryStore 创建进程内答案存储。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{inner: base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl)}
}

// Set 写入答案，ttl 以构造时为准。
func (s *MemoryStore) Set(_ context.Context, id, answer string, _ time.Duration) error {
	return s.inner.Set(id, answer)
}

// Take 读取并清除答案。
func (s *MemoryStore) Take(_ context.Context, id string) (string, bool, error) {
	stored := s.inner.Get(id, true)
	if stored == "" {
		return "", false, nil
	}
	return stored, true, nil
}
