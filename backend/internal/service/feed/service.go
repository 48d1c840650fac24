// Package feed 生成按用户聚合的订阅源，并缓存序列化结果。
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/feedcache"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/metrics"
	"prompt-vault/backend/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrFeedNotFound   = errors.New("feed has no prompts")
)

// Service 读取或重建订阅源。缓存故障只记录日志，不影响响应。
type Service struct {
	prompts *repository.PromptRepository
	cache   feedcache.Cache
	ttl     time.Duration
	logger  *zap.SugaredLogger
}

// NewService 构造订阅源服务，ttl<=0 时使用 feedcache.DefaultTTL。
func NewService(prompts *repository.PromptRepository, cache feedcache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = feedcache.DefaultTTL
	}
	return &Service{
		prompts: prompts,
		cache:   cache,
		ttl:     ttl,
		logger:  appLogger.Component("feed.service"),
	}
}

// Get 返回用户订阅源的 JSON 数组。用户没有任何提示词时返回 ErrFeedNotFound，且不缓存。
func (s *Service) Get(ctx context.Context, userID string) ([]byte, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	log := s.logger.With("operation", "get", "user_id", userID)

	if s.cache != nil {
		payload, ok, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			metrics.RecordFeedCache("error")
			log.Warnw("read feed cache failed", "error", err)
		case ok:
			metrics.RecordFeedCache("hit")
			return payload, nil
		default:
			metrics.RecordFeedCache("miss")
		}
	}

	items, err := s.prompts.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrFeedNotFound
	}

	agents := make([]promptdomain.AgentItem, 0, len(items))
	for _, item := range items {
		agents = append(agents, promptdomain.ToAgent(item))
	}
	payload, err := json.Marshal(agents)
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, payload, s.ttl); err != nil {
			log.Warnw("write feed cache failed", "error", err)
		}
	}
	return payload, nil
}

// Invalidate 清除用户的订阅源缓存。
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	s.logger.Infow("feed cache invalidated", "user_id", userID)
	return nil
}
