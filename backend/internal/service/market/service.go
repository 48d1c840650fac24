// Package market 实现提示词市场：浏览、发布、收藏、克隆与种子数据。
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/access"
	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/metrics"
	"prompt-vault/backend/internal/infra/store"
	"prompt-vault/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

const (
	messagePublished = "提示词已发布到市场"
	messageUpdated   = "提示词已更新到市场"
)

var (
	ErrMarketPromptNotFound = errors.New("market prompt not found")
	ErrPromptNotFound       = errors.New("prompt not found")
)

// Service 提供市场相关的业务能力。
type Service struct {
	store   store.Source
	market  *repository.MarketRepository
	prompts *repository.PromptRepository
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewService 构造市场服务。
func NewService(src store.Source, market *repository.MarketRepository, prompts *repository.PromptRepository) *Service {
	return &Service{
		store:   src,
		market:  market,
		prompts: prompts,
		logger:  appLogger.Component("market.service"),
		now:     time.Now,
	}
}

// ListParams 描述市场列表查询。
type ListParams struct {
	Group  string
	Search string
	Page   int
	Limit  int
}

// Listing 是带有“当前访问者是否收藏”标记的市场条目。
type Listing struct {
	promptdomain.MarketPrompt
	IsFavorited bool
}

// ListResult 是分页后的市场列表。
type ListResult struct {
	Items []Listing
	Total int64
	Page  int
	Limit int
}

// PublishResult 描述一次发布的结果。
type PublishResult struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Created bool   `json:"created"`
}

// FavoriteResult 描述收藏切换后的状态。
type FavoriteResult struct {
	IsFavorited   bool `json:"isFavorited"`
	FavoriteCount int  `json:"favoriteCount"`
}

// SeedResult 描述种子导入结果。
type SeedResult struct {
	Removed  int64
	Inserted int
}

// List 返回市场条目，viewerID 为空时不查询收藏状态。
func (s *Service) List(ctx context.Context, viewerID string, params ListParams) (ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter := repository.MarketListFilter{
		Search: strings.TrimSpace(params.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if promptdomain.IsGroupFilter(params.Group) {
		filter.Group = strings.TrimSpace(params.Group)
	}

	rows, total, err := s.market.List(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list market prompts: %w", err)
	}

	favorited := map[string]bool{}
	if viewerID != "" {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		favorited, err = s.market.FavoritedAmong(ctx, viewerID, ids)
		if err != nil {
			return ListResult{}, fmt.Errorf("list favorites: %w", err)
		}
	}

	items := make([]Listing, 0, len(rows))
	for _, row := range rows {
		items = append(items, Listing{MarketPrompt: row, IsFavorited: favorited[row.ID]})
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Groups 统计全部市场条目的分组。
func (s *Service) Groups(ctx context.Context) (promptdomain.GroupSummary, error) {
	labels, err := s.market.ListGroupLabels(ctx)
	if err != nil {
		return promptdomain.GroupSummary{}, fmt.Errorf("list market groups: %w", err)
	}
	return promptdomain.CountGroups(labels), nil
}

// Publish 把调用方的 Prompt 发布到市场。同一 (Prompt, 发布者) 只有一个条目，重复发布覆盖内容。
func (s *Service) Publish(ctx context.Context, userID, promptID string) (PublishResult, error) {
	log := s.scope("publish").With("user_id", userID, "prompt_id", promptID)

	var result PublishResult
	err := store.Transaction(ctx, s.store, func(tx *gorm.DB) error {
		prompts := s.prompts.WithTx(tx)
		market := s.market.WithTx(tx)

		source, err := prompts.FindByID(ctx, promptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPromptNotFound
			}
			return err
		}
		if err := access.EnsureOwnership(source.UserID, userID, "提示词"); err != nil {
			return err
		}

		now := s.now()
		origin, owner := source.ID, userID
		listing := &promptdomain.MarketPrompt{
			OriginalPromptID: &origin,
			UserID:           &owner,
			Name:             source.Name,
			Body:             source.Body,
			Emoji:            source.Emoji,
			Description:      source.Description,
			Groups:           promptdomain.EncodeGroups(source.GroupList()),
			PublishedAt:      now,
		}
		created, err := market.InsertIgnore(ctx, listing)
		if err != nil {
			return err
		}

		if created {
			result = PublishResult{ID: listing.ID, Message: messagePublished, Created: true}
		} else {
			existing, err := market.FindByOrigin(ctx, origin, owner)
			if err != nil {
				return err
			}
			if err := market.Updates(ctx, existing.ID, map[string]any{
				"name":         listing.Name,
				"body":         listing.Body,
				"emoji":        listing.Emoji,
				"description":  listing.Description,
				"group_labels": listing.Groups,
				"published_at": now,
			}); err != nil {
				return err
			}
			result = PublishResult{ID: existing.ID, Message: messageUpdated, Created: false}
		}

		return prompts.SetPublished(ctx, source.ID, true)
	})
	if err != nil {
		if isDomainError(err) {
			metrics.RecordMarketOperation("publish", "rejected")
			return PublishResult{}, err
		}
		metrics.RecordMarketOperation("publish", "error")
		log.Errorw("publish failed", "error", err)
		return PublishResult{}, fmt.Errorf("publish prompt: %w", err)
	}

	if result.Created {
		metrics.RecordMarketOperation("publish", "created")
	} else {
		metrics.RecordMarketOperation("publish", "updated")
	}
	log.Infow("prompt published", "market_id", result.ID, "created", result.Created)
	return result, nil
}

// FavoriteStatus 返回访问者是否收藏了条目，匿名访问者总是 false。
func (s *Service) FavoriteStatus(ctx context.Context, viewerID, marketID string) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	favorited, err := s.market.IsFavorited(ctx, viewerID, marketID)
	if err != nil {
		return false, fmt.Errorf("favorite status: %w", err)
	}
	return favorited, nil
}

// ToggleFavorite 切换收藏状态。删除与插入都依赖受影响行数，计数与收藏记录在同一事务内保持一致。
func (s *Service) ToggleFavorite(ctx context.Context, userID, marketID string) (FavoriteResult, error) {
	var result FavoriteResult
	err := store.Transaction(ctx, s.store, func(tx *gorm.DB) error {
		market := s.market.WithTx(tx)

		if _, err := market.FindByID(ctx, marketID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMarketPromptNotFound
			}
			return err
		}

		removed, err := market.DeleteFavorite(ctx, userID, marketID)
		if err != nil {
			return err
		}
		if removed {
			if err := market.AdjustFavoriteCount(ctx, marketID, -1); err != nil {
				return err
			}
			result.IsFavorited = false
		} else {
			inserted, err := market.InsertFavorite(ctx, &promptdomain.Favorite{UserID: userID, MarketPromptID: marketID})
			if err != nil {
				return err
			}
			if inserted {
				if err := market.AdjustFavoriteCount(ctx, marketID, 1); err != nil {
					return err
				}
			}
			result.IsFavorited = true
		}

		count, err := market.FavoriteCount(ctx, marketID)
		if err != nil {
			return err
		}
		result.FavoriteCount = count
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMarketPromptNotFound) {
			return FavoriteResult{}, err
		}
		metrics.RecordMarketOperation("favorite", "error")
		s.scope("toggle_favorite").Errorw("toggle favorite failed", "error", err, "market_id", marketID)
		return FavoriteResult{}, fmt.Errorf("toggle favorite: %w", err)
	}

	if result.IsFavorited {
		metrics.RecordMarketOperation("favorite", "added")
	} else {
		metrics.RecordMarketOperation("favorite", "removed")
	}
	return result, nil
}

// Clone 把市场条目复制为调用方的新 Prompt，不生成版本。
func (s *Service) Clone(ctx context.Context, userID, marketID string) (*promptdomain.Prompt, error) {
	listing, err := s.market.FindByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMarketPromptNotFound
		}
		return nil, fmt.Errorf("find market prompt: %w", err)
	}

	now := s.now()
	entity := &promptdomain.Prompt{
		UserID:      userID,
		Name:        listing.Name,
		Body:        listing.Body,
		Emoji:       listing.Emoji,
		Description: listing.Description,
		Groups:      promptdomain.EncodeGroups(listing.GroupList()),
		IsPublished: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.prompts.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("clone market prompt: %w", err)
	}

	metrics.RecordMarketOperation("clone", "created")
	s.scope("clone").Infow("market prompt cloned", "user_id", userID, "market_id", marketID, "prompt_id", entity.ID)
	return entity, nil
}

// Seed 写入种子条目，reset 为 true 时先删除已有的种子条目（用户发布的条目保留）。
func (s *Service) Seed(ctx context.Context, agents []promptdomain.AgentItem, reset bool) (SeedResult, error) {
	var result SeedResult
	err := store.Transaction(ctx, s.store, func(tx *gorm.DB) error {
		market := s.market.WithTx(tx)
		if reset {
			removed, err := market.DeleteSeeded(ctx)
			if err != nil {
				return err
			}
			result.Removed = removed
		}

		now := s.now()
		entities := make([]promptdomain.MarketPrompt, 0, len(agents))
		for _, agent := range agents {
			entity := promptdomain.NewMarketPromptFromAgent(agent)
			entity.PublishedAt = now
			entities = append(entities, entity)
		}
		inserted, err := market.CreateBatch(ctx, entities)
		if err != nil {
			return err
		}
		result.Inserted = inserted
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed market: %w", err)
	}
	s.scope("seed").Infow("market seeded", "removed", result.Removed, "inserted", result.Inserted)
	return result, nil
}

func (s *Service) scope(operation string) *zap.SugaredLogger {
	if s.logger == nil {
		s.logger = appLogger.Component("market.service")
	}
	return s.logger.With("operation", operation)
}

func isDomainError(err error) bool {
	if errors.Is(err, ErrPromptNotFound) {
		return true
	}
	_, ok := response.AsAppError(err)
	return ok
}
