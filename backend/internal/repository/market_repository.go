package repository

import (
	"context"
	"fmt"
	"strings"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketRepository 负责市场条目与收藏记录的持久化。
type MarketRepository struct {
	src store.Source
}

// MarketListFilter 定义市场列表的过滤与分页条件。
type MarketListFilter struct {
	Group  string
	Search string
	Limit  int
	Offset int
}

// NewMarketRepository 创建 MarketRepository。
func NewMarketRepository(src store.Source) *MarketRepository {
	return &MarketRepository{src: src}
}

// WithTx 返回绑定到事务句柄的仓储副本。
func (r *MarketRepository) WithTx(tx *gorm.DB) *MarketRepository {
	return &MarketRepository{src: store.Fixed(tx)}
}

// List 按收藏数、发布时间倒序分页返回市场条目。
func (r *MarketRepository) List(ctx context.Context, filter MarketListFilter) ([]promptdomain.MarketPrompt, int64, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&promptdomain.MarketPrompt{})
	if filter.Group != "" {
		query = whereGroup(query, promptdomain.CollectionMarketPrompts, filter.Group)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count market prompts: %w", err)
	}

	listQuery := query.Order("favorite_count DESC").Order("published_at DESC").Order("id ASC")
	if filter.Limit > 0 {
		listQuery = listQuery.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		listQuery = listQuery.Offset(filter.Offset)
	}

	var entities []promptdomain.MarketPrompt
	if err := listQuery.Find(&entities).Error; err != nil {
		return nil, 0, fmt.Errorf("list market prompts: %w", err)
	}
	return entities, total, nil
}

// ListGroupLabels 读取全部市场条目的分组列。
func (r *MarketRepository) ListGroupLabels(ctx context.Context) ([][]string, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []promptdomain.MarketPrompt
	if err := db.Select("id", "group_labels").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list market groups: %w", err)
	}
	labels := make([][]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.GroupList())
	}
	return labels, nil
}

// FindByID 根据 ID 查询市场条目。
func (r *MarketRepository) FindByID(ctx context.Context, id string) (*promptdomain.MarketPrompt, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entity promptdomain.MarketPrompt
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindByOrigin 查找由指定用户发布的、来源于某个 Prompt 的条目。
func (r *MarketRepository) FindByOrigin(ctx context.Context, promptID, userID string) (*promptdomain.MarketPrompt, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entity promptdomain.MarketPrompt
	if err := db.Where("original_prompt_id = ? AND user_id = ?", promptID, userID).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// InsertIgnore 插入条目，(original_prompt_id, user_id) 冲突时不做任何事，返回是否真正插入。
func (r *MarketRepository) InsertIgnore(ctx context.Context, entity *promptdomain.MarketPrompt) (bool, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return false, err
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(entity)
	if result.Error != nil {
		return false, fmt.Errorf("insert market prompt: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// CreateBatch 批量写入市场条目，用于种子数据。
func (r *MarketRepository) CreateBatch(ctx context.Context, entities []promptdomain.MarketPrompt) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	db, err := r.src.DB(ctx)
	if err != nil {
		return 0, err
	}
	result := db.CreateInBatches(&entities, importBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("create market prompts: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Updates 按列更新市场条目。
func (r *MarketRepository) Updates(ctx context.Context, id string, fields map[string]any) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	result := db.Model(&promptdomain.MarketPrompt{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update market prompt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSeeded 删除没有来源的种子条目及其收藏记录，返回删除的条目数。
func (r *MarketRepository) DeleteSeeded(ctx context.Context) (int64, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return 0, err
	}
	seeded := db.Model(&promptdomain.MarketPrompt{}).Select("id").Where("original_prompt_id IS NULL")
	if err := db.Where("market_prompt_id IN (?)", seeded).Delete(&promptdomain.Favorite{}).Error; err != nil {
		return 0, fmt.Errorf("delete seeded favorites: %w", err)
	}
	result := db.Where("original_prompt_id IS NULL").Delete(&promptdomain.MarketPrompt{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete seeded market prompts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// AdjustFavoriteCount 原子地调整收藏数，递减时不会低于 0。
func (r *MarketRepository) AdjustFavoriteCount(ctx context.Context, marketID string, delta int) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	query := db.Model(&promptdomain.MarketPrompt{}).Where("id = ?", marketID)
	if delta < 0 {
		query = query.Where("favorite_count >= ?", -delta)
	}
	if err := query.UpdateColumn("favorite_count", gorm.Expr("favorite_count + ?", delta)).Error; err != nil {
		return fmt.Errorf("adjust favorite count: %w", err)
	}
	return nil
}

// FavoriteCount 读取条目的收藏数。
func (r *MarketRepository) FavoriteCount(ctx context.Context, marketID string) (int, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return 0, err
	}
	var row promptdomain.MarketPrompt
	if err := db.Select("favorite_count").Where("id = ?", marketID).Take(&row).Error; err != nil {
		return 0, err
	}
	return row.FavoriteCount, nil
}

// IsFavorited 判断用户是否收藏了条目。
func (r *MarketRepository) IsFavorited(ctx context.Context, userID, marketID string) (bool, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&promptdomain.Favorite{}).
		Where("user_id = ? AND market_prompt_id = ?", userID, marketID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return count > 0, nil
}

// FavoritedAmong 返回 marketIDs 中被用户收藏的集合。
func (r *MarketRepository) FavoritedAmong(ctx context.Context, userID string, marketIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(marketIDs))
	if userID == "" || len(marketIDs) == 0 {
		return out, nil
	}
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := db.Model(&promptdomain.Favorite{}).
		Where("user_id = ? AND market_prompt_id IN ?", userID, marketIDs).
		Pluck("market_prompt_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// DeleteFavorite 删除收藏记录，返回是否真的删除了一行。
func (r *MarketRepository) DeleteFavorite(ctx context.Context, userID, marketID string) (bool, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return false, err
	}
	result := db.Where("user_id = ? AND market_prompt_id = ?", userID, marketID).Delete(&promptdomain.Favorite{})
	if result.Error != nil {
		return false, fmt.Errorf("delete favorite: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertFavorite 插入收藏记录，唯一索引冲突时忽略，返回是否真正插入。
func (r *MarketRepository) InsertFavorite(ctx context.Context, fav *promptdomain.Favorite) (bool, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return false, err
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(fav)
	if result.Error != nil {
		return false, fmt.Errorf("insert favorite: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return replacer.Replace(s)
}
