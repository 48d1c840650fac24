package repository

import (
	"context"
	"errors"
	"fmt"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/store"

	"gorm.io/gorm"
)

const importBatchSize = 100

// PromptRepository 负责 Prompt 及其版本记录的持久化操作。
type PromptRepository struct {
	src store.Source
}

// PromptListFilter 定义查询“我的 Prompt”列表时使用的过滤条件。
type PromptListFilter struct {
	UserID string
	Group  string
	Limit  int
	Offset int
}

// NewPromptRepository 创建 PromptRepository。
func NewPromptRepository(src store.Source) *PromptRepository {
	return &PromptRepository{src: src}
}

// WithTx 返回绑定到事务句柄的仓储副本。
func (r *PromptRepository) WithTx(tx *gorm.DB) *PromptRepository {
	return &PromptRepository{src: store.Fixed(tx)}
}

// Create 新增 Prompt 记录。
func (r *PromptRepository) Create(ctx context.Context, entity *promptdomain.Prompt) error {
	if entity == nil {
		return errors.New("prompt entity is nil")
	}
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(entity).Error; err != nil {
		return fmt.Errorf("create prompt: %w", err)
	}
	return nil
}

// CreateBatch 分批写入多条 Prompt，返回写入数量。
func (r *PromptRepository) CreateBatch(ctx context.Context, entities []promptdomain.Prompt) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	db, err := r.src.DB(ctx)
	if err != nil {
		return 0, err
	}
	result := db.CreateInBatches(&entities, importBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("create prompts: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// FindByID 根据 ID 查询 Prompt，归属校验由调用方完成。
func (r *PromptRepository) FindByID(ctx context.Context, id string) (*promptdomain.Prompt, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entity promptdomain.Prompt
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListByUser 分页返回用户的 Prompt，按最近更新时间倒序。
func (r *PromptRepository) ListByUser(ctx context.Context, filter PromptListFilter) ([]promptdomain.Prompt, int64, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&promptdomain.Prompt{}).Where("user_id = ?", filter.UserID)
	if filter.Group != "" {
		query = whereGroup(query, promptdomain.CollectionPrompts, filter.Group)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	listQuery := query.Order("updated_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		listQuery = listQuery.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		listQuery = listQuery.Offset(filter.Offset)
	}

	var entities []promptdomain.Prompt
	if err := listQuery.Find(&entities).Error; err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	return entities, total, nil
}

// ListAllByUser 返回用户全部 Prompt，按最近更新时间倒序，用于导出与订阅源。
func (r *PromptRepository) ListAllByUser(ctx context.Context, userID string) ([]promptdomain.Prompt, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []promptdomain.Prompt
	if err := db.Where("user_id = ?", userID).Order("updated_at DESC").Order("id DESC").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return entities, nil
}

// ListByIDs 返回用户名下指定 ID 的 Prompt，不属于该用户的 ID 会被忽略。
func (r *PromptRepository) ListByIDs(ctx context.Context, userID string, ids []string) ([]promptdomain.Prompt, error) {
	if len(ids) == 0 {
		return []promptdomain.Prompt{}, nil
	}
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []promptdomain.Prompt
	if err := db.Where("user_id = ? AND id IN ?", userID, ids).Order("updated_at DESC").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list prompts by ids: %w", err)
	}
	return entities, nil
}

// ListGroupLabels 只读取用户全部 Prompt 的分组列。
func (r *PromptRepository) ListGroupLabels(ctx context.Context, userID string) ([][]string, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []promptdomain.Prompt
	if err := db.Select("id", "group_labels").Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list prompt groups: %w", err)
	}
	labels := make([][]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.GroupList())
	}
	return labels, nil
}

// Updates 按列更新 Prompt。
func (r *PromptRepository) Updates(ctx context.Context, id string, fields map[string]any) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	result := db.Model(&promptdomain.Prompt{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update prompt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPublished 只修改发布标记，不刷新 updated_at。
func (r *PromptRepository) SetPublished(ctx context.Context, id string, published bool) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	result := db.Model(&promptdomain.Prompt{}).Where("id = ?", id).UpdateColumn("is_published", published)
	if result.Error != nil {
		return fmt.Errorf("mark prompt published: %w", result.Error)
	}
	return nil
}

// Delete 删除 Prompt，不级联删除版本与市场条目。
func (r *PromptRepository) Delete(ctx context.Context, id string) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&promptdomain.Prompt{})
	if result.Error != nil {
		return fmt.Errorf("delete prompt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NextVersion 原子地递增 latest_version 并返回新值，需在事务内调用才能与版本写入保持一致。
func (r *PromptRepository) NextVersion(ctx context.Context, promptID string) (int, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return 0, err
	}
	result := db.Model(&promptdomain.Prompt{}).
		Where("id = ?", promptID).
		UpdateColumn("latest_version", gorm.Expr("latest_version + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("bump prompt version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var row promptdomain.Prompt
	if err := db.Select("latest_version").Where("id = ?", promptID).Take(&row).Error; err != nil {
		return 0, fmt.Errorf("read prompt version: %w", err)
	}
	return row.LatestVersion, nil
}

// CreateVersion 记录 Prompt 的历史版本。
func (r *PromptRepository) CreateVersion(ctx context.Context, version *promptdomain.PromptVersion) error {
	db, err := r.src.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(version).Error; err != nil {
		return fmt.Errorf("create prompt version: %w", err)
	}
	return nil
}

// ListVersions 返回 Prompt 的全部版本，新版本在前。
func (r *PromptRepository) ListVersions(ctx context.Context, promptID string) ([]promptdomain.PromptVersion, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var versions []promptdomain.PromptVersion
	if err := db.Where("prompt_id = ?", promptID).Order("version DESC").Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("list prompt versions: %w", err)
	}
	return versions, nil
}

// FindVersion 根据版本 ID 查询快照。
func (r *PromptRepository) FindVersion(ctx context.Context, versionID string) (*promptdomain.PromptVersion, error) {
	db, err := r.src.DB(ctx)
	if err != nil {
		return nil, err
	}
	var version promptdomain.PromptVersion
	if err := db.Where("id = ?", versionID).First(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}
