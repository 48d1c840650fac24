package prompt

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
	// DefaultPageSize 列表默认分页大小。
	DefaultPageSize = 20
	// MaxPageSize 列表单页上限。
	MaxPageSize = 100

	promptLabel = "提示词"

	initialVersionDescription = "初始版本"
)

var (
	// ErrPromptNotFound 表示 Prompt 不存在。
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrVersionNotFound 表示版本不存在或不属于该 Prompt。
	ErrVersionNotFound = errors.New("prompt version not found")
)

// Service 汇总“我的提示词”相关能力：增删改查、分组统计、版本快照与恢复、导入导出。
type Service struct {
	store   store.Source
	prompts *repository.PromptRepository
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewService 构建 Service。
func NewService(src store.Source, prompts *repository.PromptRepository) *Service {
	return &Service{
		store:   src,
		prompts: prompts,
		logger:  appLogger.Component("prompt.service"),
		now:     time.Now,
	}
}

// WithClock 替换时间源，便于测试 updatedAt 的刷新。
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// ListParams 描述列表查询参数。
type ListParams struct {
	Group    string
	Page     int
	PageSize int
}

// ListResult 是分页后的 Prompt 列表。
type ListResult struct {
	Items    []promptdomain.Prompt
	Total    int64
	Page     int
	PageSize int
}

// CreateParams 描述新建 Prompt 的输入。
type CreateParams struct {
	Name        string
	Body        string
	Emoji       string
	Description string
	Groups      []string
}

// UpdateParams 描述部分更新，nil 字段保持不变。
type UpdateParams struct {
	Name        *string
	Body        *string
	Emoji       *string
	Description *string
	Groups      *[]string
}

// ImportResult 描述批量导入的结果。
type ImportResult struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// List 分页返回调用方的 Prompt，按 updatedAt 倒序。
func (s *Service) List(ctx context.Context, userID string, params ListParams) (ListResult, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	filter := repository.PromptListFilter{
		UserID: userID,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if promptdomain.IsGroupFilter(params.Group) {
		filter.Group = strings.TrimSpace(params.Group)
	}

	items, total, err := s.prompts.ListByUser(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list prompts: %w", err)
	}
	return ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Create 新建 Prompt，并在同一事务内写入版本 1。
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*promptdomain.Prompt, error) {
	now := s.now()
	entity := &promptdomain.Prompt{
		UserID:        userID,
		Name:          strings.TrimSpace(params.Name),
		Body:          params.Body,
		Emoji:         strings.TrimSpace(params.Emoji),
		Description:   strings.TrimSpace(params.Description),
		Groups:        promptdomain.EncodeGroups(promptdomain.NormalizeGroups(params.Groups)),
		LatestVersion: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := store.Transaction(ctx, s.store, func(tx *gorm.DB) error {
		repo := s.prompts.WithTx(tx)
		if err := repo.Create(ctx, entity); err != nil {
			return err
		}
		return repo.CreateVersion(ctx, &promptdomain.PromptVersion{
			PromptID:    entity.ID,
			Version:     1,
			Name:        entity.Name,
			Body:        entity.Body,
			Description: initialVersionDescription,
			CreatedBy:   userID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		s.scope("create").Errorw("create prompt failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("create prompt: %w", err)
	}

	metrics.RecordVersionSnapshot("initial")
	s.scope("create").Infow("prompt created", "user_id", userID, "prompt_id", entity.ID)
	return entity, nil
}

// Get 返回调用方拥有的 Prompt。
func (s *Service) Get(ctx context.Context, userID, promptID string) (*promptdomain.Prompt, error) {
	return s.owned(ctx, s.prompts, userID, promptID)
}

// Update 部分更新 Prompt，updatedAt 始终刷新。
func (s *Service) Update(ctx context.Context, userID, promptID string, params UpdateParams) (*promptdomain.Prompt, error) {
	entity, err := s.owned(ctx, s.prompts, userID, promptID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.touch(entity.UpdatedAt)}
	if params.Name != nil {
		fields["name"] = strings.TrimSpace(*params.Name)
	}
	if params.Body != nil {
		fields["body"] = *params.Body
	}
	if params.Emoji != nil {
		fields["emoji"] = strings.TrimSpace(*params.Emoji)
	}
	if params.Description != nil {
		fields["description"] = strings.TrimSpace(*params.Description)
	}
	if params.Groups != nil {
		fields["group_labels"] = promptdomain.EncodeGroups(promptdomain.NormalizeGroups(*params.Groups))
	}

	if err := s.prompts.Updates(ctx, promptID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	return s.reload(ctx, promptID)
}

// Delete 删除 Prompt，历史版本与市场副本保留。
func (s *Service) Delete(ctx context.Context, userID, promptID string) error {
	if _, err := s.owned(ctx, s.prompts, userID, promptID); err != nil {
		return err
	}
	if err := s.prompts.Delete(ctx, promptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return fmt.Errorf("delete prompt: %w", err)
	}
	s.scope("delete").Infow("prompt deleted", "user_id", userID, "prompt_id", promptID)
	return nil
}

// Groups 统计调用方全部 Prompt 的分组。
func (s *Service) Groups(ctx context.Context, userID string) (promptdomain.GroupSummary, error) {
	labels, err := s.prompts.ListGroupLabels(ctx, userID)
	if err != nil {
		return promptdomain.GroupSummary{}, fmt.Errorf("list groups: %w", err)
	}
	return promptdomain.CountGroups(labels), nil
}

// ListVersions 返回 Prompt 的全部版本，新版本在前。
func (s *Service) ListVersions(ctx context.Context, userID, promptID string) ([]promptdomain.PromptVersion, error) {
	if _, err := s.owned(ctx, s.prompts, userID, promptID); err != nil {
		return nil, err
	}
	versions, err := s.prompts.ListVersions(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// CreateVersion 以当前名称与正文生成新快照，版本号由计数器原子分配。
func (s *Service) CreateVersion(ctx context.Context, userID, promptID, description string) (*promptdomain.PromptVersion, error) {
	var version *promptdomain.PromptVersion
	err := store.Transaction(ctx, s.store, func(tx *gorm.DB) error {
		repo := s.prompts.WithTx(tx)
		entity, err := s.owned(ctx, repo, userID, promptID)
		if err != nil {
			return err
		}

		next, err := repo.NextVersion(ctx, promptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPromptNotFound
			}
			return err
		}

		desc := strings.TrimSpace(description)
		if desc == "" {
			desc = fmt.Sprintf("版本 %d", next)
		}
		version = &promptdomain.PromptVersion{
			PromptID:    promptID,
			Version:     next,
			Name:        entity.Name,
			Body:        entity.Body,
			Description: desc,
			CreatedBy:   userID,
			CreatedAt:   s.now(),
		}
		return repo.CreateVersion(ctx, version)
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.scope("create_version").Errorw("create version failed", "error", err, "prompt_id", promptID)
		return nil, fmt.Errorf("create version: %w", err)
	}

	metrics.RecordVersionSnapshot("create")
	s.scope("create_version").Infow("version created", "prompt_id", promptID, "version", version.Version)
	return version, nil
}

// Restore 把版本快照的名称与正文写回 Prompt，不生成新版本。
func (s *Service) Restore(ctx context.Context, userID, promptID, versionID string) (*promptdomain.Prompt, error) {
	entity, err := s.owned(ctx, s.prompts, userID, promptID)
	if err != nil {
		return nil, err
	}

	version, err := s.prompts.FindVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("find version: %w", err)
	}
	if version.PromptID != promptID {
		return nil, ErrVersionNotFound
	}

	fields := map[string]any{
		"name":       version.Name,
		"body":       version.Body,
		"updated_at": s.touch(entity.UpdatedAt),
	}
	if err := s.prompts.Updates(ctx, promptID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("restore prompt: %w", err)
	}

	metrics.RecordVersionSnapshot("restore")
	s.scope("restore").Infow("prompt restored", "prompt_id", promptID, "version", version.Version)
	return s.reload(ctx, promptID)
}

// Export 以交换格式导出，ids 为空时导出全部。
func (s *Service) Export(ctx context.Context, userID string, ids []string) ([]promptdomain.AgentItem, error) {
	var (
		items []promptdomain.Prompt
		err   error
	)
	if len(ids) == 0 {
		items, err = s.prompts.ListAllByUser(ctx, userID)
	} else {
		parsed, parseErr := access.ParseIDs(ids, "提示词 ID")
		if parseErr != nil {
			return nil, parseErr
		}
		items, err = s.prompts.ListByIDs(ctx, userID, parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("export prompts: %w", err)
	}
	return toAgents(items), nil
}

// Import 批量写入交换格式的条目，不生成版本记录。
func (s *Service) Import(ctx context.Context, userID string, agents []promptdomain.AgentItem) (ImportResult, error) {
	now := s.now()
	entities := make([]promptdomain.Prompt, 0, len(agents))
	for _, agent := range agents {
		entity := promptdomain.NewPromptFromAgent(userID, agent)
		entity.CreatedAt = now
		entity.UpdatedAt = now
		entities = append(entities, entity)
	}

	count, err := s.prompts.CreateBatch(ctx, entities)
	if err != nil {
		s.scope("import").Errorw("import prompts failed", "error", err, "user_id", userID)
		return ImportResult{}, fmt.Errorf("import prompts: %w", err)
	}

	metrics.AddImportedDocuments(count)
	s.scope("import").Infow("prompts imported", "user_id", userID, "count", count)
	return ImportResult{Count: count, Message: fmt.Sprintf("成功导入 %d 个提示词", count)}, nil
}

func (s *Service) owned(ctx context.Context, repo *repository.PromptRepository, userID, promptID string) (*promptdomain.Prompt, error) {
	entity, err := repo.FindByID(ctx, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("find prompt: %w", err)
	}
	if err := access.EnsureOwnership(entity.UserID, userID, promptLabel); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) reload(ctx context.Context, promptID string) (*promptdomain.Prompt, error) {
	entity, err := s.prompts.FindByID(ctx, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("reload prompt: %w", err)
	}
	return entity, nil
}

// touch 返回新的 updatedAt，保证严格大于旧值。
func (s *Service) touch(previous time.Time) time.Time {
	now := s.now()
	if !now.After(previous) {
		now = previous.Add(time.Millisecond)
	}
	return now
}

func (s *Service) scope(operation string) *zap.SugaredLogger {
	if s.logger == nil {
		s.logger = appLogger.Component("prompt.service")
	}
	return s.logger.With("operation", operation)
}

func isDomainError(err error) bool {
	if errors.Is(err, ErrPromptNotFound) || errors.Is(err, ErrVersionNotFound) {
		return true
	}
	_, ok := response.AsAppError(err)
	return ok
}

func toAgents(items []promptdomain.Prompt) []promptdomain.AgentItem {
	out := make([]promptdomain.AgentItem, 0, len(items))
	for _, item := range items {
		out = append(out, promptdomain.ToAgent(item))
	}
	return out
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
