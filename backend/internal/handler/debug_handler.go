package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/store"
	"prompt-vault/backend/internal/repository"
	marketsvc "prompt-vault/backend/internal/service/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DebugTokenHeader 携带调试令牌的请求头。
const DebugTokenHeader = "X-Debug-DB-Token"

// DebugSeeder 写入示例市场条目，由 market.Service 实现。
type DebugSeeder interface {
	Seed(ctx context.Context, agents []promptdomain.AgentItem, reset bool) (marketsvc.SeedResult, error)
}

// demoAgents 是 /debug/db/seed 写入的示例条目。
var demoAgents = []promptdomain.AgentItem{
	{Name: "Hello", Prompt: "Say hello to the user.", Emoji: "👋", Group: []string{"demo"}},
	{Name: "Database", Prompt: "Explain what a document database is.", Emoji: "🗄️", Group: []string{"demo", "db"}},
	{Name: "Next", Prompt: "Summarize a web framework in one paragraph.", Emoji: "⚡", Group: []string{"demo", "web"}},
}

// DebugHandler 以通用文档形式浏览和修改已注册集合，仅在配置了 DEBUG_DB_TOKEN 时挂载。
type DebugHandler struct {
	collections *repository.CollectionRepository
	seeder      DebugSeeder
	token       string
	logger      *zap.SugaredLogger
}

// NewDebugHandler 创建 DebugHandler。
func NewDebugHandler(collections *repository.CollectionRepository, token string) *DebugHandler {
	return &DebugHandler{
		collections: collections,
		token:       token,
		logger:      appLogger.Component("debug.handler"),
	}
}

// WithSeeder 启用 /seed 接口。
func (h *DebugHandler) WithSeeder(seeder DebugSeeder) *DebugHandler {
	h.seeder = seeder
	return h
}

// Guard 校验调试令牌。
func (h *DebugHandler) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(DebugTokenHeader)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
			h.logger.Warnw("debug token rejected", "ip", c.ClientIP(), "path", c.FullPath())
			response.Abort(c, response.Unauthorized("调试令牌无效"))
			return
		}
		c.Next()
	}
}

// Collections 返回所有已注册集合名。
func (h *DebugHandler) Collections(c *gin.Context) {
	response.Success(c, 0, gin.H{"collections": store.Collections})
}

// Records 列出集合中的记录。
func (h *DebugHandler) Records(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Abort(c, response.BadRequest("limit 必须为正整数"))
			return
		}
		limit = parsed
	}

	rows, err := h.collections.List(c.Request.Context(), name, limit)
	if err != nil {
		h.logger.Errorw("list collection failed", "collection", name, "error", err)
		response.Abort(c, err)
		return
	}
	response.Success(c, 0, rows)
}

// Record 按 ID 读取单条记录。
func (h *DebugHandler) Record(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}

	row, err := h.collections.Get(c.Request.Context(), name, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort(c, response.NotFound(response.ErrNotFound, "记录不存在"))
			return
		}
		h.logger.Errorw("get record failed", "collection", name, "error", err)
		response.Abort(c, err)
		return
	}
	response.Success(c, 0, row)
}

// InsertRecord 写入一条记录。
func (h *DebugHandler) InsertRecord(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var doc repository.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		response.Abort(c, response.BadRequest("请求体必须是 JSON 对象"))
		return
	}

	id, err := h.collections.Insert(c.Request.Context(), name, doc)
	if err != nil {
		h.writeFailed(c, "insert", name, err)
		return
	}
	h.logger.Infow("debug record inserted", "collection", name, "id", id)
	response.Created(c, gin.H{"insertedId": id, "collection": name})
}

// UpdateRecord 按 ID 修改单条记录。
func (h *DebugHandler) UpdateRecord(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var doc repository.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		response.Abort(c, response.BadRequest("请求体必须是 JSON 对象"))
		return
	}

	id := c.Param("id")
	updated, err := h.collections.Update(c.Request.Context(), name, id, doc)
	if err != nil {
		h.writeFailed(c, "update", name, err)
		return
	}
	if updated == 0 {
		response.Abort(c, response.NotFound(response.ErrNotFound, "记录不存在"))
		return
	}
	h.logger.Infow("debug record updated", "collection", name, "id", id)
	response.Success(c, 0, gin.H{"modifiedCount": updated, "collection": name})
}

// DeleteRecord 按 ID 删除单条记录。
func (h *DebugHandler) DeleteRecord(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	id := c.Param("id")
	deleted, err := h.collections.Delete(c.Request.Context(), name, []string{id})
	if err != nil {
		h.writeFailed(c, "delete", name, err)
		return
	}
	if deleted == 0 {
		response.Abort(c, response.NotFound(response.ErrNotFound, "记录不存在"))
		return
	}
	h.logger.Infow("debug record deleted", "collection", name, "id", id)
	response.Success(c, 0, gin.H{"deletedCount": deleted, "collection": name})
}

// DeleteRecords 删除 ids 中列出的记录，未提供 ids 时清空集合。
func (h *DebugHandler) DeleteRecords(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	deleted, err := h.collections.Delete(c.Request.Context(), name, ids)
	if err != nil {
		h.writeFailed(c, "delete", name, err)
		return
	}
	h.logger.Warnw("debug records deleted", "collection", name, "requested", len(ids), "deleted", deleted)
	response.Success(c, 0, gin.H{"deletedCount": deleted, "collection": name})
}

// Indexes 列出集合上的索引。
func (h *DebugHandler) Indexes(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	indexes, err := h.collections.Indexes(c.Request.Context(), name)
	if err != nil {
		h.logger.Errorw("list indexes failed", "collection", name, "error", err)
		response.Abort(c, err)
		return
	}
	response.Success(c, 0, gin.H{"indexes": indexes, "collection": name})
}

// CreateIndex 在集合上建索引。
func (h *DebugHandler) CreateIndex(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var spec repository.IndexSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		response.Abort(c, response.BadRequest("请求体格式错误"))
		return
	}

	indexName, err := h.collections.CreateIndex(c.Request.Context(), name, spec)
	if err != nil {
		h.writeFailed(c, "create index", name, err)
		return
	}
	h.logger.Infow("debug index created", "collection", name, "index", indexName)
	response.Created(c, gin.H{"index": indexName, "collection": name})
}

// Seed 写入示例市场条目，已有的种子条目不会被清除。
func (h *DebugHandler) Seed(c *gin.Context) {
	if h.seeder == nil {
		response.Abort(c, response.NotFound(response.ErrNotFound, "未启用示例数据"))
		return
	}
	result, err := h.seeder.Seed(c.Request.Context(), demoAgents, false)
	if err != nil {
		h.logger.Errorw("debug seed failed", "error", err)
		response.Abort(c, err)
		return
	}
	response.Created(c, gin.H{"insertedCount": result.Inserted, "collection": promptdomain.CollectionMarketPrompts})
}

func (h *DebugHandler) writeFailed(c *gin.Context, op, name string, err error) {
	if errors.Is(err, repository.ErrInvalidDocument) {
		response.Abort(c, response.BadRequest(err.Error()))
		return
	}
	h.logger.Errorw("debug write failed", "operation", op, "collection", name, "error", err)
	response.Abort(c, err)
}

func (h *DebugHandler) collection(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Query("collection"))
	if name == "" {
		response.Abort(c, response.BadRequest("缺少 collection 参数"))
		return "", false
	}
	if !store.IsKnownCollection(name) {
		response.Abort(c, response.NewError(http.StatusBadRequest, response.ErrBadRequest, "未知的集合: "+name))
		return "", false
	}
	return name, true
}
