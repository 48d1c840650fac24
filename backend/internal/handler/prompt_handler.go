package handler

import (
	"net/http"
	"strings"

	"prompt-vault/backend/internal/infra/access"
	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/middleware"
	promptsvc "prompt-vault/backend/internal/service/prompt"
	"prompt-vault/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	promptIDLabel  = "提示词 ID"
	versionIDLabel = "版本 ID"
)

// PromptHandler 承接“我的提示词”相关的 HTTP 请求。
type PromptHandler struct {
	service *promptsvc.Service
	logger  *zap.SugaredLogger
}

// NewPromptHandler 创建 PromptHandler。
func NewPromptHandler(service *promptsvc.Service) *PromptHandler {
	return &PromptHandler{
		service: service,
		logger:  appLogger.Component("prompt.handler"),
	}
}

type listPromptsQuery struct {
	Group    string `form:"group"`
	Page     int    `form:"page" binding:"omitempty,min=1" label:"页码"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100" label:"每页数量"`
}

type createPromptRequest struct {
	Name        string   `json:"name" binding:"required,max=255" label:"名称"`
	Prompt      string   `json:"prompt" binding:"required" label:"提示词内容"`
	Emoji       string   `json:"emoji" binding:"omitempty,max=32" label:"图标"`
	Description string   `json:"description" binding:"omitempty,max=2000" label:"描述"`
	Groups      []string `json:"groups" binding:"omitempty,max=20,dive,max=64" label:"分组"`
}

type updatePromptRequest struct {
	Name        *string   `json:"name" binding:"omitempty,min=1,max=255" label:"名称"`
	Prompt      *string   `json:"prompt" binding:"omitempty,min=1" label:"提示词内容"`
	Emoji       *string   `json:"emoji" binding:"omitempty,max=32" label:"图标"`
	Description *string   `json:"description" binding:"omitempty,max=2000" label:"描述"`
	Groups      *[]string `json:"groups" binding:"omitempty,max=20,dive,max=64" label:"分组"`
}

type createVersionRequest struct {
	Description string `json:"description" binding:"omitempty,max=512" label:"版本说明"`
}

// List 分页返回当前用户的提示词。
func (h *PromptHandler) List(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var query listPromptsQuery
	if err := validation.BindQuery(c, &query); err != nil {
		response.Abort(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), identity.UserID, promptsvc.ListParams{
		Group:    query.Group,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		fail(c, err)
		return
	}

	items := response.Documents(result.Items, toPromptDTO)
	response.Success(c, 0, response.NewPaginated(items, result.Total, result.Page, result.PageSize))
}

// Create 新建提示词，同时生成初始版本。
func (h *PromptHandler) Create(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var req createPromptRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), identity.UserID, promptsvc.CreateParams{
		Name:        req.Name,
		Body:        req.Prompt,
		Emoji:       req.Emoji,
		Description: req.Description,
		Groups:      req.Groups,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, toPromptDTO(*created))
}

// Get 返回单个提示词。
func (h *PromptHandler) Get(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	entity, err := h.service.Get(c.Request.Context(), identity.UserID, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, toPromptDTO(*entity))
}

// Update 部分更新提示词。
func (h *PromptHandler) Update(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	var req updatePromptRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), identity.UserID, id, promptsvc.UpdateParams{
		Name:        req.Name,
		Body:        req.Prompt,
		Emoji:       req.Emoji,
		Description: req.Description,
		Groups:      req.Groups,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, toPromptDTO(*updated))
}

// Delete 删除提示词。
func (h *PromptHandler) Delete(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), identity.UserID, id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{"success": true})
}

// Groups 返回当前用户的分组统计。
func (h *PromptHandler) Groups(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	summary, err := h.service.Groups(c.Request.Context(), identity.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, summary)
}

// ListVersions 返回提示词的版本历史。
func (h *PromptHandler) ListVersions(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), identity.UserID, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, response.Documents(versions, toVersionDTO))
}

// CreateVersion 以当前内容生成版本快照，请求体可省略。
func (h *PromptHandler) CreateVersion(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	var req createVersionRequest
	if c.Request.ContentLength != 0 {
		if err := validation.BindJSON(c, &req); err != nil {
			response.Abort(c, err)
			return
		}
	}

	version, err := h.service.CreateVersion(c.Request.Context(), identity.UserID, id, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, toVersionDTO(*version))
}

// Restore 把指定版本写回提示词。
func (h *PromptHandler) Restore(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	id, err := access.ParseID(c.Param("id"), promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}
	versionID, err := access.ParseID(c.Param("versionId"), versionIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	restored, err := h.service.Restore(c.Request.Context(), identity.UserID, id, versionID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, toPromptDTO(*restored))
}

// Export 以交换格式导出，?ids=a,b 指定导出范围。
func (h *PromptHandler) Export(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var ids []string
	for _, raw := range strings.Split(c.Query("ids"), ",") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	agents, err := h.service.Export(c.Request.Context(), identity.UserID, ids)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, agents)
}

// Import 校验交换格式并批量导入。
func (h *PromptHandler) Import(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	raw, err := c.GetRawData()
	if err != nil {
		response.Abort(c, response.NewError(http.StatusBadRequest, response.ErrInvalidJSON, "请求体格式错误"))
		return
	}
	doc, err := validation.ValidateAgentDocument(raw)
	if err != nil {
		response.Abort(c, err)
		return
	}

	result, err := h.service.Import(c.Request.Context(), identity.UserID, doc.Agents)
	if err != nil {
		fail(c, err)
		return
	}
	h.logger.Infow("prompts imported", "user_id", identity.UserID, "count", result.Count)
	response.Success(c, 0, gin.H{
		"success": true,
		"count":   result.Count,
		"message": result.Message,
	})
}
