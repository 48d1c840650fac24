package handler

import (
	"prompt-vault/backend/internal/infra/access"
	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/middleware"
	marketsvc "prompt-vault/backend/internal/service/market"
	"prompt-vault/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const marketIDLabel = "市场提示词 ID"

// MarketHandler 负责提示词市场相关接口。
type MarketHandler struct {
	service *marketsvc.Service
	logger  *zap.SugaredLogger
}

// NewMarketHandler 创建 MarketHandler。
func NewMarketHandler(service *marketsvc.Service) *MarketHandler {
	return &MarketHandler{
		service: service,
		logger:  appLogger.Component("market.handler"),
	}
}

type listMarketQuery struct {
	Group  string `form:"group"`
	Search string `form:"search" binding:"omitempty,max=100" label:"搜索关键词"`
	Page   int    `form:"page" binding:"omitempty,min=1" label:"页码"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100" label:"每页数量"`
}

type publishRequest struct {
	PromptID string `json:"promptId" binding:"required" label:"提示词 ID"`
}

// List 浏览市场，登录用户会带上收藏标记。
func (h *MarketHandler) List(c *gin.Context) {
	var query listMarketQuery
	if err := validation.BindQuery(c, &query); err != nil {
		response.Abort(c, err)
		return
	}

	viewerID := ""
	if identity, ok := middleware.OptionalIdentity(c); ok {
		viewerID = identity.UserID
	}

	result, err := h.service.List(c.Request.Context(), viewerID, marketsvc.ListParams{
		Group:  query.Group,
		Search: query.Search,
		Page:   query.Page,
		Limit:  query.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}

	items := response.Documents(result.Items, toMarketPromptDTO)
	response.Success(c, 0, response.NewPaginated(items, result.Total, result.Page, result.Limit))
}

// Groups 返回市场的分组统计。
func (h *MarketHandler) Groups(c *gin.Context) {
	summary, err := h.service.Groups(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, summary)
}

// Publish 发布或更新自己的提示词到市场。
func (h *MarketHandler) Publish(c *gin.Context) {
	identity := middleware.MustIdentity(c)

	var req publishRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}
	promptID, err := access.ParseID(req.PromptID, promptIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	result, err := h.service.Publish(c.Request.Context(), identity.UserID, promptID)
	if err != nil {
		fail(c, err)
		return
	}
	h.logger.Infow("market publish", "user_id", identity.UserID, "prompt_id", promptID, "created", result.Created)
	response.Success(c, 0, gin.H{
		"success": true,
		"id":      result.ID,
		"created": result.Created,
		"message": result.Message,
	})
}

// FavoriteStatus 查询收藏状态，匿名访问恒为未收藏。
func (h *MarketHandler) FavoriteStatus(c *gin.Context) {
	marketID, err := access.ParseID(c.Param("id"), marketIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	viewerID := ""
	if identity, ok := middleware.OptionalIdentity(c); ok {
		viewerID = identity.UserID
	}

	favorited, err := h.service.FavoriteStatus(c.Request.Context(), viewerID, marketID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{"isFavorited": favorited})
}

// ToggleFavorite 切换收藏状态。
func (h *MarketHandler) ToggleFavorite(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	marketID, err := access.ParseID(c.Param("id"), marketIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	result, err := h.service.ToggleFavorite(c.Request.Context(), identity.UserID, marketID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, result)
}

// Clone 把市场条目复制为自己的提示词。
func (h *MarketHandler) Clone(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	marketID, err := access.ParseID(c.Param("id"), marketIDLabel)
	if err != nil {
		response.Abort(c, err)
		return
	}

	cloned, err := h.service.Clone(c.Request.Context(), identity.UserID, marketID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, toPromptDTO(*cloned))
}
