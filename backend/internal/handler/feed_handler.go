package handler

import (
	"net/http"

	response "prompt-vault/backend/internal/infra/common"
	"prompt-vault/backend/internal/middleware"
	feedsvc "prompt-vault/backend/internal/service/feed"

	"github.com/gin-gonic/gin"
)

// FeedHandler 暴露用户订阅源。GET 返回裸 JSON 数组，便于外部工具直接拉取。
type FeedHandler struct {
	service *feedsvc.Service
}

// NewFeedHandler 创建 FeedHandler。
func NewFeedHandler(service *feedsvc.Service) *FeedHandler {
	return &FeedHandler{service: service}
}

// Get 读取 ?userId= 指定用户的订阅源。
func (h *FeedHandler) Get(c *gin.Context) {
	payload, err := h.service.Get(c.Request.Context(), c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// Invalidate 清除当前用户的订阅源缓存，必须携带 ?invalidate=true。
func (h *FeedHandler) Invalidate(c *gin.Context) {
	identity := middleware.MustIdentity(c)
	if c.Query("invalidate") != "true" {
		response.Abort(c, response.BadRequest("缺少 invalidate 参数"))
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), identity.UserID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{"success": true, "message": "缓存已清除"})
}
