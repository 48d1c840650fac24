package middleware

import (
	domain "prompt-vault/backend/internal/domain/user"

	"github.com/gin-gonic/gin"
)

// OfflineAuthMiddleware 在本地模式下注入固定用户，绕过会话校验流程。
type OfflineAuthMiddleware struct {
	identity Identity
}

// NewOfflineAuthMiddleware 构造用于离线模式的鉴权中间件。
func NewOfflineAuthMiddleware(user domain.Identity) *OfflineAuthMiddleware {
	return &OfflineAuthMiddleware{identity: Identity{UserID: user.ID, User: user}}
}

// Required 将固定用户写入上下文。
func (m *OfflineAuthMiddleware) Required() gin.HandlerFunc {
	return m.handle
}

// Optional 与 Required 相同，本地模式总是有身份。
func (m *OfflineAuthMiddleware) Optional() gin.HandlerFunc {
	return m.handle
}

func (m *OfflineAuthMiddleware) handle(c *gin.Context) {
	setIdentity(c, m.identity)
	c.Next()
}
