/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:41:15
 * @FilePath: \prompt-vault\backend\internal\middleware\auth_middleware.go
 * @LastEditTime: 2025-10-20 23:02:44
 */
package middleware

import (
	"net/http"
	"strings"
	"time"

	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCookieName 是保存会话令牌的 Cookie 名称。
const SessionCookieName = "pv_session"

// AuthMiddleware 校验会话令牌（Cookie 或 Bearer），并把调用方身份写入上下文。
type AuthMiddleware struct {
	sessions    *token.SessionManager
	revocations token.RevocationStore
	logger      *zap.SugaredLogger
}

// NewAuthMiddleware 创建鉴权中间件，revocations 可为空。
func NewAuthMiddleware(sessions *token.SessionManager, revocations token.RevocationStore) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:    sessions,
		revocations: revocations,
		logger:      appLogger.Component("middleware.auth"),
	}
}

// Required 未登录时返回 401，不再执行后续 handler。
func (m *AuthMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := m.resolve(c)
		if !ok {
			response.Abort(c, response.Unauthorized(""))
			return
		}
		setIdentity(c, identity)
		c.Next()
	}
}

// Optional 解析失败时按匿名请求继续处理。
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, ok := m.resolve(c); ok {
			setIdentity(c, identity)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *gin.Context) (Identity, bool) {
	raw := ExtractSessionToken(c.Request)
	if raw == "" {
		return Identity{}, false
	}

	claims, err := m.sessions.Parse(raw)
	if err != nil {
		m.logger.Debugw("reject session token", "error", err)
		return Identity{}, false
	}

	if m.revocations != nil && claims.TokenID != "" {
		revoked, err := m.revocations.IsRevoked(c.Request.Context(), claims.TokenID)
		if err != nil {
			m.logger.Warnw("check session revocation failed", "error", err)
		}
		if revoked {
			return Identity{}, false
		}
	}

	return Identity{
		UserID:    claims.UserID,
		User:      claims.Identity(),
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, true
}

// ExtractSessionToken 优先读取会话 Cookie，其次是 Authorization: Bearer。
func ExtractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// SetSessionCookie 写入 HttpOnly 会话 Cookie。
func SetSessionCookie(c *gin.Context, value string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, value, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearSessionCookie 让浏览器删除会话 Cookie。
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", secure, true)
}
