/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:42:09
 * @FilePath: \prompt-vault\backend\internal\handler\auth_handler.go
 * @LastEditTime: 2025-10-21 16:05:44
 */
package handler

import (
	"time"

	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/token"
	"prompt-vault/backend/internal/middleware"
	authsvc "prompt-vault/backend/internal/service/auth"
	"prompt-vault/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionParser 解析会话令牌，登出时用于取得 jti。
type SessionParser interface {
	Parse(raw string) (token.SessionClaims, error)
	TTL() time.Duration
}

// AuthHandler 负责对接 Gin，处理注册、登录、登出与验证码请求。
type AuthHandler struct {
	service      *authsvc.Service
	sessions     SessionParser
	cookieSecure bool
	logger       *zap.SugaredLogger
}

// NewAuthHandler 构造鉴权 handler。
func NewAuthHandler(service *authsvc.Service, sessions SessionParser, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		service:      service,
		sessions:     sessions,
		cookieSecure: cookieSecure,
		logger:       appLogger.Component("auth.handler"),
	}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email" label:"邮箱"`
	Password    string `json:"password" binding:"required,min=8" label:"密码"`
	Name        string `json:"name" binding:"omitempty,max=64" label:"名称"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email" label:"邮箱"`
	Password string `json:"password" binding:"required" label:"密码"`
}

// Captcha 返回一张新的图形验证码。
func (h *AuthHandler) Captcha(c *gin.Context) {
	id, image, err := h.service.Captcha(c.Request.Context(), middleware.ClientIP(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, 0, gin.H{"captchaId": id, "image": image})
}

// Register 处理注册请求。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	user, err := h.service.Register(c.Request.Context(), authsvc.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CaptchaID:   req.CaptchaID,
		CaptchaCode: req.CaptchaCode,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, 0, gin.H{
		"success": true,
		"message": "注册成功",
		"user":    toUserDTO(user),
	})
}

// Login 校验凭证，写入会话 Cookie，同时在响应体中返回令牌供非浏览器客户端使用。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Abort(c, err)
		return
	}

	session, err := h.service.Login(c.Request.Context(), authsvc.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}

	middleware.SetSessionCookie(c, session.Token, h.sessions.TTL(), h.cookieSecure)
	response.Success(c, 0, gin.H{
		"user":      toUserDTO(session.User),
		"token":     session.Token,
		"expiresAt": response.FormatTime(session.Claims.ExpiresAt),
	})
}

// Logout 吊销当前会话并清除 Cookie。令牌无效时同样视为成功。
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw := middleware.ExtractSessionToken(c.Request); raw != "" {
		if claims, err := h.sessions.Parse(raw); err == nil {
			if err := h.service.Logout(c.Request.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
				h.logger.Warnw("revoke session failed", "error", err, "user_id", claims.UserID)
			}
		}
	}
	middleware.ClearSessionCookie(c, h.cookieSecure)
	response.Success(c, 0, gin.H{"success": true})
}
