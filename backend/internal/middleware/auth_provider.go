package middleware

import (
	domain "prompt-vault/backend/internal/domain/user"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "identity"

// Authenticator 抽象鉴权中间件：Required 拒绝匿名请求，Optional 允许匿名访问。
type Authenticator interface {
	Required() gin.HandlerFunc
	Optional() gin.HandlerFunc
}

// Identity 是鉴权通过后写入上下文的调用方信息。
type Identity struct {
	UserID    string
	User      domain.Identity
	TokenID   string
	ExpiresAt int64
}

func setIdentity(c *gin.Context, identity Identity) {
	c.Set(identityContextKey, identity)
}

// OptionalIdentity 读取调用方身份，匿名请求返回 false。
func OptionalIdentity(c *gin.Context) (Identity, bool) {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}

// MustIdentity 供挂在 Required 之后的 handler 使用，缺失身份说明路由装配错误。
func MustIdentity(c *gin.Context) Identity {
	identity, ok := OptionalIdentity(c)
	if !ok {
		panic("middleware: identity missing, route is not behind Required()")
	}
	return identity
}
