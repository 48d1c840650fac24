package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prompt-vault/backend/internal/config"
	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/metrics"
	"prompt-vault/backend/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// KeyType 决定限流计数的维度。
type KeyType string

const (
	KeyByUser KeyType = "user"
	KeyByIP   KeyType = "ip"
)

const resetClockLayout = "15:04:05"

// Policy 描述单个接口的限流策略。Message 只写原因，重置时刻由中间件补上。
type Policy struct {
	Identifier string
	Window     time.Duration
	Max        int
	KeyType    KeyType
	Message    string
}

// NewPolicy 由配置表中的规则构造策略。
func NewPolicy(identifier string, rule config.RateLimitRule, keyType KeyType, message string) Policy {
	return Policy{
		Identifier: identifier,
		Window:     rule.Window,
		Max:        rule.Max,
		KeyType:    keyType,
		Message:    message,
	}
}

// RateLimiter 把 ratelimit.Limiter 包装成按策略挂载的 gin 中间件。
type RateLimiter struct {
	limiter ratelimit.Limiter
	logger  *zap.SugaredLogger
}

// NewRateLimiter 构造限流中间件工厂。
func NewRateLimiter(limiter ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{limiter: limiter, logger: appLogger.Component("middleware.ratelimit")}
}

// Limit 返回应用指定策略的中间件。按用户限流时若请求匿名则退化为按 IP。
func (r *RateLimiter) Limit(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil || r.limiter == nil || policy.Max <= 0 {
			c.Next()
			return
		}

		key := r.key(c, policy)
		result, err := r.limiter.Allow(c.Request.Context(), key, policy.Max, policy.Window)
		if err != nil {
			// 后端不可用时放行，只记录日志。
			r.logger.Warnw("rate limiter unavailable", "identifier", policy.Identifier, "error", err)
			c.Next()
			return
		}

		reset := result.ResetAt.Unix()
		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if !result.Allowed {
			metrics.RecordRateLimitRejection(policy.Identifier)
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds()+0.5)))
			}
			response.Abort(c, response.NewError(http.StatusTooManyRequests, response.ErrRateLimitExceeded, rejectionMessage(policy, result.ResetAt)).
				WithDetails(gin.H{
					"limit":     policy.Max,
					"remaining": 0,
					"reset":     reset,
				}))
			return
		}

		c.Next()
	}
}

// rejectionMessage 在策略文案后附上窗口重置的时刻。
func rejectionMessage(policy Policy, resetAt time.Time) string {
	message := strings.TrimSpace(policy.Message)
	if message == "" {
		message = "请求过于频繁"
	}
	return fmt.Sprintf("%s，请在 %s 后重试", message, resetAt.Format(resetClockLayout))
}

func (r *RateLimiter) key(c *gin.Context, policy Policy) string {
	identifier := policy.Identifier
	if identifier == "" {
		identifier = c.FullPath()
	}
	if policy.KeyType != KeyByIP {
		if identity, ok := OptionalIdentity(c); ok {
			return ratelimit.UserKey(identifier, identity.UserID)
		}
	}
	return ratelimit.IPKey(identifier, ClientIP(c))
}

// ClientIP 依次取 X-Forwarded-For 第一跳、X-Real-IP、gin 推断的地址。
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	if ip := strings.TrimSpace(c.ClientIP()); ip != "" {
		return ip
	}
	return "unknown"
}
