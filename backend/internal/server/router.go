package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prompt-vault/backend/internal/config"
	"prompt-vault/backend/internal/handler"
	response "prompt-vault/backend/internal/infra/common"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/metrics"
	"prompt-vault/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	PromptHandler *handler.PromptHandler
	MarketHandler *handler.MarketHandler
	FeedHandler   *handler.FeedHandler
	DebugHandler  *handler.DebugHandler
	AuthMW        middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	RateLimits    config.RateLimitTable
	AllowOrigins  []string
	StaticFS      http.FileSystem
	// AccessLog 为空时写入 zap 的 http.access 组件。
	AccessLog io.Writer
	// CaptchaEnabled 为 false 时不注册 /auth/captcha。
	CaptchaEnabled bool
}

// NewRouter 构建应用的 Gin Engine，汇总所有 REST 接口与公共中间件配置。
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = appLogger.AccessWriter()
	}
	// 访问日志在最外层，记录的是 ErrorRenderer 写出后的最终状态码。
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: gin.LogFormatter(func(params gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s\" %d %s\n",
				params.ClientIP,
				params.TimeStamp.Format(time.RFC3339),
				params.Method,
				params.Path,
				params.StatusCode,
				params.Latency,
			)
		}),
		Output:    accessLog,
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(requestMetrics())
	// ErrorRenderer 渲染 c.Errors 并兜底 panic。
	r.Use(middleware.ErrorRenderer(appLogger.Component("http")))
	r.Use(cors.New(corsConfig(opts.AllowOrigins)))

	if opts.StaticFS != nil {
		r.StaticFS("/static", opts.StaticFS)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	required, optional := authChain(opts.AuthMW)
	limits := opts.RateLimits
	limit := opts.RateLimiter.Limit

	api := r.Group("/api")
	{
		if opts.AuthHandler != nil {
			authGroup := api.Group("/auth")
			if opts.CaptchaEnabled {
				authGroup.GET("/captcha", opts.AuthHandler.Captcha)
			}
			authGroup.POST("/register",
				limit(middleware.NewPolicy("register", limits.Register, middleware.KeyByIP, "注册请求过于频繁")),
				opts.AuthHandler.Register)
			authGroup.POST("/login",
				limit(middleware.NewPolicy("login", limits.Login, middleware.KeyByIP, "登录请求过于频繁")),
				opts.AuthHandler.Login)
			authGroup.POST("/logout", opts.AuthHandler.Logout)
		}

		if opts.UserHandler != nil {
			account := api.Group("/account", required)
			account.GET("/me", opts.UserHandler.Me)
			account.POST("/change-password",
				limit(middleware.NewPolicy("change-password", limits.ChangePassword, middleware.KeyByUser, "修改密码请求过于频繁")),
				opts.UserHandler.ChangePassword)
			account.POST("/update-profile", opts.UserHandler.UpdateProfile)
		}

		prompts := api.Group("/prompts")
		if opts.FeedHandler != nil {
			// 订阅源 GET 不需要登录，由 userId 指定用户。
			prompts.GET("/rss", opts.FeedHandler.Get)
			prompts.POST("/rss", required, opts.FeedHandler.Invalidate)
		}
		if opts.PromptHandler != nil {
			owned := prompts.Group("", required)
			owned.GET("", opts.PromptHandler.List)
			owned.POST("", opts.PromptHandler.Create)
			owned.GET("/groups", opts.PromptHandler.Groups)
			owned.GET("/export", opts.PromptHandler.Export)
			owned.POST("/import",
				limit(middleware.NewPolicy("import", limits.Import, middleware.KeyByUser, "导入请求过于频繁")),
				opts.PromptHandler.Import)
			owned.GET("/:id", opts.PromptHandler.Get)
			owned.PATCH("/:id", opts.PromptHandler.Update)
			owned.DELETE("/:id", opts.PromptHandler.Delete)
			owned.GET("/:id/versions", opts.PromptHandler.ListVersions)
			owned.POST("/:id/versions",
				limit(middleware.NewPolicy("create-version", limits.CreateVersion, middleware.KeyByUser, "创建版本过于频繁")),
				opts.PromptHandler.CreateVersion)
			owned.POST("/:id/restore/:versionId", opts.PromptHandler.Restore)
		}

		if opts.MarketHandler != nil {
			market := api.Group("/market")
			market.GET("/prompts", optional, opts.MarketHandler.List)
			market.GET("/prompts/groups", opts.MarketHandler.Groups)
			market.POST("/publish", required,
				limit(middleware.NewPolicy("publish", limits.Publish, middleware.KeyByUser, "发布请求过于频繁")),
				opts.MarketHandler.Publish)
			market.GET("/prompts/:id/favorite", optional, opts.MarketHandler.FavoriteStatus)
			market.POST("/prompts/:id/favorite", required,
				limit(middleware.NewPolicy("favorite", limits.Favorite, middleware.KeyByUser, "收藏操作过于频繁")),
				opts.MarketHandler.ToggleFavorite)
			market.POST("/prompts/:id/clone", required, opts.MarketHandler.Clone)
		}

		if opts.DebugHandler != nil {
			debug := api.Group("/debug/db", opts.DebugHandler.Guard())
			debug.GET("/collections", opts.DebugHandler.Collections)
			debug.GET("/records", opts.DebugHandler.Records)
			debug.POST("/records", opts.DebugHandler.InsertRecord)
			debug.DELETE("/records", opts.DebugHandler.DeleteRecords)
			debug.GET("/records/:id", opts.DebugHandler.Record)
			debug.PUT("/records/:id", opts.DebugHandler.UpdateRecord)
			debug.DELETE("/records/:id", opts.DebugHandler.DeleteRecord)
			debug.GET("/indexes", opts.DebugHandler.Indexes)
			debug.POST("/indexes", opts.DebugHandler.CreateIndex)
			debug.POST("/seed", opts.DebugHandler.Seed)
		}
	}

	return r
}

// requestMetrics 按路由模板记录耗时，位于 ErrorRenderer 外层以拿到最终状态码。
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// authChain 返回必需与可选鉴权中间件；未配置鉴权时 required 一律拒绝。
func authChain(auth middleware.Authenticator) (gin.HandlerFunc, gin.HandlerFunc) {
	if auth == nil {
		deny := func(c *gin.Context) {
			response.Abort(c, response.Unauthorized(""))
		}
		return deny, func(c *gin.Context) { c.Next() }
	}
	return auth.Required(), auth.Optional()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handler.DebugTokenHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		return cfg
	}
	// 未显式配置时只放行本机开发地址。
	cfg.AllowOriginFunc = func(origin string) bool {
		return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	return cfg
}
