/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 20:51:28
 * @FilePath: \prompt-vault\backend\internal\bootstrap\bootstrap.go
 * @LastEditTime: 2025-10-21 15:40:19
 */
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"prompt-vault/backend/internal/app"
	"prompt-vault/backend/internal/bootstrapdata"
	"prompt-vault/backend/internal/config"
	userdomain "prompt-vault/backend/internal/domain/user"
	"prompt-vault/backend/internal/handler"
	"prompt-vault/backend/internal/infra/captcha"
	"prompt-vault/backend/internal/infra/feedcache"
	"prompt-vault/backend/internal/infra/metrics"
	"prompt-vault/backend/internal/infra/ratelimit"
	"prompt-vault/backend/internal/infra/token"
	"prompt-vault/backend/internal/middleware"
	"prompt-vault/backend/internal/repository"
	"prompt-vault/backend/internal/server"
	authsvc "prompt-vault/backend/internal/service/auth"
	feedsvc "prompt-vault/backend/internal/service/feed"
	marketsvc "prompt-vault/backend/internal/service/market"
	promptsvc "prompt-vault/backend/internal/service/prompt"
	usersvc "prompt-vault/backend/internal/service/user"
	"prompt-vault/backend/internal/validation"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const envStaticDir = "STATIC_DIR"

// Application 汇总构建完成的路由与需要随进程停止的后台任务。
type Application struct {
	Resources *app.Resources
	AuthSvc   *authsvc.Service
	PromptSvc *promptsvc.Service
	MarketSvc *marketsvc.Service
	Router    http.Handler

	stopSweeper   context.CancelFunc
	sweeperDone   <-chan struct{}
	sweepInterval time.Duration
}

// BuildApplication 根据已初始化的资源装配仓储、服务、handler 与路由。
func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources) (*Application, error) {
	validation.Register()
	metrics.MustRegister()

	cfg := resources.Config
	src := resources.Store

	userRepo := repository.NewUserRepository(src)
	promptRepo := repository.NewPromptRepository(src)
	marketRepo := repository.NewMarketRepository(src)

	application := &Application{Resources: resources}

	// 共享状态：配置了 Redis 时多实例共用，否则留在进程内。
	var (
		limiter     ratelimit.Limiter
		feedCache   feedcache.Cache
		revocations token.RevocationStore
	)
	if resources.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(resources.Redis, "")
		feedCache = feedcache.NewRedisCache(resources.Redis, "")
		revocations = token.NewRedisRevocationStore(resources.Redis, "")
	} else {
		memLimiter := ratelimit.NewMemoryLimiter()
		sweepCtx, cancel := context.WithCancel(context.Background())
		application.stopSweeper = cancel
		application.sweepInterval = ratelimit.DefaultSweepInterval
		application.sweeperDone = memLimiter.StartSweeper(sweepCtx, application.sweepInterval)
		limiter = memLimiter
		feedCache = feedcache.NewMemoryCache()
		revocations = token.NewMemoryRevocationStore()
		logger.Infow("using in-memory limiter, feed cache and revocation store")
	}

	captchaManager, captchaEnabled, err := initCaptchaManager(resources, limiter, logger)
	if err != nil {
		application.Close()
		return nil, err
	}

	sessions := token.NewSessionManager(cfg.Server.SessionSecret, cfg.Server.SessionTTL)

	authService := authsvc.NewService(userRepo, sessions, revocations, captchaManager)
	userService := usersvc.NewService(userRepo)
	promptService := promptsvc.NewService(src, promptRepo)
	marketService := marketsvc.NewService(src, marketRepo, promptRepo)
	feedService := feedsvc.NewService(promptRepo, feedCache, cfg.Server.FeedCacheTTL)

	var authMW middleware.Authenticator
	if cfg.Runtime.IsLocal() {
		identity, err := ensureLocalUser(ctx, userRepo, cfg.Local())
		if err != nil {
			application.Close()
			return nil, err
		}
		authMW = middleware.NewOfflineAuthMiddleware(identity)
		if err := bootstrapdata.SeedLocalMarket(ctx, resources.DBConn(ctx), marketService, bootstrapdata.Options{
			Logger: logger.With("component", "bootstrapdata"),
		}); err != nil {
			logger.Warnw("seed local market failed", "error", err)
		}
		logger.Infow("local mode, requests run as fixed user", "user_id", identity.ID)
	} else {
		authMW = middleware.NewAuthMiddleware(sessions, revocations)
	}

	var debugHandler *handler.DebugHandler
	if cfg.Server.DebugDBToken != "" {
		debugHandler = handler.NewDebugHandler(repository.NewCollectionRepository(src), cfg.Server.DebugDBToken).
			WithSeeder(marketService)
		logger.Warnw("debug collection browser enabled")
	}

	router := server.NewRouter(server.RouterOptions{
		AuthHandler:    handler.NewAuthHandler(authService, sessions, cfg.Server.CookieSecure),
		UserHandler:    handler.NewUserHandler(userService),
		PromptHandler:  handler.NewPromptHandler(promptService),
		MarketHandler:  handler.NewMarketHandler(marketService),
		FeedHandler:    handler.NewFeedHandler(feedService),
		DebugHandler:   debugHandler,
		AuthMW:         authMW,
		RateLimiter:    middleware.NewRateLimiter(limiter),
		RateLimits:     cfg.Server.RateLimits,
		AllowOrigins:   cfg.Server.AllowOrigins,
		StaticFS:       server.NewStaticFS(os.Getenv(envStaticDir)),
		CaptchaEnabled: captchaEnabled,
	})

	application.AuthSvc = authService
	application.PromptSvc = promptService
	application.MarketSvc = marketService
	application.Router = router
	return application, nil
}

// Close 停止后台清理任务并等待其退出。
func (a *Application) Close() {
	if a == nil || a.stopSweeper == nil {
		return
	}
	a.stopSweeper()
	<-a.sweeperDone
	a.stopSweeper = nil
}

// initCaptchaManager 未启用验证码时返回 nil 接口，注册流程据此跳过校验。
func initCaptchaManager(resources *app.Resources, limiter ratelimit.Limiter, logger *zap.SugaredLogger) (authsvc.CaptchaManager, bool, error) {
	captchaOpts, captchaEnabled, err := captcha.LoadOptionsFromEnv()
	if err != nil {
		logger.Errorw("load captcha config failed", "error", err)
		return nil, false, fmt.Errorf("load captcha config: %w", err)
	}
	if !captchaEnabled {
		return nil, false, nil
	}

	var answers captcha.AnswerStore
	if resources.Redis != nil {
		answers = captcha.NewRedisStore(resources.Redis, captchaOpts.Prefix)
	} else {
		answers = captcha.NewMemoryStore(captchaOpts.TTL)
	}

	manager := captcha.NewManager(answers, limiter, captchaOpts)
	logger.Infow("captcha enabled", "prefix", captchaOpts.Prefix, "ttl", captchaOpts.TTL)
	return manager, true, nil
}

// ensureLocalUser 保证本地模式的固定用户存在，提示词的 userId 都指向它。
func ensureLocalUser(ctx context.Context, users *repository.UserRepository, local config.LocalRuntime) (userdomain.Identity, error) {
	existing, err := users.FindByID(ctx, local.UserID)
	if err == nil {
		return userdomain.IdentityOf(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return userdomain.Identity{}, fmt.Errorf("load local user: %w", err)
	}

	entity := &userdomain.User{
		ID:    local.UserID,
		Email: strings.ToLower(strings.TrimSpace(local.Email)),
		Name:  local.Username,
	}
	if err := users.Create(ctx, entity); err != nil {
		return userdomain.Identity{}, fmt.Errorf("create local user: %w", err)
	}
	return userdomain.IdentityOf(entity), nil
}
