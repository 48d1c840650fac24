/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 19:54:47
 * @FilePath: \prompt-vault\backend\internal\app\app.go
 * @LastEditTime: 2025-10-21 15:12:08
 */
package app

import (
	"context"
	"errors"
	"fmt"

	"prompt-vault/backend/internal/config"
	"prompt-vault/backend/internal/infra/client"
	appLogger "prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/infra/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Config 汇总启动阶段读取到的配置。
type Config struct {
	Runtime config.RuntimeFlags
	Server  config.ServerConfig
	Store   store.Options
}

// Local 便于命令行工具直接读取本地模式参数。
func (c Config) Local() config.LocalRuntime {
	return c.Runtime.Local
}

// Resources 持有进程级共享资源：文档存储与可选的 Redis。
type Resources struct {
	Config Config
	Store  *store.Accessor
	Redis  *redis.Client
}

// InitResources 读取配置、连接存储并完成迁移。Redis 未配置时保持为 nil，调用方回退到内存实现。
func InitResources(ctx context.Context) (*Resources, error) {
	config.LoadEnvFiles()
	log := appLogger.Component("app")
	if files := config.LoadedEnvFiles(); len(files) > 0 {
		log.Infow("env files loaded", "files", files)
	}

	flags := config.LoadRuntimeFlags()
	cfg := Config{
		Runtime: flags,
		Server:  config.LoadServerConfig(),
		Store:   store.LoadOptions(flags),
	}

	accessor := store.New(cfg.Store)
	if err := accessor.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	log.Infow("document store ready", "driver", cfg.Store.Driver, "dialect", accessor.Dialect())

	res := &Resources{Config: cfg, Store: accessor}

	if flags.IsLocal() {
		log.Infow("local mode, skip redis")
		return res, nil
	}

	redisOpts, err := client.NewDefaultRedisOptions()
	switch {
	case errors.Is(err, client.ErrRedisNotConfigured):
		log.Infow("redis not configured, shared state stays in memory")
	case err != nil:
		_ = accessor.Close()
		return nil, fmt.Errorf("load redis options: %w", err)
	default:
		rdb, err := client.NewRedisClient(ctx, redisOpts)
		if err != nil {
			_ = accessor.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		res.Redis = rdb
		log.Infow("redis connected", "addr", redisOpts.Client.Addr, "db", redisOpts.Client.DB)
	}

	return res, nil
}

// Close 释放 Redis 与数据库连接。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DBConn 返回底层 *gorm.DB，连接失败时返回 nil。
func (r *Resources) DBConn(ctx context.Context) *gorm.DB {
	if r == nil || r.Store == nil {
		return nil
	}
	db, err := r.Store.DB(ctx)
	if err != nil {
		return nil
	}
	return db
}
