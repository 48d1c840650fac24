/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 16:34:40
 * @FilePath: \prompt-vault\backend\internal\infra\client\redis_client.go
 * @LastEditTime: 2025-10-21 13:58:31
 */
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"prompt-vault/backend/internal/config"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
)

// 限流计数、订阅源缓存、登出吊销与验证码答案共用这一个 Redis。
const (
	envRedisURL      = "REDIS_URL"
	envRedisEndpoint = "REDIS_ENDPOINT"
	envRedisPassword = "REDIS_PASSWORD"
	envRedisDB       = "REDIS_DB"
	envRedisAttempts = "REDIS_CONNECT_ATTEMPTS"
)

const (
	defaultRedisPort     = "6379"
	defaultPingTimeout   = 5 * time.Second
	defaultRedisAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
)

// ErrRedisNotConfigured 表示 REDIS_URL 与 REDIS_ENDPOINT 都未设置，调用方回退到进程内实现。
var ErrRedisNotConfigured = errors.New("redis not configured")

// RedisOptions 是 go-redis 的连接参数加上启动探活的重试策略。
type RedisOptions struct {
	Client      *redis.Options
	PingTimeout time.Duration
	Attempts    uint
}

// NewDefaultRedisOptions 优先读取 REDIS_URL（redis:// 或 rediss://），
// 否则由 REDIS_ENDPOINT/REDIS_PASSWORD/REDIS_DB 组装。
func NewDefaultRedisOptions() (RedisOptions, error) {
	config.LoadEnvFiles()

	opts := RedisOptions{
		PingTimeout: defaultPingTimeout,
		Attempts:    uint(config.IntFromEnv(envRedisAttempts, defaultRedisAttempts)),
	}

	if rawURL := strings.TrimSpace(os.Getenv(envRedisURL)); rawURL != "" {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return RedisOptions{}, fmt.Errorf("parse %s: %w", envRedisURL, err)
		}
		opts.Client = parsed
		return opts, nil
	}

	endpoint := strings.TrimSpace(os.Getenv(envRedisEndpoint))
	if endpoint == "" {
		return RedisOptions{}, ErrRedisNotConfigured
	}
	addr, err := normalizeAddr(endpoint)
	if err != nil {
		return RedisOptions{}, fmt.Errorf("parse %s: %w", envRedisEndpoint, err)
	}

	db := 0
	if rawDB := strings.TrimSpace(os.Getenv(envRedisDB)); rawDB != "" {
		if db, err = strconv.Atoi(rawDB); err != nil || db < 0 {
			return RedisOptions{}, fmt.Errorf("parse %s: invalid db %q", envRedisDB, rawDB)
		}
	}

	opts.Client = &redis.Options{
		Addr:     addr,
		Password: os.Getenv(envRedisPassword),
		DB:       db,
	}
	return opts, nil
}

// NewRedisClient 创建客户端并 PING，失败时指数退避重试，全部失败后关闭客户端。
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Client == nil || strings.TrimSpace(opts.Client.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = defaultRedisAttempts
	}

	rdb := redis.NewClient(opts.Client)
	err := retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
			defer cancel()
			return rdb.Ping(pingCtx).Err()
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(defaultRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Client.Addr, err)
	}
	return rdb, nil
}

// normalizeAddr 为缺少端口的地址补上 6379。
func normalizeAddr(endpoint string) (string, error) {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return net.JoinHostPort(endpoint, defaultRedisPort), nil
		}
		return "", err
	}
	if host == "" {
		return "", fmt.Errorf("missing host in %q", endpoint)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid port in %q", endpoint)
	}
	return net.JoinHostPort(host, port), nil
}
