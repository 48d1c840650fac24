package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// ModeLocal 表示当前运行在离线/本地模式。
	ModeLocal = "local"
	// ModeOnline 表示运行在默认的在线模式。
	ModeOnline = "online"

	defaultLocalUserID    = "00000000-0000-4000-8000-000000000001"
	defaultLocalUsername  = "离线用户"
	defaultLocalEmail     = "offline@localhost"
	defaultLocalDBRelPath = "data/promptvault-local.db"

	defaultServerPort   = "9090"
	defaultSessionTTL   = 30 * 24 * time.Hour
	defaultFeedCacheTTL = time.Hour
)

// RuntimeFlags 汇总运行期所需的模式与本地环境配置。
type RuntimeFlags struct {
	Mode  string
	Local LocalRuntime
}

// IsLocal 判断是否处于本地模式。
func (f RuntimeFlags) IsLocal() bool {
	return f.Mode == ModeLocal
}

// LocalRuntime 描述本地模式下需要的额外配置。
type LocalRuntime struct {
	DBPath   string
	UserID   string
	Username string
	Email    string
}

// LoadRuntimeFlags 读取 APP_MODE 与 LOCAL_* 变量。APP_MODE 为 local 或 offline 时进入本地模式，
// 其它取值一律按在线模式处理。
func LoadRuntimeFlags() RuntimeFlags {
	mode := ModeOnline
	switch strings.ToLower(envOr("APP_MODE", "")) {
	case ModeLocal, "offline":
		mode = ModeLocal
	}

	return RuntimeFlags{
		Mode: mode,
		Local: LocalRuntime{
			DBPath:   normalisePath(envOr("LOCAL_SQLITE_PATH", defaultLocalDBRelPath)),
			UserID:   envOr("LOCAL_USER_ID", defaultLocalUserID),
			Username: envOr("LOCAL_USER_USERNAME", defaultLocalUsername),
			Email:    strings.ToLower(envOr("LOCAL_USER_EMAIL", defaultLocalEmail)),
		},
	}
}

// ServerConfig 描述 HTTP 服务、会话与缓存相关的配置。
type ServerConfig struct {
	Port          string
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	AllowOrigins  []string
	FeedCacheTTL  time.Duration
	DebugDBToken  string
	RateLimits    RateLimitTable
}

// LoadServerConfig 从环境变量读取服务配置，缺失项回退到默认值。
func LoadServerConfig() ServerConfig {
	LoadEnvFiles()

	cfg := ServerConfig{
		Port:          envOr("SERVER_PORT", defaultServerPort),
		SessionSecret: envOr("SESSION_SECRET", "prompt-vault-dev-secret"),
		SessionTTL:    defaultSessionTTL,
		FeedCacheTTL:  defaultFeedCacheTTL,
		DebugDBToken:  envOr("DEBUG_DB_TOKEN", ""),
		RateLimits:    LoadRateLimitTable(),
	}

	cfg.SessionTTL = DurationFromEnv("SESSION_TTL", cfg.SessionTTL)
	cfg.FeedCacheTTL = DurationFromEnv("FEED_CACHE_TTL", cfg.FeedCacheTTL)
	if raw := strings.TrimSpace(os.Getenv("COOKIE_SECURE")); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.CookieSecure = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, trimmed)
			}
		}
	}

	return cfg
}

// DurationFromEnv 解析 time.Duration 格式的环境变量，非法或非正值时返回 fallback。
func DurationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// IntFromEnv 解析正整数环境变量，非法时返回 fallback。
func IntFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// envOr 返回去掉首尾空白的环境变量，为空时返回 fallback。
func envOr(key, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		return raw
	}
	return fallback
}

// normalisePath 将路径展开为绝对路径，兼容 ~ 前缀与相对路径。
func normalisePath(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
		}
	}
	if filepath.IsAbs(raw) {
		return raw
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}
