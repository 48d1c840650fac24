/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:53:57
 * @FilePath: \prompt-vault\backend\internal\infra\logger\logger.go
 * @LastEditTime: 2025-10-21 10:30:18
 */
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"prompt-vault/backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "prompt-vault"

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Options 对应 LOG_* 环境变量。FilePath 为空时只输出到控制台。
type Options struct {
	Level      zapcore.Level
	Encoding   string // json 或 console，仅作用于文件输出
	FilePath   string
	Console    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultOptions 返回未设置任何 LOG_* 变量时的配置。本地模式下日志文件写到 SQLite 数据库旁边。
func DefaultOptions() Options {
	path := filepath.Join("logs", serviceName+".log")
	if flags := config.LoadRuntimeFlags(); flags.IsLocal() && flags.Local.DBPath != "" {
		path = filepath.Join(filepath.Dir(flags.Local.DBPath), "logs", serviceName+".log")
	}
	return Options{
		Level:      zapcore.InfoLevel,
		Encoding:   "json",
		FilePath:   path,
		Console:    true,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 15,
		Compress:   true,
	}
}

// LoadOptions 在默认值上叠加 LOG_* 变量，LOG_FILE=off 关闭文件输出。
// 非法取值全部汇总返回，进程启动时即可发现配置错误。
func LoadOptions() (Options, error) {
	config.LoadEnvFiles()
	opts := DefaultOptions()

	var errs []error
	if raw := env("LOG_LEVEL"); raw != "" {
		if err := opts.Level.Set(strings.ToLower(raw)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	if raw := strings.ToLower(env("LOG_ENCODING")); raw != "" {
		if raw != "json" && raw != "console" {
			errs = append(errs, fmt.Errorf("LOG_ENCODING: unsupported %q", raw))
		}
		opts.Encoding = raw
	}
	switch raw := env("LOG_FILE"); strings.ToLower(raw) {
	case "":
	case "off", "none", "-":
		opts.FilePath = ""
	default:
		opts.FilePath = raw
	}
	errs = append(errs,
		readBool("LOG_CONSOLE", &opts.Console),
		readBool("LOG_COMPRESS", &opts.Compress),
		readPositive("LOG_MAX_SIZE", &opts.MaxSizeMB),
		readPositive("LOG_MAX_BACKUPS", &opts.MaxBackups),
		readPositive("LOG_MAX_AGE", &opts.MaxAgeDays),
	)
	if err := errors.Join(errs...); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// New 按 Options 构建 logger，每条日志带 service 字段。
func New(opts Options) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder

	var cores []zapcore.Core
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		rotate := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		encoder := zapcore.NewJSONEncoder(encoderCfg)
		if opts.Encoding == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotate), opts.Level))
	}
	if opts.Console {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), opts.Level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	), nil
}

// Init 读取配置并设置全局 logger，重复调用返回同一个实例。
func Init() (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return global, nil
	}

	opts, err := LoadOptions()
	if err != nil {
		return nil, fmt.Errorf("load log options: %w", err)
	}
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	global = l
	return global, nil
}

// L 返回全局 logger，未初始化时按环境变量初始化，失败则退回控制台 logger。
func L() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	l, err := Init()
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Warn("logger init failed, using development logger", zap.Error(err))
		ReplaceForTest(fallback)
		return fallback
	}
	return l
}

// S 返回全局 SugaredLogger。
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Component 返回带 component 字段的 SugaredLogger。
func Component(name string) *zap.SugaredLogger {
	return S().With("component", name)
}

// AccessWriter 把 gin 访问日志按行转成 component=http.access 的 info 日志。
func AccessWriter() io.Writer {
	return accessWriter{log: Component("http.access")}
}

type accessWriter struct {
	log *zap.SugaredLogger
}

func (w accessWriter) Write(p []byte) (int, error) {
	if line := strings.TrimRight(string(p), "\n"); line != "" {
		w.log.Info(line)
	}
	return len(p), nil
}

// ReplaceForTest 替换全局 logger。
func ReplaceForTest(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// Sync 刷新缓冲区，进程退出前调用。
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		_ = global.Sync()
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func readBool(key string, dst *bool) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func readPositive(key string, dst *int) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s: must be positive, got %d", key, v)
	}
	*dst = v
	return nil
}
