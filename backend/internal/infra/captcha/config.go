// Package captcha 提供注册验证码：图片生成、一次性答案存储以及生成接口的 IP 限流。
package captcha

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 注册验证码的环境变量统一以该前缀开头，如 REGISTER_CAPTCHA_TTL。
const envPrefix = "REGISTER_CAPTCHA_"

const (
	defaultPrefix         = "pv:captcha:register"
	defaultTTL            = 5 * time.Minute
	defaultWidth          = 240
	defaultHeight         = 80
	defaultLength         = 5
	defaultMaxSkew        = 0.7
	defaultDotCount       = 80
	defaultGenerateLimit  = 20
	defaultGenerateWindow = time.Minute
)

// Options 描述注册验证码的图片参数与生成限流。零值字段在使用前补默认值。
type Options struct {
	// Prefix 是 Redis 中答案的 key 前缀。
	Prefix   string
	TTL      time.Duration
	Width    int
	Height   int
	Length   int
	MaxSkew  float64
	DotCount int
	// GenerateLimit 为单个 IP 在 GenerateWindow 内可获取的验证码数量，负数表示不限。
	GenerateLimit  int
	GenerateWindow time.Duration
}

// DefaultOptions 返回全部使用默认值的配置。
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Prefix) == "" {
		o.Prefix = defaultPrefix
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.Length <= 0 {
		o.Length = defaultLength
	}
	if o.MaxSkew <= 0 {
		o.MaxSkew = defaultMaxSkew
	}
	if o.DotCount <= 0 {
		o.DotCount = defaultDotCount
	}
	if o.GenerateLimit == 0 {
		o.GenerateLimit = defaultGenerateLimit
	}
	if o.GenerateWindow <= 0 {
		o.GenerateWindow = defaultGenerateWindow
	}
	return o
}

// LoadOptionsFromEnv 读取 REGISTER_CAPTCHA_* 变量。未开启时返回 false；
// 开启后任何字段解析失败都会返回错误，启动阶段随之终止。
func LoadOptionsFromEnv() (Options, bool, error) {
	enabled, err := parseSwitch(envPrefix+"ENABLED", os.Getenv(envPrefix+"ENABLED"))
	if err != nil || !enabled {
		return Options{}, false, err
	}

	opts := Options{Prefix: strings.TrimSpace(os.Getenv(envPrefix + "PREFIX"))}
	err = errors.Join(
		readDuration("TTL", &opts.TTL),
		readInt("WIDTH", &opts.Width),
		readInt("HEIGHT", &opts.Height),
		readInt("LENGTH", &opts.Length),
		readFloat("MAX_SKEW", &opts.MaxSkew),
		readInt("DOT_COUNT", &opts.DotCount),
		readInt("GENERATE_LIMIT", &opts.GenerateLimit),
		readDuration("GENERATE_WINDOW", &opts.GenerateWindow),
	)
	if err != nil {
		return Options{}, false, err
	}
	return opts.withDefaults(), true, nil
}

func lookup(name string) (string, string, bool) {
	key := envPrefix + name
	raw := strings.TrimSpace(os.Getenv(key))
	return key, raw, raw != ""
}

func readInt(name string, dst *int) error {
	key, raw, ok := lookup(name)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = v
	return nil
}

func readFloat(name string, dst *float64) error {
	key, raw, ok := lookup(name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = v
	return nil
}

func readDuration(name string, dst *time.Duration) error {
	key, raw, ok := lookup(name)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = v
	return nil
}

// parseSwitch 接受 1/0、true/false、yes/no、on/off，空值视为关闭。
func parseSwitch(key, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("parse %s: unsupported value %q", key, raw)
	}
}
