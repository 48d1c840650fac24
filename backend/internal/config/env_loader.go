package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	// EnvFileVar 指定额外的 env 文件，优先级高于 .env.local。
	EnvFileVar = "PROMPT_VAULT_ENV_FILE"
	// skipEnvVar 为 1 时完全跳过 env 文件，容器内直接使用进程环境变量。
	skipEnvVar = "PROMPT_VAULT_SKIP_ENV_FILES"
)

var (
	envMu       sync.Mutex
	envLoaded   bool
	envDisabled bool
	loadedFiles []string
)

// LoadEnvFiles 只执行一次：依次加载 $PROMPT_VAULT_ENV_FILE、.env.local、.env。
// 已存在的进程环境变量不会被覆盖，靠前的文件优先。
func LoadEnvFiles() {
	envMu.Lock()
	defer envMu.Unlock()

	if envLoaded || envDisabled || os.Getenv(skipEnvVar) == "1" {
		return
	}
	envLoaded = true

	root := projectRoot()
	var candidates []string
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, filepath.Join(root, ".env.local"), filepath.Join(root, ".env"))

	for _, path := range candidates {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		// godotenv.Load 不覆盖已有变量，先加载的文件自然优先。
		if err := godotenv.Load(path); err == nil {
			loadedFiles = append(loadedFiles, path)
		}
	}
}

// LoadedEnvFiles 返回实际加载过的 env 文件，供启动日志输出。
func LoadedEnvFiles() []string {
	envMu.Lock()
	defer envMu.Unlock()
	return append([]string(nil), loadedFiles...)
}

// SetEnvFileLoadingForTest 开关 env 文件加载并重置加载状态，仅供测试使用。
func SetEnvFileLoadingForTest(enabled bool) {
	envMu.Lock()
	defer envMu.Unlock()

	envDisabled = !enabled
	envLoaded = false
	loadedFiles = nil
}

// projectRoot 从当前目录向上找到 go.mod 所在目录；找不到时退回当前目录。
func projectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
