// Package bootstrapdata 负责市场种子数据的读取、导入与导出。
package bootstrapdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	marketsvc "prompt-vault/backend/internal/service/market"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	envDataDir              = "LOCAL_BOOTSTRAP_DATA_DIR"
	defaultBootstrapDataDir = "backend/data/bootstrap"
	marketSeedBasename      = "market_prompts"
)

// ErrNoAgents 表示种子文件中没有任何条目。
var ErrNoAgents = errors.New("seed file contains no agents")

// Seeder 由市场服务实现。
type Seeder interface {
	Seed(ctx context.Context, agents []promptdomain.AgentItem, reset bool) (marketsvc.SeedResult, error)
}

// Options 描述本地模式下自动导入种子的参数。
type Options struct {
	DataDir string
	Logger  *zap.SugaredLogger
}

// ResolveDataDir 解析预置数据所在目录。
func ResolveDataDir() string {
	raw := strings.TrimSpace(os.Getenv(envDataDir))
	if raw == "" {
		return defaultBootstrapDataDir
	}
	return raw
}

// FindSeedFile 在目录中依次查找 market_prompts.json / .yaml / .yml。
func FindSeedFile(dir string) (string, bool) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, marketSeedBasename+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadAgents 读取交换格式的种子文件。支持 JSON 与 YAML，
// 顶层既可以是条目数组，也可以是 {agents: [...]}。
func LoadAgents(path string) ([]promptdomain.AgentItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var agents []promptdomain.AgentItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		agents, err = decodeYAML(raw)
	default:
		agents, err = decodeJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	out := agents[:0]
	for _, agent := range agents {
		agent.Name = strings.TrimSpace(agent.Name)
		if agent.Name == "" || strings.TrimSpace(agent.Prompt) == "" {
			continue
		}
		out = append(out, agent)
	}
	if len(out) == 0 {
		return nil, ErrNoAgents
	}
	return out, nil
}

func decodeJSON(raw []byte) ([]promptdomain.AgentItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var agents []promptdomain.AgentItem
		if err := json.Unmarshal(trimmed, &agents); err != nil {
			return nil, err
		}
		return agents, nil
	}
	var doc struct {
		Agents []promptdomain.AgentItem `json:"agents"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Agents, nil
}

func decodeYAML(raw []byte) ([]promptdomain.AgentItem, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var agents []promptdomain.AgentItem
		if err := root.Decode(&agents); err != nil {
			return nil, err
		}
		return agents, nil
	}
	var doc struct {
		Agents []promptdomain.AgentItem `yaml:"agents"`
	}
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Agents, nil
}

// SeedLocalMarket 在市场为空时导入数据目录中的种子文件，文件不存在时跳过。
func SeedLocalMarket(ctx context.Context, db *gorm.DB, seeder Seeder, opts Options) error {
	if db == nil {
		return errors.New("db is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.DataDir == "" {
		opts.DataDir = ResolveDataDir()
	}

	var count int64
	if err := db.WithContext(ctx).Model(&promptdomain.MarketPrompt{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count market prompts: %w", err)
	}
	if count > 0 {
		logger.Infow("market already populated, skip seed", "count", count)
		return nil
	}

	path, ok := FindSeedFile(opts.DataDir)
	if !ok {
		logger.Infow("market seed not found, skip", "dir", opts.DataDir)
		return nil
	}
	agents, err := LoadAgents(path)
	if err != nil {
		return err
	}
	result, err := seeder.Seed(ctx, agents, false)
	if err != nil {
		return err
	}
	logger.Infow("market seeded from file", "path", path, "inserted", result.Inserted)
	return nil
}

// 导出格式，与 LoadAgents 支持的扩展名一致。
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportOptions 描述导出快照的参数。SeededOnly 为 true 时跳过用户发布的条目。
type ExportOptions struct {
	OutputDir  string
	Format     string
	SeededOnly bool
	Logger     *zap.SugaredLogger
}

// ExportSnapshot 把市场条目写成 market_prompts.json 或 .yaml，返回写入的路径。
// 文件可以直接作为种子再次导入。
func ExportSnapshot(ctx context.Context, db *gorm.DB, opts ExportOptions) (string, error) {
	if db == nil {
		return "", errors.New("db is nil")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return "", errors.New("output dir is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return "", fmt.Errorf("unsupported export format %q", opts.Format)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	query := db.WithContext(ctx).Order("favorite_count DESC").Order("published_at DESC")
	if opts.SeededOnly {
		query = query.Where("original_prompt_id IS NULL")
	}
	var listings []promptdomain.MarketPrompt
	if err := query.Find(&listings).Error; err != nil {
		return "", fmt.Errorf("load market prompts: %w", err)
	}

	agents := make([]promptdomain.AgentItem, 0, len(listings))
	for _, listing := range listings {
		agents = append(agents, promptdomain.AgentItem{
			Name:        listing.Name,
			Prompt:      listing.Body,
			Emoji:       listing.Emoji,
			Description: listing.Description,
			Group:       listing.GroupList(),
		})
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(opts.OutputDir, marketSeedBasename+"."+format)
	if err := writeAgents(path, format, agents); err != nil {
		return "", err
	}
	logger.Infow("market snapshot exported", "path", path, "count", len(agents), "seeded_only", opts.SeededOnly)
	return path, nil
}

func writeAgents(path, format string, agents []promptdomain.AgentItem) error {
	var (
		data []byte
		err  error
	)
	if format == FormatYAML {
		data, err = yaml.Marshal(map[string]any{"agents": agents})
	} else {
		data, err = json.MarshalIndent(agents, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
