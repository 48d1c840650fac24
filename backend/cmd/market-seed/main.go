package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"prompt-vault/backend/internal/app"
	"prompt-vault/backend/internal/bootstrapdata"
	"prompt-vault/backend/internal/infra/logger"
	"prompt-vault/backend/internal/repository"
	marketsvc "prompt-vault/backend/internal/service/market"

	"github.com/spf13/cobra"
)

var (
	seedFile string
	dataDir  string
	reset    bool
	dryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "market-seed",
	Short: "Import curated prompts into the marketplace",
	Long: `market-seed 读取交换格式（JSON 或 YAML）的种子文件并写入提示词市场。

未指定 --file 时，在数据目录中查找 market_prompts.json / .yaml / .yml。
--reset 只会删除此前导入的种子条目，用户发布的条目保持不变。`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSeed,
}

func init() {
	rootCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed file path (json or yaml)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "seed directory, defaults to LOCAL_BOOTSTRAP_DATA_DIR")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "remove previously seeded listings before import")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the seed file without writing")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "market-seed:", err)
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	zapLogger, err := logger.Init()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	sugar := zapLogger.Sugar().With("component", "market-seed")

	path := strings.TrimSpace(seedFile)
	if path == "" {
		dir := strings.TrimSpace(dataDir)
		if dir == "" {
			dir = bootstrapdata.ResolveDataDir()
		}
		found, ok := bootstrapdata.FindSeedFile(dir)
		if !ok {
			return fmt.Errorf("no seed file found in %s", dir)
		}
		path = found
	}

	agents, err := bootstrapdata.LoadAgents(path)
	if err != nil {
		return err
	}
	sugar.Infow("seed file loaded", "path", path, "agents", len(agents))
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d agents parsed from %s\n", len(agents), path)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resources, err := app.InitResources(ctx)
	if err != nil {
		return fmt.Errorf("init resources: %w", err)
	}
	defer func() {
		if cerr := resources.Close(); cerr != nil {
			sugar.Warnw("close resources failed", "error", cerr)
		}
	}()

	service := marketsvc.NewService(
		resources.Store,
		repository.NewMarketRepository(resources.Store),
		repository.NewPromptRepository(resources.Store),
	)
	result, err := service.Seed(ctx, agents, reset)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %d, inserted %d\n", result.Removed, result.Inserted)
	return nil
}
