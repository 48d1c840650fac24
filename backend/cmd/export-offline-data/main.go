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

	"github.com/spf13/cobra"
)

var (
	outputDir  string
	format     string
	seededOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "export-offline-data",
	Short: "Export marketplace listings as a seed file",
	Long: `export-offline-data 把当前市场条目写成交换格式的种子文件，
供 market-seed 或本地模式启动时导入。

默认写入 LOCAL_BOOTSTRAP_DATA_DIR（未设置时为 backend/data/bootstrap）。`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runExport,
}

func init() {
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for market_prompts.<format>")
	rootCmd.Flags().StringVar(&format, "format", bootstrapdata.FormatJSON, "json or yaml")
	rootCmd.Flags().BoolVar(&seededOnly, "seeded-only", false, "skip listings published by users")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "export-offline-data:", err)
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	zapLogger, err := logger.Init()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	sugar := zapLogger.Sugar().With("component", "export-offline-data")

	dest := strings.TrimSpace(outputDir)
	if dest == "" {
		dest = bootstrapdata.ResolveDataDir()
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

	path, err := bootstrapdata.ExportSnapshot(ctx, resources.DBConn(ctx), bootstrapdata.ExportOptions{
		OutputDir:  dest,
		Format:     format,
		SeededOnly: seededOnly,
		Logger:     sugar,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
	return nil
}
