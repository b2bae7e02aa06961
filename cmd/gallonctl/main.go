// Command gallonctl はマイグレーションと初期データ投入を行う運用コマンドです。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/gallon-quota/internal/platform/config"
	"github.com/ogurasousui/gallon-quota/internal/platform/logger"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gallonctl",
	Short:         "Operate the gallon distribution service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Global().Error().Err(err).Msg("gallonctl failed")
		stop()
		os.Exit(1)
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(effectiveConfigPath(configPath))
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, ""); err != nil {
		return nil, err
	}
	return cfg, nil
}
