package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tracklog/internal/config"
	"github.com/tracklog/internal/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tracklog",
		Short: "Habit tracking service with streaks and heatmaps",
		Long: `tracklog serves daily habits, completions and streak statistics over HTTP.

Auto habits are satisfied by entries in the workout, food, journal, fits and
visits trackers, read from the local database or a Supabase project.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file; environment variables override it")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRuntime 读取配置并构造日志器，所有子命令共用
func loadRuntime() (config.AppConfig, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, logger, nil
}
