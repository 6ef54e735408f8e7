package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tracklog/internal/config"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/handler"
	"github.com/tracklog/internal/metrics"
	"github.com/tracklog/internal/router"
	"github.com/tracklog/internal/service"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	trackers, err := newTrackerStore(cfg, db.DB)
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	m := metrics.New()
	api := handler.NewAPI(db.DB, trackers, handler.Options{
		Logger:     logger,
		Recorder:   m,
		Location:   location,
		WindowDays: cfg.StatsWindowDays,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(api, m, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     cfg.ListenAddr,
			"database": cfg.DatabasePath,
			"backend":  cfg.AutoSourceBackend,
			"timezone": location.String(),
		}).Info("tracklog listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("run server: %w", err)
	case <-cmd.Context().Done():
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// newTrackerStore 按配置选择自动来源的读取后端
func newTrackerStore(cfg config.AppConfig, gdb *gorm.DB) (service.TrackerStore, error) {
	switch cfg.AutoSourceBackend {
	case config.BackendSupabase:
		store, err := service.NewSupabaseTrackerStore(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return service.NewGormTrackerStore(gdb), nil
	}
}
