package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tracklog/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			if err := db.Init(cfg.DatabasePath); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			logger.WithField("database", cfg.DatabasePath).Info("database migrated")
			return nil
		},
	}
}
