package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tracklog/internal/db"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load habits, completions and tracker entries from a YAML file",
		Long: `Load fixtures from a YAML file into the local database.

Rows whose primary key already exists are skipped, so the command can be
run repeatedly against the same database.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			fixtures, err := db.LoadFixtures(file)
			if err != nil {
				return err
			}
			if err := db.Init(cfg.DatabasePath); err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}

			result, err := db.Seed(db.DB, fixtures)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"file":        file,
				"habits":      result.Habits,
				"completions": result.Completions,
				"entries":     result.Entries,
			}).Info("fixtures loaded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "scripts/fixtures.yaml", "fixtures file")
	return cmd
}
