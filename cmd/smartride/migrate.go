package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartride/internal/app"
	"smartride/internal/repository/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.Log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := app.NewDatabase(ctx, cfg.Database, nil)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}

			logger.WithField("database", cfg.Database.DBName).Info("schema applied")
			return nil
		},
	}
}
