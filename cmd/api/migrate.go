package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/swaymx/sway-api/internal/config"
	"github.com/swaymx/sway-api/internal/logging"
	"github.com/swaymx/sway-api/internal/postgres"
)

func migrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := postgres.Connect(ctx, cfg.PostgresDSN, 2)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}
