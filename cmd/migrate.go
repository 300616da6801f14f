package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"tripvault/config"
	"tripvault/logging"
	_ "tripvault/migration"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate the postgres schema",
		Long:  `This command migrates the postgres schema with goose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if down {
				up = false
			}

			cfg := config.Load()
			logging.Setup(cfg.LogLevel)

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("set goose dialect: %w", err)
			}
			db, err := sql.Open("postgres", cfg.DSN())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}
			if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+config.AppName); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}

			migrationsDir := "migration"
			switch {
			case up:
				slog.Info("running up migrations")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up: %w", err)
				}
			case down:
				slog.Info("rolling back the last migration")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down: %w", err)
				}
			}
			return goose.StatusContext(ctx, db, migrationsDir)
		},
	}

	cmd.Flags().BoolP("up", "u", true, "up the version of db")
	cmd.Flags().BoolP("down", "d", false, "down the version of db")

	return cmd
}
