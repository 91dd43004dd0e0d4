package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"migrationhub/api/internal/store"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the SQL files in HUB_MIGRATIONS_DIR that the database has not seen yet.

Examples:
  hubctl migrate
  hubctl migrate --status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if migrateStatus {
			pending, err := store.PendingMigrations(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("database is up to date")
			}
			for _, version := range pending {
				fmt.Printf("pending %s\n", version)
			}
			return nil
		}

		applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("database is up to date")
			return nil
		}
		for _, version := range applied {
			fmt.Printf("applied %s\n", version)
		}
		logger.Info("applied migrations", zap.Strings("versions", applied))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "List pending migrations without applying them")
}
