package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/sheets"
)

var advanceDryRun bool

var advanceCmd = &cobra.Command{
	Use:   "advance MIGRATION_ID",
	Short: "Move a migration to the next pipeline stage",
	Long: `Move a migration to the next pipeline stage, stamping the stage date and
LastUpdated columns the same way the API does.

Examples:
  hubctl advance M-0042
  hubctl advance M-0042 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		client, table, err := loadMigrations(ctx, sheets.ReadWriteScope)
		if err != nil {
			return err
		}
		row, ok := table.FindRow(hub.ColMigrationID, args[0])
		if !ok {
			return fmt.Errorf("migration %s not found in %s", args[0], cfg.MigrationsTab)
		}
		m := hub.MigrationFromRow(table, row)
		if m.Stage == "" {
			return fmt.Errorf("%w: %q", hub.ErrUnknownStage, m.RawStage)
		}
		next, err := hub.NextStage(m.Stage)
		if err != nil {
			return fmt.Errorf("%s: %w", m.ID, err)
		}

		cells := hub.StageCells(table, next, time.Now().UTC())
		green := color.New(color.FgGreen).SprintFunc()
		if advanceDryRun {
			fmt.Printf("%s would move %s -> %s (%d cells)\n", m.ID, m.Stage, next, len(cells))
			return nil
		}
		if err := client.UpdateCells(ctx, table, m.RowNumber, cells); err != nil {
			return err
		}
		logger.Info("advanced migration", zap.String("migration_id", m.ID), zap.String("from", string(m.Stage)), zap.String("to", string(next)))
		fmt.Printf("%s %s: %s -> %s\n", green("✓"), m.ID, m.Stage, next)
		return nil
	},
}

func init() {
	advanceCmd.Flags().BoolVar(&advanceDryRun, "dry-run", false, "Show the change without writing it")
}
