package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/sheets"
)

var (
	stageFilter  string
	ownerFilter  string
	statusFilter string
)

var migrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "List migrations with their SLA status",
	Long: `List every migration on the sheet with days in stage and SLA status.

Examples:
  # Everything that is behind
  hubctl migrations --status behind

  # One engineer's queue in a single stage
  hubctl migrations --owner ana@example.com --stage mapping`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		var stage hub.Stage
		if stageFilter != "" {
			normalized, ok := hub.NormalizeStage(stageFilter)
			if !ok {
				return fmt.Errorf("%w: %q", hub.ErrUnknownStage, stageFilter)
			}
			stage = normalized
		}

		_, table, err := loadMigrations(ctx, sheets.ReadOnlyScope)
		if err != nil {
			return err
		}
		thresholds, _, err := loadThresholds(ctx)
		if err != nil {
			return err
		}

		rows := filterMigrations(hub.MigrationsFromTable(table), thresholds, time.Now(), stage, ownerFilter, statusFilter)
		printMigrations(os.Stdout, rows)
		return nil
	},
}

func init() {
	migrationsCmd.Flags().StringVar(&stageFilter, "stage", "", "Only this stage (aliases accepted)")
	migrationsCmd.Flags().StringVar(&ownerFilter, "owner", "", "Only this owner email")
	migrationsCmd.Flags().StringVar(&statusFilter, "status", "", "Only this status: on track, at risk, behind, complete, on hold, unknown")
}

type migrationRow struct {
	migration  hub.Migration
	evaluation hub.Evaluation
}

func filterMigrations(migrations []hub.Migration, thresholds hub.Thresholds, now time.Time, stage hub.Stage, owner, status string) []migrationRow {
	owner = strings.ToLower(strings.TrimSpace(owner))
	status = strings.TrimSpace(status)
	out := make([]migrationRow, 0, len(migrations))
	for _, m := range migrations {
		if stage != "" && m.Stage != stage {
			continue
		}
		if owner != "" && m.OwnerEmail != owner {
			continue
		}
		eval := hub.Evaluate(m, thresholds, now)
		if status != "" && !strings.EqualFold(string(eval.Status), status) {
			continue
		}
		out = append(out, migrationRow{migration: m, evaluation: eval})
	}
	return out
}

func printMigrations(out io.Writer, rows []migrationRow) {
	if len(rows) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(out, "%s\n", gray("No migrations match"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tSTAGE\tOWNER\tDAYS\tSTATUS")
	for _, row := range rows {
		m := row.migration
		stage := string(m.Stage)
		if stage == "" {
			stage = m.RawStage
		}
		days := "-"
		if row.evaluation.DaysInStage >= 0 {
			days = fmt.Sprintf("%d/%d", row.evaluation.DaysInStage, row.evaluation.ThresholdDays)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.CustomerName, stage, m.OwnerEmail, days, colorStatus(row.evaluation.Status))
	}
	_ = w.Flush()
}

func colorStatus(status hub.Status) string {
	switch status {
	case hub.StatusBehind:
		return color.New(color.FgRed, color.Bold).Sprint(status)
	case hub.StatusAtRisk:
		return color.New(color.FgYellow).Sprint(status)
	case hub.StatusOnTrack, hub.StatusComplete:
		return color.New(color.FgGreen).Sprint(status)
	default:
		return color.New(color.FgHiBlack).Sprint(status)
	}
}
