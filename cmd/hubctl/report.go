package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/reports"
	"migrationhub/api/internal/sheets"
)

var (
	reportJSON bool
	reportFrom string
	reportTo   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dashboard summary",
	Long: `Print the pipeline summary, the per-stage breakdown and owner workload.

Examples:
  # Migrations started this quarter
  hubctl report --from 2026-01-01 --to 2026-03-31

  # Machine readable, same shape as GET /api/reports
  hubctl report --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		window, err := reportWindow(reportFrom, reportTo)
		if err != nil {
			return err
		}
		_, table, err := loadMigrations(ctx, sheets.ReadOnlyScope)
		if err != nil {
			return err
		}
		thresholds, _, err := loadThresholds(ctx)
		if err != nil {
			return err
		}

		report := reports.Build(hub.MigrationsFromTable(table), thresholds, time.Now(), window, 0)
		if reportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(os.Stdout, report)
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Only migrations started on or after this date")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Only migrations started on or before this date")
}

func reportWindow(from, to string) (reports.Window, error) {
	var window reports.Window
	if from != "" {
		parsed, ok := hub.ParseDate(from)
		if !ok {
			return window, fmt.Errorf("--from %q is not a date", from)
		}
		window.From = parsed
	}
	if to != "" {
		parsed, ok := hub.ParseDate(to)
		if !ok {
			return window, fmt.Errorf("--to %q is not a date", to)
		}
		window.To = parsed
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return window, fmt.Errorf("--to must not be before --from")
	}
	return window, nil
}

func printReport(out io.Writer, report reports.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	s := report.Summary
	fmt.Fprintf(out, "\n%s\n", cyan("=== Migration Pipeline ==="))
	fmt.Fprintf(out, "  Total:     %d (%d active, %d complete, %d on hold)\n", s.Total, s.Active, s.Completed, s.OnHold)
	fmt.Fprintf(out, "  Behind:    %s\n", red(s.Behind))
	fmt.Fprintf(out, "  At risk:   %s\n", yellow(s.AtRisk))
	fmt.Fprintf(out, "  On track:  %d\n", s.OnTrack)
	fmt.Fprintf(out, "  Avg days to complete: %.1f\n", s.AvgDaysToComplete)

	fmt.Fprintf(out, "\n%s\n", cyan("Stages"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STAGE\tCOUNT\tBEHIND\tAT RISK\tSLA\tAVG DAYS")
	for _, row := range report.Stages {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%d\t%.1f\n", row.Stage, row.Count, row.Behind, row.AtRisk, row.ThresholdDays, row.AvgDaysInStage)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%s\n", cyan("Owners"))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  OWNER\tACTIVE\tBEHIND\tAT RISK\tCOMPLETE")
	for _, row := range report.Owners {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%d\n", row.Owner, row.Active, row.Behind, row.AtRisk, row.Completed)
	}
	_ = w.Flush()
	fmt.Fprintln(out)
}
