package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"migrationhub/api/internal/hub"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show the SLA threshold for each active stage",
	Long: `Show the days allowed in each active stage and where the value comes from:
the built-in default, the YAML file, or (with --with-overrides) an admin override.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		thresholds, sources, err := loadThresholds(ctx)
		if err != nil {
			return err
		}
		printThresholds(os.Stdout, thresholds, sources)
		return nil
	},
}

func printThresholds(out io.Writer, thresholds hub.Thresholds, sources map[hub.Stage]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tDAYS\tAT RISK FROM\tSOURCE")
	for _, stage := range hub.Pipeline {
		if !hub.IsActive(stage) {
			continue
		}
		source := sources[stage]
		if source == "" {
			source = "default"
		}
		days := thresholds.For(stage)
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", stage, days, hub.AtRiskDays(days), source)
	}
	_ = w.Flush()
}
