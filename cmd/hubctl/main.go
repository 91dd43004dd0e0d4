// Command hubctl inspects and edits the migration sheet from a terminal using the
// server's Google credentials.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"migrationhub/api/internal/config"
	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/logging"
	"migrationhub/api/internal/sheets"
	"migrationhub/api/internal/store"
)

var (
	// Global flags
	verbose        bool
	timeout        time.Duration
	credentials    string
	spreadsheetID  string
	withOverrides  bool
	thresholdsFile string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "Migration hub command line",
	Long: `hubctl reads the migrations sheet the hub API serves and applies the same
SLA rules, so on-call engineers can check the pipeline without the dashboard.

Configuration comes from the same environment variables as the API
(HUB_SPREADSHEET_ID, GOOGLE_APPLICATION_CREDENTIALS, HUB_THRESHOLDS_FILE, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if spreadsheetID != "" {
			cfg.SpreadsheetID = spreadsheetID
		}
		if credentials != "" {
			cfg.CredentialsFile = credentials
		}
		if thresholdsFile != "" {
			cfg.ThresholdsFile = thresholdsFile
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")
	rootCmd.PersistentFlags().StringVar(&credentials, "credentials", "", "Service account JSON (default: GOOGLE_APPLICATION_CREDENTIALS)")
	rootCmd.PersistentFlags().StringVar(&spreadsheetID, "spreadsheet", "", "Spreadsheet id (default: HUB_SPREADSHEET_ID)")
	rootCmd.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "SLA thresholds YAML (default: HUB_THRESHOLDS_FILE)")
	rootCmd.PersistentFlags().BoolVar(&withOverrides, "with-overrides", false, "Apply threshold overrides stored in Postgres")

	rootCmd.AddCommand(migrationsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(thresholdsCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func openSheet(ctx context.Context, scope string) (*sheets.Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("no spreadsheet configured: set HUB_SPREADSHEET_ID or --spreadsheet")
	}
	values, err := sheets.NewGoogleValues(ctx, sheets.ServiceAccountOptions(cfg.CredentialsFile, scope)...)
	if err != nil {
		return nil, err
	}
	return sheets.NewClient(values, cfg.SpreadsheetID), nil
}

// loadThresholds layers defaults, the YAML file and, with --with-overrides, the database.
func loadThresholds(ctx context.Context) (hub.Thresholds, map[hub.Stage]string, error) {
	thresholds := hub.DefaultThresholds()
	sources := map[hub.Stage]string{}
	if cfg.ThresholdsFile != "" {
		fromFile, err := hub.LoadThresholdsFile(cfg.ThresholdsFile)
		if err != nil {
			return nil, nil, err
		}
		thresholds = thresholds.Merge(fromFile)
		for stage := range fromFile {
			sources[stage] = "file"
		}
	}
	if !withOverrides {
		return thresholds, sources, nil
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()
	overrides, err := store.NewPostgresStore(db).ListThresholdOverrides(ctx)
	if err != nil {
		return nil, nil, err
	}
	stored := hub.Thresholds{}
	for _, o := range overrides {
		if stage, ok := hub.NormalizeStage(o.Stage); ok {
			stored[stage] = o.Days
			sources[stage] = "override"
		}
	}
	return thresholds.Merge(stored), sources, nil
}

// loadMigrations reads the migrations tab. scope is sheets.ReadWriteScope for
// commands that write back.
func loadMigrations(ctx context.Context, scope string) (*sheets.Client, sheets.Table, error) {
	client, err := openSheet(ctx, scope)
	if err != nil {
		return nil, sheets.Table{}, err
	}
	table, err := client.ReadTab(ctx, cfg.MigrationsTab)
	if err != nil {
		return nil, sheets.Table{}, err
	}
	logger.Debug("read migrations tab", zap.String("tab", cfg.MigrationsTab), zap.Int("rows", len(table.Rows)))
	return client, table, nil
}
