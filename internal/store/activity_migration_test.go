package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestActivityLogMigrationUsesBlockingTriggers(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0003_activity_log_immutability.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	for _, snippet := range []string{
		"activity_log_immutable_guard",
		"RAISE EXCEPTION",
		"CREATE TRIGGER trg_activity_log_block_update",
		"CREATE TRIGGER trg_activity_log_block_delete",
	} {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
}

func TestThresholdOverridesRejectNonPositiveDays(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0004_stage_threshold_overrides.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(sqlBytes), "CHECK (days > 0)") {
		t.Fatal("expected a positive-days check constraint")
	}
}
