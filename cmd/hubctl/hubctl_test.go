package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"migrationhub/api/internal/hub"
)

func init() {
	color.NoColor = true
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleMigrations() []hub.Migration {
	return []hub.Migration{
		{ID: "M-0001", CustomerName: "Acme", Stage: hub.StageWaitingOnData, OwnerEmail: "ana@example.com",
			StageDates: map[hub.Stage]time.Time{hub.StageWaitingOnData: date("2026-03-01")}},
		{ID: "M-0002", CustomerName: "Globex", Stage: hub.StageMapping, OwnerEmail: "ben@example.com",
			StageDates: map[hub.Stage]time.Time{hub.StageMapping: date("2026-03-08")}},
		{ID: "M-0003", CustomerName: "Initech", RawStage: "Limbo", OwnerEmail: "ana@example.com"},
	}
}

func rowIDs(rows []migrationRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.migration.ID)
	}
	return ids
}

func TestFilterMigrations(t *testing.T) {
	now := date("2026-03-10")
	thresholds := hub.DefaultThresholds()

	all := filterMigrations(sampleMigrations(), thresholds, now, "", "", "")
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	if all[0].evaluation.Status != hub.StatusBehind {
		t.Errorf("M-0001 status = %q, want Behind", all[0].evaluation.Status)
	}

	behind := filterMigrations(sampleMigrations(), thresholds, now, "", "", "BEHIND")
	if len(behind) != 1 || behind[0].migration.ID != "M-0001" {
		t.Errorf("status filter returned %+v", behind)
	}

	owned := filterMigrations(sampleMigrations(), thresholds, now, "", " Ana@example.com", "")
	if diff := cmp.Diff([]string{"M-0001", "M-0003"}, rowIDs(owned)); diff != "" {
		t.Errorf("owner filter mismatch (-want +got):\n%s", diff)
	}

	staged := filterMigrations(sampleMigrations(), thresholds, now, hub.StageMapping, "", "")
	if len(staged) != 1 || staged[0].migration.ID != "M-0002" {
		t.Errorf("stage filter returned %+v", staged)
	}
}

func TestPrintMigrations(t *testing.T) {
	var out bytes.Buffer
	printMigrations(&out, filterMigrations(sampleMigrations(), hub.DefaultThresholds(), date("2026-03-10"), "", "", ""))
	text := out.String()
	for _, want := range []string{"M-0001", "9/7", "Behind", "Limbo", "Unknown"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	out.Reset()
	printMigrations(&out, nil)
	if !strings.Contains(out.String(), "No migrations match") {
		t.Errorf("unexpected empty output: %q", out.String())
	}
}

func TestReportWindow(t *testing.T) {
	window, err := reportWindow("2026-01-01", "3/31/2026")
	if err != nil {
		t.Fatalf("reportWindow() error = %v", err)
	}
	if !window.From.Equal(date("2026-01-01")) || !window.To.Equal(date("2026-03-31")) {
		t.Errorf("unexpected window: %+v", window)
	}

	if _, err := reportWindow("soon", ""); err == nil {
		t.Error("expected an error for a bad --from")
	}
	if _, err := reportWindow("2026-03-01", "2026-02-01"); err == nil {
		t.Error("expected an error when --to precedes --from")
	}
}

func TestPrintThresholds(t *testing.T) {
	var out bytes.Buffer
	thresholds := hub.DefaultThresholds().Merge(hub.Thresholds{hub.StageReview: 4})
	printThresholds(&out, thresholds, map[hub.Stage]string{hub.StageReview: "file"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected header plus 6 stages, got %d lines:\n%s", len(lines), out.String())
	}
	var review string
	for _, line := range lines {
		if strings.HasPrefix(line, string(hub.StageReview)) {
			review = line
		}
	}
	if fields := strings.Fields(strings.TrimPrefix(review, string(hub.StageReview))); len(fields) != 3 || fields[0] != "4" || fields[1] != "4" || fields[2] != "file" {
		t.Errorf("unexpected review line: %q", review)
	}
	if strings.Contains(out.String(), string(hub.StageComplete)) {
		t.Error("complete is not an active stage")
	}
}
