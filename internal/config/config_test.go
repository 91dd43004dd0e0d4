package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("HUB_MIGRATIONS_TAB", "")
	t.Setenv("HUB_ACCESS_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Fatalf("Addr = %q, want :8787", cfg.Addr)
	}
	if cfg.MigrationsTab != "MH_View_Migrations" {
		t.Fatalf("MigrationsTab = %q", cfg.MigrationsTab)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.DevLogin {
		t.Fatal("DevLogin should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HUB_ADMIN_EMAILS", " Lead@Example.com, ,ops@example.com")
	t.Setenv("HUB_DEV_LOGIN", "true")
	t.Setenv("ZAPIER_MAX_IN_FLIGHT", "not-a-number")

	cfg := Load()
	want := []string{"lead@example.com", "ops@example.com"}
	if !reflect.DeepEqual(cfg.AdminEmails, want) {
		t.Fatalf("AdminEmails = %v, want %v", cfg.AdminEmails, want)
	}
	if !cfg.DevLogin {
		t.Fatal("expected DevLogin=true")
	}
	if cfg.ZapierMaxInFlight != 4 {
		t.Fatalf("ZapierMaxInFlight = %d, want fallback 4", cfg.ZapierMaxInFlight)
	}
}
