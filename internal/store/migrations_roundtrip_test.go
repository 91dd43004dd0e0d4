package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("HUB_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("HUB_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	pending, err := PendingMigrations(ctx, db, migrationsDir)
	if err != nil {
		t.Fatalf("pending migrations: %v", err)
	}
	applied, err := ApplyMigrations(ctx, db, migrationsDir)
	if err != nil {
		t.Fatalf("apply up migrations: %v", err)
	}
	if len(applied) == 0 || len(applied) != len(pending) {
		t.Fatalf("applied %v, expected %v", applied, pending)
	}

	if again, err := ApplyMigrations(ctx, db, migrationsDir); err != nil || len(again) != 0 {
		t.Fatalf("re-apply = %v, %v; want nothing pending", again, err)
	}

	downs, err := listMigrations(migrationsDir, "down")
	if err != nil {
		t.Fatalf("list down migrations: %v", err)
	}
	for _, down := range downs {
		body, err := os.ReadFile(down.Path)
		if err != nil {
			t.Fatalf("read %s: %v", down.Name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			t.Fatalf("apply %s: %v", down.Name, err)
		}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}

	if _, err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations after down: %v", err)
	}
}
