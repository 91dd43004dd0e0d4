package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var migrationsDir = filepath.Join("..", "..", "db", "migrations")

func TestMigrationFilesPairUpAndDown(t *testing.T) {
	ups, err := listMigrations(migrationsDir, "up")
	if err != nil {
		t.Fatalf("list up migrations: %v", err)
	}
	downs, err := listMigrations(migrationsDir, "down")
	if err != nil {
		t.Fatalf("list down migrations: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations discovered")
	}
	if len(ups) != len(downs) {
		t.Fatalf("%d up files but %d down files", len(ups), len(downs))
	}

	for i, up := range ups {
		if up.Number != i+1 {
			t.Fatalf("migration numbers must be contiguous from 1: got %d at position %d", up.Number, i)
		}
		down := downs[len(downs)-1-i]
		if down.Number != up.Number {
			t.Fatalf("%s has no matching down file", up.Name)
		}
		if strings.TrimSuffix(up.Name, ".up.sql") != strings.TrimSuffix(down.Name, ".down.sql") {
			t.Errorf("name mismatch: %s vs %s", up.Name, down.Name)
		}
		body, err := os.ReadFile(up.Path)
		if err != nil {
			t.Fatalf("read %s: %v", up.Name, err)
		}
		if strings.TrimSpace(string(body)) == "" {
			t.Errorf("%s is empty", up.Name)
		}
	}
}

func TestListMigrationsOrdersByDirection(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0010_b.up.sql", "0002_a.up.sql", "0002_a.down.sql", "0010_b.down.sql", "notes.txt", "3_Bad-name.up.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ups, err := listMigrations(dir, "up")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 2 || ups[0].Name != "0002_a.up.sql" || ups[1].Name != "0010_b.up.sql" {
		t.Errorf("unexpected up order: %+v", ups)
	}

	downs, err := listMigrations(dir, "down")
	if err != nil {
		t.Fatal(err)
	}
	if len(downs) != 2 || downs[0].Number != 10 || downs[1].Number != 2 {
		t.Errorf("unexpected down order: %+v", downs)
	}
}
