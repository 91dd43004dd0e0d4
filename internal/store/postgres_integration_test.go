package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func openIntegrationStore(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("HUB_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("HUB_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), db
}

func TestRefreshSessionLifecyclePostgres(t *testing.T) {
	s, _ := openIntegrationStore(t)
	ctx := context.Background()

	hash := "it-" + time.Now().Format("150405.000000")
	err := s.SaveRefreshSession(ctx, hash, Session{
		Email:       "ana@example.com",
		DisplayName: "Ana",
		Role:        "editor",
		GoogleToken: "ya29.token",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}

	session, err := s.LookupRefreshSession(ctx, hash)
	if err != nil {
		t.Fatalf("lookup session: %v", err)
	}
	if session.Email != "ana@example.com" || session.GoogleToken != "ya29.token" {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := s.RevokeRefreshSession(ctx, hash); err != nil {
		t.Fatalf("revoke session: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestDelegatedTokensPostgres(t *testing.T) {
	s, _ := openIntegrationStore(t)
	ctx := context.Background()

	jti := "jti-it-" + time.Now().Format("150405.000000")
	if err := s.SaveDelegatedToken(ctx, jti, "ya29.delegate", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save delegated token: %v", err)
	}
	token, err := s.LookupDelegatedToken(ctx, jti)
	if err != nil || token != "ya29.delegate" {
		t.Fatalf("lookup delegated token = %q, %v", token, err)
	}
	if _, err := s.LookupRefreshSession(ctx, jti); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("delegated token leaked into refresh sessions: %v", err)
	}
	if err := s.RevokeDelegatedToken(ctx, jti); err != nil {
		t.Fatalf("revoke delegated token: %v", err)
	}
	if _, err := s.LookupDelegatedToken(ctx, jti); !errors.Is(err, ErrDelegateNotFound) {
		t.Fatalf("expected ErrDelegateNotFound, got %v", err)
	}
}

func TestActivityLogBlocksUpdatePostgres(t *testing.T) {
	s, db := openIntegrationStore(t)
	ctx := context.Background()

	detail, _ := json.Marshal(map[string]string{"to": "Data Received"})
	if err := s.InsertActivity(ctx, ActivityEntry{
		MigrationID: "M-IT01",
		Action:      "advance",
		ActorEmail:  "ana@example.com",
		Detail:      detail,
	}); err != nil {
		t.Fatalf("insert activity: %v", err)
	}

	items, err := s.ListActivity(ctx, "M-IT01", 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(items) == 0 || items[0].Action != "advance" || items[0].Outcome != "ok" {
		t.Fatalf("unexpected activity %+v", items)
	}

	_, err = db.ExecContext(ctx, `UPDATE activity_log SET action='tampered' WHERE migration_id='M-IT01'`)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected PostgreSQL error, got: %v", err)
	}
	if pgErr.SQLState() != "55000" {
		t.Fatalf("expected SQLSTATE 55000, got: %s", pgErr.SQLState())
	}
}

func TestThresholdOverridesPostgres(t *testing.T) {
	s, _ := openIntegrationStore(t)
	ctx := context.Background()

	if err := s.SetThresholdOverride(ctx, "Kickoff", 4, "lead@example.com"); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if err := s.SetThresholdOverride(ctx, "Kickoff", 5, "lead@example.com"); err != nil {
		t.Fatalf("update override: %v", err)
	}
	items, err := s.ListThresholdOverrides(ctx)
	if err != nil {
		t.Fatalf("list overrides: %v", err)
	}
	found := false
	for _, item := range items {
		if item.Stage == "Kickoff" {
			found = item.Days == 5
		}
	}
	if !found {
		t.Fatalf("expected Kickoff=5 in %+v", items)
	}

	deleted, err := s.DeleteThresholdOverride(ctx, "Kickoff")
	if err != nil || !deleted {
		t.Fatalf("delete override = %v, %v", deleted, err)
	}
	deleted, err = s.DeleteThresholdOverride(ctx, "Kickoff")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v", deleted, err)
	}
}
