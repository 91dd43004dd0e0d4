package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"migrationhub/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return rs, s
}

func testSession(email string, ttl time.Duration) store.Session {
	return store.Session{
		Email:       email,
		DisplayName: "Test User",
		Role:        "editor",
		GoogleToken: "ya29." + email,
		ExpiresAt:   time.Now().Add(ttl),
	}
}

func TestNewRedisStore(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", testSession("ana@example.com", 24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	session, err := rs.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if session.Email != "ana@example.com" {
		t.Errorf("expected ana@example.com, got %s", session.Email)
	}
	if session.Role != "editor" || session.GoogleToken != "ya29.ana@example.com" {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestSaveExpiredSessionFails(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.SaveRefreshSession(context.Background(), "hash", testSession("a@example.com", -time.Minute)); err == nil {
		t.Fatal("expected error for an already expired session")
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "expiring", testSession("a@example.com", time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	if _, err := rs.LookupRefreshSession(ctx, "expiring"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "to-revoke", testSession("a@example.com", time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "to-revoke"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Error("expected revoked session to be gone")
	}
	if err := rs.RevokeRefreshSession(ctx, "never-existed"); err != nil {
		t.Errorf("revoking a missing token should not error: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	_ = rs.SaveRefreshSession(ctx, "token-1", testSession("one@example.com", time.Hour))
	_ = rs.SaveRefreshSession(ctx, "token-2", testSession("two@example.com", time.Hour))
	if err := rs.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1")
	}
	second, err := rs.LookupRefreshSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 after revoke failed: %v", err)
	}
	if second.Email != "two@example.com" {
		t.Errorf("expected two@example.com, got %s", second.Email)
	}
}

func TestAccessTokenRevocation(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.RevokeAccessToken(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}
	revoked, err := rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v, %v", revoked, err)
	}

	s.FastForward(2 * time.Minute)
	revoked, err = rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("revocation should lapse with the token, got %v, %v", revoked, err)
	}

	if err := rs.RevokeAccessToken(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("expired token revocation should be a no-op: %v", err)
	}
}

func TestDelegatedTokenKeyspace(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveDelegatedToken(ctx, "jti-1", "ya29.delegate", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveDelegatedToken failed: %v", err)
	}
	token, err := rs.LookupDelegatedToken(ctx, "jti-1")
	if err != nil || token != "ya29.delegate" {
		t.Fatalf("LookupDelegatedToken = %q, %v", token, err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "jti-1"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("delegated token must not be readable as a refresh session, got %v", err)
	}

	if err := rs.RevokeDelegatedToken(ctx, "jti-1"); err != nil {
		t.Fatalf("RevokeDelegatedToken failed: %v", err)
	}
	if _, err := rs.LookupDelegatedToken(ctx, "jti-1"); !errors.Is(err, store.ErrDelegateNotFound) {
		t.Fatalf("expected ErrDelegateNotFound after revoke, got %v", err)
	}

	_ = rs.SaveDelegatedToken(ctx, "jti-2", "ya29.short", time.Now().Add(time.Minute))
	s.FastForward(2 * time.Minute)
	if _, err := rs.LookupDelegatedToken(ctx, "jti-2"); !errors.Is(err, store.ErrDelegateNotFound) {
		t.Fatalf("delegated token should expire with the access token, got %v", err)
	}
	if err := rs.SaveDelegatedToken(ctx, "jti-3", "ya29.x", time.Now().Add(-time.Second)); err == nil {
		t.Fatal("expected an error for an already expired access token")
	}
}
