package zapier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSendPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"success","id":"abc","draft":"Hi Acme"}`))
	}))
	defer srv.Close()

	client := New(map[Hook]string{HookEmailDraft: srv.URL}, 1, nil)
	resp, err := client.Send(context.Background(), HookEmailDraft, EmailDraftPayload{MigrationID: "M-0001", Message: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got["migrationId"] != "M-0001" {
		t.Fatalf("payload migrationId = %v", got["migrationId"])
	}
	if resp.Field("draft") != "Hi Acme" {
		t.Fatalf("draft = %q", resp.Field("draft"))
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestSendNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(map[Hook]string{HookGitHubSync: srv.URL}, 0, nil)
	resp, err := client.Send(context.Background(), HookGitHubSync, map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Raw != "ok" || resp.Fields != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSendHookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "zap is off", http.StatusGone)
	}))
	defer srv.Close()

	client := New(map[Hook]string{HookNewMigration: srv.URL}, 2, nil)
	_, err := client.Send(context.Background(), HookNewMigration, NewMigrationPayload{MigrationID: "M-0002"})
	var hookErr *HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("expected HookError, got %v", err)
	}
	if hookErr.Status != http.StatusGone || hookErr.Hook != HookNewMigration {
		t.Fatalf("unexpected hook error %+v", hookErr)
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := New(map[Hook]string{HookEmailDraft: "  "}, 1, nil)
	_, err := client.Send(context.Background(), HookEmailDraft, nil)
	if !errors.Is(err, ErrHookNotConfigured) {
		t.Fatalf("expected ErrHookNotConfigured, got %v", err)
	}
	if len(client.Configured()) != 0 {
		t.Fatalf("blank URLs must not count as configured")
	}
}

func TestSendHonoursCancelledContext(t *testing.T) {
	client := New(map[Hook]string{HookEmailDraft: "http://127.0.0.1:0"}, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Send(ctx, HookEmailDraft, map[string]string{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSendCapsRequestsInFlight(t *testing.T) {
	var hits atomic.Int32
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		entered <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	client := New(map[Hook]string{HookGitHubSync: srv.URL}, 1, nil)

	first := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), HookGitHubSync, map[string]string{"migrationId": "M-0001"})
		first <- err
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := client.Send(ctx, HookGitHubSync, map[string]string{"migrationId": "M-0002"})
		second <- err
	}()

	select {
	case <-entered:
		t.Fatal("second send reached the hook while the first was in flight")
	case err := <-second:
		t.Fatalf("second send returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-second; !errors.Is(err, context.Canceled) {
		t.Fatalf("waiting send error = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first send error = %v", err)
	}
	if _, err := client.Send(context.Background(), HookGitHubSync, map[string]string{}); err != nil {
		t.Fatalf("send after the slot freed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("hook hits = %d, want 2", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Errorf("truncate ascii = %q", got)
	}
	// "é" is two bytes; cutting at 2 would split it.
	got := truncate("aéb", 2)
	if got != "a…" {
		t.Errorf("truncate multibyte = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
}
