package devproxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"migrationhub/api/internal/zapier"
)

func TestProxyForwardsBodyToHook(t *testing.T) {
	var gotBody, gotPath, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer upstream.Close()

	h, err := New(zapier.New(map[zapier.Hook]string{zapier.HookEmailDraft: upstream.URL + "/hooks/catch/1/abc/"}, 1, nil), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/proxy/zapier/email_draft", strings.NewReader(`{"migrationId":"M-0001"}`))
	req.Header.Set("Authorization", "Bearer hub-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotBody != `{"migrationId":"M-0001"}` {
		t.Fatalf("upstream body = %q", gotBody)
	}
	if gotPath != "/hooks/catch/1/abc/" {
		t.Fatalf("upstream path = %q", gotPath)
	}
	if gotAuth != "" {
		t.Fatal("hub credentials must not reach the hook")
	}
	if !strings.Contains(rec.Body.String(), "success") {
		t.Fatalf("expected upstream body, got %s", rec.Body.String())
	}
}

func TestProxyRejectsUnknownHookAndMethod(t *testing.T) {
	h, err := New(zapier.New(map[zapier.Hook]string{zapier.HookGitHubSync: ""}, 1, nil), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/proxy/zapier/github_sync", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unconfigured hook, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy/zapier/github_sync", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	h, _ := New(zapier.New(map[zapier.Hook]string{zapier.HookNewMigration: addr}, 1, nil), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/proxy/zapier/new_migration", strings.NewReader("{}")))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
