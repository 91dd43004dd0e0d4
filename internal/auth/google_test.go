package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func userInfoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestGoogleVerifierAcceptsDomainAccount(t *testing.T) {
	srv := userInfoServer(t, `{"sub":"1","email":"Ana@Example.com","email_verified":true,"hd":"example.com"}`)
	defer srv.Close()

	identity, err := NewGoogleVerifier(srv.URL, "example.com").Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if identity.Email != "ana@example.com" {
		t.Fatalf("email = %q", identity.Email)
	}
	if identity.Name != "ana@example.com" {
		t.Fatalf("name should fall back to email, got %q", identity.Name)
	}
}

func TestGoogleVerifierRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		token  string
		domain string
		want   error
	}{
		{"bad token", `{}`, "bad-token", "", ErrInvalidToken},
		{"empty token", `{}`, "", "", ErrInvalidToken},
		{"unverified", `{"email":"a@example.com","email_verified":false}`, "good-token", "", ErrEmailNotVerified},
		{"other domain", `{"email":"a@other.com","email_verified":true}`, "good-token", "example.com", ErrDomainNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := userInfoServer(t, tt.body)
			defer srv.Close()
			_, err := NewGoogleVerifier(srv.URL, tt.domain).Verify(context.Background(), tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
