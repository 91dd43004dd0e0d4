package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrDomainNotAllowed is returned when the account is outside the allowed Workspace domain.
	ErrDomainNotAllowed = errors.New("account domain not allowed")
	// ErrEmailNotVerified is returned for an unverified Google email.
	ErrEmailNotVerified = errors.New("google email not verified")
)

// Identity is the verified owner of a Google access token.
type Identity struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Domain   string `json:"hd"`
}

// GoogleVerifier resolves browser-obtained access tokens through the OpenID userinfo endpoint.
type GoogleVerifier struct {
	userInfoURL   string
	allowedDomain string
	base          *http.Client
}

func NewGoogleVerifier(userInfoURL, allowedDomain string) *GoogleVerifier {
	return &GoogleVerifier{
		userInfoURL:   userInfoURL,
		allowedDomain: strings.ToLower(strings.TrimSpace(allowedDomain)),
		base:          &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify calls userinfo with accessToken and checks the email and domain.
func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Identity{}, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.Email == "" {
		return Identity{}, ErrInvalidToken
	}
	if !identity.Verified {
		return Identity{}, ErrEmailNotVerified
	}
	if v.allowedDomain != "" && emailDomain(identity.Email) != v.allowedDomain && strings.ToLower(identity.Domain) != v.allowedDomain {
		return Identity{}, ErrDomainNotAllowed
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}
	return identity, nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
