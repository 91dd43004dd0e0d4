package store

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or revoked refresh sessions.
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrDelegateNotFound is returned when no Google token is held for an access token.
	ErrDelegateNotFound = errors.New("delegated token not found")
)

// Session is the state behind a refresh token. GoogleToken is empty for
// dev logins, which fall back to the server's Sheets credentials.
type Session struct {
	Email       string
	DisplayName string
	Role        string
	GoogleToken string
	ExpiresAt   time.Time
}

type ActivityEntry struct {
	ID          int64           `json:"id"`
	MigrationID string          `json:"migrationId,omitempty"`
	Action      string          `json:"action"`
	ActorEmail  string          `json:"actor"`
	Outcome     string          `json:"outcome"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ThresholdOverride struct {
	Stage     string    `json:"stage"`
	Days      int       `json:"days"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}
