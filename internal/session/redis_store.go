// Package session provides session storage backends for refresh tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"migrationhub/api/internal/store"
)

// tokenData is the JSON stored under each refresh key.
type tokenData struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	GoogleToken string    `json:"google_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore keeps refresh sessions and access-token revocations in Redis,
// letting both expire with their TTL.
type RedisStore struct {
	client         *redis.Client
	prefix         string
	revokedPrefix  string
	delegatePrefix string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:         client,
		prefix:         "hub:refresh:",
		revokedPrefix:  "hub:revoked:",
		delegatePrefix: "hub:delegate:",
	}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, session store.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save refresh token: session already expired")
	}

	jsonData, err := json.Marshal(tokenData{
		Email:       session.Email,
		DisplayName: session.DisplayName,
		Role:        session.Role,
		GoogleToken: session.GoogleToken,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	if err := s.client.Set(ctx, s.key(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.Session, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return store.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return store.Session{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	if data.Role == "" {
		data.Role = "viewer"
	}

	return store.Session{
		Email:       data.Email,
		DisplayName: data.DisplayName,
		Role:        data.Role,
		GoogleToken: data.GoogleToken,
		ExpiresAt:   data.ExpiresAt,
	}, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// SaveDelegatedToken keeps the Google token for one access token under its own
// prefix, expiring with the access token.
func (s *RedisStore) SaveDelegatedToken(ctx context.Context, jti, googleToken string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return fmt.Errorf("save delegated token: access token already expired")
	}
	if err := s.client.Set(ctx, s.delegatePrefix+jti, googleToken, ttl).Err(); err != nil {
		return fmt.Errorf("save delegated token: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupDelegatedToken(ctx context.Context, jti string) (string, error) {
	token, err := s.client.Get(ctx, s.delegatePrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrDelegateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup delegated token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) RevokeDelegatedToken(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, s.delegatePrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke delegated token: %w", err)
	}
	return nil
}

// RevokeAccessToken remembers jti until the token would have expired anyway.
func (s *RedisStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
