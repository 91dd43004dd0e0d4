package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, session Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, email, display_name, role, google_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO UPDATE SET
			email=EXCLUDED.email,
			display_name=EXCLUDED.display_name,
			role=EXCLUDED.role,
			google_token=EXCLUDED.google_token,
			expires_at=EXCLUDED.expires_at,
			revoked_at=NULL
	`, tokenHash, session.Email, session.DisplayName, session.Role, session.GoogleToken, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Session, error) {
	const query = `
		SELECT email, display_name, role, google_token, expires_at
		FROM refresh_sessions
		WHERE token_hash = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
	`
	var session Session
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.Email,
		&session.DisplayName,
		&session.Role,
		&session.GoogleToken,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	if session.Role == "" {
		session.Role = "viewer"
	}
	return session, nil
}

// SaveDelegatedToken holds the Google token behind one access token until exp.
// Delegated tokens live apart from refresh sessions so a jti can never be
// redeemed as a refresh token.
func (s *PostgresStore) SaveDelegatedToken(ctx context.Context, jti, googleToken string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delegated_tokens (jti, google_token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO UPDATE SET google_token=EXCLUDED.google_token, expires_at=EXCLUDED.expires_at
	`, jti, googleToken, exp)
	if err != nil {
		return fmt.Errorf("save delegated token: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupDelegatedToken(ctx context.Context, jti string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		SELECT google_token FROM delegated_tokens WHERE jti=$1 AND expires_at > NOW()
	`, jti).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrDelegateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup delegated token: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) RevokeDelegatedToken(ctx context.Context, jti string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM delegated_tokens WHERE jti=$1`, jti); err != nil {
		return fmt.Errorf("revoke delegated token: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// PurgeExpired drops refresh sessions, revocations and delegated tokens past their expiry.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`DELETE FROM refresh_sessions WHERE expires_at < NOW()`,
		`DELETE FROM revoked_access_tokens WHERE expires_at < NOW()`,
		`DELETE FROM delegated_tokens WHERE expires_at < NOW()`,
	} {
		res, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return total, fmt.Errorf("purge expired sessions: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *PostgresStore) InsertActivity(ctx context.Context, entry ActivityEntry) error {
	detail := entry.Detail
	if len(detail) == 0 {
		detail = json.RawMessage(`{}`)
	}
	outcome := entry.Outcome
	if outcome == "" {
		outcome = "ok"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (migration_id, action, actor_email, outcome, detail)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, entry.MigrationID, entry.Action, entry.ActorEmail, outcome, string(detail))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListActivity returns newest entries first; an empty migrationID lists everything.
func (s *PostgresStore) ListActivity(ctx context.Context, migrationID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, migration_id, action, actor_email, outcome, detail, created_at
		FROM activity_log
		WHERE migration_id=$1 OR $1=''
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, migrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEntry, 0)
	for rows.Next() {
		var item ActivityEntry
		var detail []byte
		if err := rows.Scan(
			&item.ID,
			&item.MigrationID,
			&item.Action,
			&item.ActorEmail,
			&item.Outcome,
			&detail,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		item.Detail = json.RawMessage(detail)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListThresholdOverrides(ctx context.Context) ([]ThresholdOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, days, updated_by, updated_at
		FROM stage_threshold_overrides
		ORDER BY stage
	`)
	if err != nil {
		return nil, fmt.Errorf("list threshold overrides: %w", err)
	}
	defer rows.Close()

	items := make([]ThresholdOverride, 0)
	for rows.Next() {
		var item ThresholdOverride
		if err := rows.Scan(&item.Stage, &item.Days, &item.UpdatedBy, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan threshold override: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threshold overrides: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetThresholdOverride(ctx context.Context, stage string, days int, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stage_threshold_overrides (stage, days, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (stage) DO UPDATE SET days=EXCLUDED.days, updated_by=EXCLUDED.updated_by, updated_at=NOW()
	`, stage, days, updatedBy)
	if err != nil {
		return fmt.Errorf("set threshold override: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteThresholdOverride(ctx context.Context, stage string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stage_threshold_overrides WHERE stage=$1`, stage)
	if err != nil {
		return false, fmt.Errorf("delete threshold override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete threshold override: %w", err)
	}
	return n > 0, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
