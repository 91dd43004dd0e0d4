package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"migrationhub/api/internal/auth"
	"migrationhub/api/internal/config"
	"migrationhub/api/internal/export"
	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/rbac"
	"migrationhub/api/internal/search"
	"migrationhub/api/internal/session"
	"migrationhub/api/internal/sheets"
	"migrationhub/api/internal/store"
	"migrationhub/api/internal/util"
	"migrationhub/api/internal/zapier"
)

type Session struct {
	Token        string
	RefreshToken string
	Email        string
	Name         string
	Role         string
	GoogleToken  string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the Postgres side of the hub: audit trail and threshold overrides.
type dataStore interface {
	InsertActivity(context.Context, store.ActivityEntry) error
	ListActivity(context.Context, string, int) ([]store.ActivityEntry, error)
	ListThresholdOverrides(context.Context) ([]store.ThresholdOverride, error)
	SetThresholdOverride(context.Context, string, int, string) error
	DeleteThresholdOverride(context.Context, string) (bool, error)
	Ping(context.Context) error
}

// sessionStore holds refresh sessions, the Google tokens delegated to access
// tokens and the access-token denylist. Postgres by default, Redis when configured.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, store.Session) error
	LookupRefreshSession(context.Context, string) (store.Session, error)
	RevokeRefreshSession(context.Context, string) error
	SaveDelegatedToken(context.Context, string, string, time.Time) error
	LookupDelegatedToken(context.Context, string) (string, error)
	RevokeDelegatedToken(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type identityVerifier interface {
	Verify(context.Context, string) (auth.Identity, error)
}

type hookSender interface {
	Send(context.Context, zapier.Hook, any) (zapier.Response, error)
	Configured() []zapier.Hook
}

type reportExporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
	ArchiveEnabled() bool
}

// userValuesFunc builds a Sheets client acting as the holder of a Google access token.
type userValuesFunc func(ctx context.Context, accessToken string) (sheets.ValuesAPI, error)

// Deps are the collaborators wired by cmd/api. Only Store is required.
type Deps struct {
	Store    *store.PostgresStore
	Sessions *session.RedisStore
	Values   sheets.ValuesAPI
	Verifier *auth.GoogleVerifier
	Hooks    *zapier.Client
	Search   *search.Service
	Export   *export.Service
	Logger   *zap.Logger
}

type Service struct {
	cfg        config.Config
	store      dataStore
	sessions   sessionStore
	values     sheets.ValuesAPI
	userValues userValuesFunc
	verifier   identityVerifier
	hooks      hookSender
	search     *search.Service
	exporter   reportExporter
	directory  rbac.Directory
	thresholds hub.Thresholds
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg config.Config, deps Deps) (*Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	thresholds := hub.DefaultThresholds()
	if cfg.ThresholdsFile != "" {
		fromFile, err := hub.LoadThresholdsFile(cfg.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		thresholds = thresholds.Merge(fromFile)
	}

	s := &Service{
		cfg:        cfg,
		values:     deps.Values,
		userValues: googleUserValues,
		hooks:      deps.Hooks,
		search:     deps.Search,
		directory:  rbac.NewDirectory(cfg.AdminEmails, cfg.EditorEmails),
		thresholds: thresholds,
		logger:     logger.Named("app"),
		now:        time.Now,
	}
	if deps.Store != nil {
		s.store = deps.Store
		s.sessions = deps.Store
	}
	if deps.Sessions != nil {
		s.sessions = deps.Sessions
	}
	if s.sessions == nil {
		return nil, errors.New("app: a session store is required")
	}
	if deps.Verifier != nil {
		s.verifier = deps.Verifier
	}
	if deps.Export != nil {
		s.exporter = deps.Export
	}
	if s.hooks == nil {
		s.hooks = zapier.New(nil, cfg.ZapierMaxInFlight, logger)
	}
	if s.search == nil {
		s.search = search.NewService(nil, logger)
	}
	return s, nil
}

func googleUserValues(ctx context.Context, accessToken string) (sheets.ValuesAPI, error) {
	return sheets.NewGoogleValuesForToken(ctx, accessToken, nil)
}

// GoogleLogin exchanges a Google access token for a hub session. The Google token
// is kept with the session so Sheets calls run as the user.
func (s *Service) GoogleLogin(ctx context.Context, accessToken string) (Session, error) {
	if s.verifier == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "GOOGLE_LOGIN_UNAVAILABLE", "Google sign-in is not configured", nil)
	}
	identity, err := s.verifier.Verify(ctx, strings.TrimSpace(accessToken))
	if err != nil {
		return Session{}, err
	}
	role := s.directory.RoleFor(identity.Email)
	s.logger.Info("google login", zap.String("email", identity.Email), zap.String("role", string(role)))
	return s.issueSession(ctx, store.Session{
		Email:       identity.Email,
		DisplayName: identity.Name,
		Role:        string(role),
		GoogleToken: strings.TrimSpace(accessToken),
	})
}

// DevLogin signs a user in by name with the server's Sheets credentials.
func (s *Service) DevLogin(ctx context.Context, name string) (Session, error) {
	if !s.cfg.DevLogin {
		return Session{}, domainError(http.StatusForbidden, "DEV_LOGIN_DISABLED", "Dev login is disabled", nil)
	}
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	email := strings.ToLower(userName)
	if !strings.Contains(email, "@") {
		email = strings.Join(strings.Fields(email), ".") + "@dev.local"
	}
	return s.issueSession(ctx, store.Session{
		Email:       email,
		DisplayName: userName,
		Role:        string(s.directory.RoleFor(email)),
	})
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	existing, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	existing.Role = string(s.directory.RoleFor(existing.Email))
	return s.issueSession(ctx, existing)
}

func (s *Service) issueSession(ctx context.Context, user store.Session) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	delegate := user.GoogleToken != ""

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:      user.Email,
		Name:     user.DisplayName,
		Role:     user.Role,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
		Iat:      now.Unix(),
		Delegate: delegate,
	})
	if err != nil {
		return Session{}, err
	}

	if delegate {
		if err := s.sessions.SaveDelegatedToken(ctx, jti, user.GoogleToken, expiresAt); err != nil {
			return Session{}, err
		}
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshSession := user
	refreshSession.ExpiresAt = now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), refreshSession); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		Email:        user.Email,
		Name:         user.DisplayName,
		Role:         user.Role,
		GoogleToken:  user.GoogleToken,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	current := Session{
		Token:     token,
		Email:     claims.Sub,
		Name:      claims.Name,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}
	if claims.Delegate {
		googleToken, err := s.sessions.LookupDelegatedToken(ctx, claims.JTI)
		if err != nil {
			if errors.Is(err, store.ErrDelegateNotFound) {
				return Session{}, auth.ErrInvalidToken
			}
			return Session{}, err
		}
		current.GoogleToken = googleToken
	}
	return current, nil
}

func (s *Service) Logout(ctx context.Context, current Session, refreshToken string) error {
	if current.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, current.JTI, current.ExpiresAt)
		if current.GoogleToken != "" {
			_ = s.sessions.RevokeDelegatedToken(ctx, current.JTI)
		}
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Ready reports each dependency /api/ready checks. A nil error means healthy.
func (s *Service) Ready(ctx context.Context) map[string]error {
	checks := map[string]error{}
	if s.store == nil {
		checks["database"] = errors.New("database not configured")
	} else {
		checks["database"] = s.store.Ping(ctx)
	}
	if s.values == nil || s.cfg.SpreadsheetID == "" {
		checks["sheets"] = errors.New("server credentials not configured")
	} else {
		checks["sheets"] = sheets.NewClient(s.values, s.cfg.SpreadsheetID).Ping(ctx)
	}
	return checks
}

// Integrations reports the optional outbound wiring: which webhooks have a URL and whether
// exports can be archived.
func (s *Service) Integrations() (hooks []zapier.Hook, archive bool) {
	hooks = s.hooks.Configured()
	if s.exporter != nil {
		archive = s.exporter.ArchiveEnabled()
	}
	return hooks, archive
}

// SearchIndexHealthy is false when search falls back to scanning rows.
func (s *Service) SearchIndexHealthy() bool {
	return s.search.IndexHealthy()
}

// sheetsFor picks the credentials for a request: the user's Google token when the
// session carries one, else the server's.
func (s *Service) sheetsFor(ctx context.Context, current Session) (*sheets.Client, error) {
	if s.cfg.SpreadsheetID == "" {
		return nil, domainError(http.StatusServiceUnavailable, "SHEETS_UNAVAILABLE", "No spreadsheet is configured", nil)
	}
	if current.GoogleToken != "" {
		api, err := s.userValues(ctx, current.GoogleToken)
		if err != nil {
			return nil, err
		}
		return sheets.NewClient(api, s.cfg.SpreadsheetID), nil
	}
	if s.values == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SHEETS_UNAVAILABLE", "Server Sheets credentials are not configured", nil)
	}
	return sheets.NewClient(s.values, s.cfg.SpreadsheetID), nil
}

func (s *Service) sheetsContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SheetsTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.SheetsTimeout)
}

// readTabs fetches several tabs concurrently, returned in the order asked.
func (s *Service) readTabs(ctx context.Context, client *sheets.Client, tabs ...string) ([]sheets.Table, error) {
	ctx, cancel := s.sheetsContext(ctx)
	defer cancel()
	tables := make([]sheets.Table, len(tabs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, tab := range tabs {
		group.Go(func() error {
			table, err := client.ReadTab(groupCtx, tab)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// effectiveThresholds returns the SLA table in force: defaults, the YAML file, then stored
// overrides.
func (s *Service) effectiveThresholds(ctx context.Context) (hub.Thresholds, []store.ThresholdOverride, error) {
	if s.store == nil {
		return s.thresholds, nil, nil
	}
	overrides, err := s.store.ListThresholdOverrides(ctx)
	if err != nil {
		return nil, nil, err
	}
	stored := hub.Thresholds{}
	for _, o := range overrides {
		if stage, ok := hub.NormalizeStage(o.Stage); ok {
			stored[stage] = o.Days
		}
	}
	return s.thresholds.Merge(stored), overrides, nil
}

// record appends to the activity log. Failures are logged and never fail the request.
func (s *Service) record(ctx context.Context, actor Session, migrationID, action, outcome string, detail any) {
	if s.store == nil {
		return
	}
	var raw json.RawMessage
	if detail != nil {
		encoded, err := json.Marshal(detail)
		if err != nil {
			s.logger.Warn("activity detail not encodable", zap.String("action", action), zap.Error(err))
		} else {
			raw = encoded
		}
	}
	entry := store.ActivityEntry{
		MigrationID: migrationID,
		Action:      action,
		ActorEmail:  actor.Email,
		Outcome:     outcome,
		Detail:      raw,
	}
	if err := s.store.InsertActivity(ctx, entry); err != nil {
		s.logger.Warn("activity not recorded",
			zap.String("action", action),
			zap.String("migration_id", migrationID),
			zap.Error(err),
		)
	}
}

func (s *Service) Activity(ctx context.Context, migrationID string, limit int) ([]store.ActivityEntry, error) {
	if s.store == nil {
		return []store.ActivityEntry{}, nil
	}
	entries, err := s.store.ListActivity(ctx, strings.ToUpper(strings.TrimSpace(migrationID)), limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if entries == nil {
		entries = []store.ActivityEntry{}
	}
	return entries, nil
}

func (s *Service) today() string {
	return hub.FormatDate(s.now().UTC())
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
