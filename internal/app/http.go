package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"migrationhub/api/internal/auth"
	"migrationhub/api/internal/export"
	"migrationhub/api/internal/hub"
	"migrationhub/api/internal/rbac"
	"migrationhub/api/internal/reports"
	"migrationhub/api/internal/search"
	"migrationhub/api/internal/sheets"
	"migrationhub/api/internal/store"
	"migrationhub/api/internal/zapier"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
	devProxy   http.Handler
	proxyPath  string
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger.Named("http")}
}

// WithDevProxy mounts the dev-only webhook proxy under prefix.
func (s *HTTPServer) WithDevProxy(prefix string, proxy http.Handler) *HTTPServer {
	s.proxyPath = prefix
	s.devProxy = proxy
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

// forbid writes a 403 and logs the denial.
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, current Session, action rbac.Action) {
	s.logger.Info("forbidden",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("email", current.Email),
		zap.String("role", current.Role),
		zap.String("action", string(action)),
		zap.String("path", r.URL.Path),
	)
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// allow checks the session role and writes the 403 itself when denied.
func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, current Session, action rbac.Action) bool {
	if s.service.Can(current.Role, action) {
		return true
	}
	s.forbid(w, r, current, action)
	return false
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if s.devProxy != nil && strings.HasPrefix(r.URL.Path, s.proxyPath) {
		w.Header().Del("Content-Type")
		s.devProxy.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{}
		for name, err := range s.service.Ready(ctx) {
			if err != nil {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
				checks[name] = map[string]any{"status": "error", "error": err.Error()}
				continue
			}
			checks[name] = map[string]any{"status": "ok"}
		}
		checks["search"] = map[string]any{"status": "ok", "indexed": s.service.SearchIndexHealthy()}
		hooks, archive := s.service.Integrations()
		checks["webhooks"] = map[string]any{"status": "ok", "configured": hooks}
		checks["archive"] = map[string]any{"status": "ok", "enabled": archive}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "email": nil})
			return
		}
		current, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "email": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"email":         current.Email,
			"name":          current.Name,
			"role":          current.Role,
			"delegated":     current.GoogleToken != "",
			"expiresAt":     current.ExpiresAt.Unix(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/google" {
		var body struct {
			AccessToken string `json:"accessToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.AccessToken) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "accessToken is required", nil)
			return
		}
		current, err := s.service.GoogleLogin(r.Context(), body.AccessToken)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(current))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		current, err := s.service.DevLogin(r.Context(), body.Name)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(current))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		current, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
				return
			}
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(current))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		current := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				current = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), current, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	current, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stages" {
		stages, err := s.service.Stages(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/migrations" {
		query := r.URL.Query()
		items, err := s.service.ListMigrations(r.Context(), current, MigrationFilter{
			Stage:  query.Get("stage"),
			Owner:  query.Get("owner"),
			Status: query.Get("status"),
			Query:  query.Get("q"),
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"migrations": items, "count": len(items)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/migrations" {
		if !s.allow(w, r, current, rbac.ActionWrite) {
			return
		}
		var body CreateMigrationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.CreateMigration(r.Context(), current, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "migrations" {
		s.handleMigration(w, r, current, parts[2], parts[3:])
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/customers" {
		items, err := s.service.ListCustomers(r.Context(), current)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": items, "count": len(items)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/customers" {
		if !s.allow(w, r, current, rbac.ActionWrite) {
			return
		}
		var body CreateCustomerInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		customer, err := s.service.CreateCustomer(r.Context(), current, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "customers" {
		detail, err := s.service.GetCustomer(r.Context(), current, parts[2])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/reports" {
		window, err := parseWindow(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		report, err := s.service.Reports(r.Context(), current, window)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/reports/export" {
		s.handleExport(w, r, current)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/thresholds" {
		items, err := s.service.Thresholds(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"thresholds": items})
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "thresholds" {
		if r.Method != http.MethodPut && r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		if !s.allow(w, r, current, rbac.ActionAdmin) {
			return
		}
		var (
			items []ThresholdView
			err   error
		)
		if r.Method == http.MethodPut {
			var body struct {
				Days int `json:"days"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			items, err = s.service.SetThreshold(r.Context(), current, parts[2], body.Days)
		} else {
			items, err = s.service.ClearThreshold(r.Context(), current, parts[2])
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"thresholds": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a positive integer", nil)
				return
			}
			limit = min(parsed, 100)
		}
		response, err := s.service.Search(r.Context(), current, search.Query{
			Text:       q,
			FilterType: search.ResultType(filterType),
			Limit:      limit,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/search/reindex" {
		if !s.allow(w, r, current, rbac.ActionAdmin) {
			return
		}
		indexed, err := s.service.Reindex(r.Context(), current)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "indexed": indexed})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleMigration(w http.ResponseWriter, r *http.Request, current Session, id string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			detail, err := s.service.GetMigration(ctx, current, id)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)
		case http.MethodPatch:
			if !s.allow(w, r, current, rbac.ActionWrite) {
				return
			}
			var body UpdateMigrationInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			view, err := s.service.UpdateMigration(ctx, current, id, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"migration": view})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch {
	case r.Method == http.MethodPost && rest[0] == "advance":
		if !s.allow(w, r, current, rbac.ActionWrite) {
			return
		}
		view, err := s.service.AdvanceMigration(ctx, current, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"migration": view})

	case r.Method == http.MethodPost && rest[0] == "email-draft":
		if !s.allow(w, r, current, rbac.ActionWrite) {
			return
		}
		var body DraftEmailInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.DraftEmail(ctx, current, id, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodGet && rest[0] == "drafts":
		drafts, err := s.service.ListDrafts(ctx, current, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})

	case r.Method == http.MethodPost && rest[0] == "github-sync":
		if !s.allow(w, r, current, rbac.ActionWrite) {
			return
		}
		result, err := s.service.SyncGitHub(ctx, current, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodGet && rest[0] == "activity":
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a positive integer", nil)
				return
			}
			limit = min(parsed, 500)
		}
		entries, err := s.service.Activity(ctx, id, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activity": entries})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, current Session) {
	query := r.URL.Query()
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(query.Get("format"))))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf', 'docx' or 'csv'", nil)
		return
	}
	archive := false
	if raw := strings.TrimSpace(query.Get("archive")); raw != "" {
		archive, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "archive must be true or false", nil)
			return
		}
	}
	window, err := parseWindow(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.service.ExportReport(r.Context(), current, format, window, archive)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if archive {
		writeJSON(w, http.StatusOK, map[string]any{
			"filename":   result.Filename,
			"mimeType":   result.MimeType,
			"archiveUrl": result.ArchiveURL,
		})
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// parseWindow reads the optional from/to report window.
func parseWindow(r *http.Request) (reports.Window, error) {
	var window reports.Window
	for _, bound := range []struct {
		name   string
		target *time.Time
	}{
		{name: "from", target: &window.From},
		{name: "to", target: &window.To},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(bound.name))
		if raw == "" {
			continue
		}
		parsed, ok := hub.ParseDate(raw)
		if !ok {
			return reports.Window{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", bound.name+" must be a date", map[string]any{bound.name: raw})
		}
		*bound.target = parsed
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return reports.Window{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "to must not be before from", nil)
	}
	return window, nil
}

func sessionPayload(current Session) map[string]any {
	return map[string]any{
		"token":        current.Token,
		"refreshToken": current.RefreshToken,
		"email":        current.Email,
		"name":         current.Name,
		"role":         current.Role,
		"delegated":    current.GoogleToken != "",
		"expiresAt":    current.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.logger.Error("session lookup failed", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return current, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, auth.ErrDomainNotAllowed) {
		return http.StatusForbidden, "DOMAIN_NOT_ALLOWED", "This Google account is not in an allowed domain", nil
	}
	if errors.Is(err, auth.ErrEmailNotVerified) {
		return http.StatusForbidden, "EMAIL_NOT_VERIFIED", "The Google account email is not verified", nil
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, hub.ErrUnknownStage) {
		return http.StatusUnprocessableEntity, "UNKNOWN_STAGE", err.Error(), nil
	}
	if errors.Is(err, hub.ErrNoNextStage) {
		return http.StatusUnprocessableEntity, "NO_NEXT_STAGE", "The migration has no next stage", nil
	}
	if errors.Is(err, sheets.ErrUnknownColumn) {
		return http.StatusUnprocessableEntity, "UNKNOWN_COLUMN", err.Error(), nil
	}
	if errors.Is(err, sheets.ErrRowNotFound) {
		return http.StatusNotFound, "ROW_NOT_FOUND", "Row not found", nil
	}
	if errors.Is(err, zapier.ErrHookNotConfigured) {
		return http.StatusServiceUnavailable, "WEBHOOK_NOT_CONFIGURED", "The webhook for this action is not configured", nil
	}
	var hookErr *zapier.HookError
	if errors.As(err, &hookErr) {
		return http.StatusBadGateway, "WEBHOOK_FAILED", "The webhook rejected the request", map[string]any{
			"hook":   hookErr.Hook,
			"status": hookErr.Status,
		}
	}
	if errors.Is(err, export.ErrArchiveUnavailable) {
		return http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Report archive is not configured", nil
	}
	if isExportDependencyError(err) {
		return http.StatusServiceUnavailable, "EXPORT_DEPENDENCY_MISSING", err.Error(), nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported export format", nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return http.StatusUnauthorized, "GOOGLE_TOKEN_EXPIRED", "Google authorization expired, sign in again", nil
		}
		if apiErr.Code == http.StatusForbidden {
			return http.StatusForbidden, "SHEETS_FORBIDDEN", "This Google account cannot access the spreadsheet", nil
		}
		return http.StatusBadGateway, "SHEETS_ERROR", "Google Sheets request failed", map[string]any{"status": apiErr.Code}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Upstream request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
