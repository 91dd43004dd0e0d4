// Package zapier posts JSON payloads to Zapier catch-hooks.
package zapier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Hook string

const (
	HookNewMigration Hook = "new_migration"
	HookEmailDraft   Hook = "email_draft"
	HookGitHubSync   Hook = "github_sync"
)

// ErrHookNotConfigured is returned for a hook without a URL.
var ErrHookNotConfigured = errors.New("webhook not configured")

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
	maxResponse    = 1 << 20
)

// HookError is a non-2xx response from the hook.
type HookError struct {
	Hook   Hook
	Status int
	Body   string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("webhook %s returned %d: %s", e.Hook, e.Status, e.Body)
}

// Response is what the hook answered. Fields holds the decoded JSON object when the body
// was one.
type Response struct {
	Status int            `json:"status"`
	Fields map[string]any `json:"fields,omitempty"`
	Raw    string         `json:"raw,omitempty"`
}

// Field returns a string field from the response body, or "".
func (r Response) Field(key string) string {
	if v, ok := r.Fields[key].(string); ok {
		return v
	}
	return ""
}

type Client struct {
	hooks  map[Hook]string
	http   *http.Client
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// New builds a client. maxInFlight caps concurrent outbound posts; <= 0 means 4.
func New(hooks map[Hook]string, maxInFlight int, logger *zap.Logger) *Client {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clean := make(map[Hook]string, len(hooks))
	for hook, url := range hooks {
		if url = strings.TrimSpace(url); url != "" {
			clean[hook] = url
		}
	}
	return &Client{
		hooks:  clean,
		http:   &http.Client{Timeout: defaultTimeout},
		sem:    semaphore.NewWeighted(int64(maxInFlight)),
		logger: logger,
	}
}

// URL returns the configured URL for hook.
func (c *Client) URL(hook Hook) (string, bool) {
	url, ok := c.hooks[hook]
	return url, ok
}

// Configured lists hooks that have a URL, sorted.
func (c *Client) Configured() []Hook {
	out := make([]Hook, 0, len(c.hooks))
	for hook := range c.hooks {
		out = append(out, hook)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Send posts payload as JSON. There is no retry; callers surface the error.
func (c *Client) Send(ctx context.Context, hook Hook, payload any) (Response, error) {
	url, ok := c.hooks[hook]
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrHookNotConfigured, hook)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s payload: %w", hook, err)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Response{}, fmt.Errorf("webhook %s: %w", hook, err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build %s request: %w", hook, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("webhook failed", zap.String("hook", string(hook)), zap.Error(err))
		return Response{}, fmt.Errorf("post %s: %w", hook, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", hook, err)
	}
	c.logger.Info("webhook delivered",
		zap.String("hook", string(hook)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{Status: resp.StatusCode}, &HookError{Hook: hook, Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	out := Response{Status: resp.StatusCode}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		out.Fields = fields
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		out.Raw = truncate(text, maxErrorBody)
	}
	return out, nil
}

// truncate keeps at most n bytes of s, cutting on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
