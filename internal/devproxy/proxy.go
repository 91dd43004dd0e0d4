// Package devproxy forwards browser requests to Zapier catch-hooks during
// local development, where the hooks' missing CORS headers block direct calls.
package devproxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"migrationhub/api/internal/zapier"
)

// Prefix is the path the proxy is mounted on; the hook name follows it.
const Prefix = "/proxy/zapier/"

// Handler maps /proxy/zapier/{hook} to the configured hook URL.
type Handler struct {
	proxies map[zapier.Hook]*httputil.ReverseProxy
	logger  *zap.Logger
}

// HookURLs resolves configured hooks. *zapier.Client satisfies it.
type HookURLs interface {
	Configured() []zapier.Hook
	URL(zapier.Hook) (string, bool)
}

// New builds one reverse proxy per configured hook.
func New(hooks HookURLs, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{proxies: map[zapier.Hook]*httputil.ReverseProxy{}, logger: logger.Named("devproxy")}
	for _, hook := range hooks.Configured() {
		raw, ok := hooks.URL(hook)
		if !ok {
			continue
		}
		target, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		h.proxies[hook] = h.newProxy(hook, target)
	}
	return h, nil
}

func (h *Handler) newProxy(hook zapier.Hook, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL = &url.URL{
				Scheme:   target.Scheme,
				Host:     target.Host,
				Path:     target.Path,
				RawQuery: target.RawQuery,
			}
			r.Out.Host = target.Host
			r.Out.Header.Del("Cookie")
			r.Out.Header.Del("Authorization")
			r.Out.Header.Del("Origin")
		},
		ModifyResponse: func(resp *http.Response) error {
			h.logger.Debug("proxied", zap.String("hook", string(hook)), zap.Int("status", resp.StatusCode))
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.logger.Warn("proxy failed", zap.String("hook", string(hook)), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"code":"UPSTREAM_FAILED","error":"zapier hook unreachable"}`))
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hook := zapier.Hook(strings.Trim(strings.TrimPrefix(r.URL.Path, Prefix), "/"))
	proxy, ok := h.proxies[hook]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"HOOK_NOT_CONFIGURED","error":"unknown or unconfigured hook"}`))
		return
	}
	proxy.ServeHTTP(w, r)
}
