package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/shared"
)

// BackendProxy forwards the backend's own routes to the Directus instance.
type BackendProxy struct {
	target *url.URL
	routes []string
	proxy  *httputil.ReverseProxy
}

// NewBackendProxy proxies each reserved path and its subtree to target.
func NewBackendProxy(target string, reserved []string, logger *log.Logger) (*BackendProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: backend url %q", shared.ErrInvalidConfig, target)
	}

	if logger == nil {
		logger = log.Default()
	}

	p := &BackendProxy{target: u}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			loggerFrom(r, logger).Error("backend proxy error", "path", r.URL.Path, "error", err)
			http.Error(w, "backend unavailable", http.StatusBadGateway)
		},
	}

	seen := map[string]bool{}
	for _, r := range reserved {
		if r == "" || r == "/" {
			continue
		}
		for _, pattern := range []string{r, r + "/"} {
			if !seen[pattern] {
				seen[pattern] = true
				p.routes = append(p.routes, pattern)
			}
		}
	}
	return p, nil
}

// Target is the backend base URL.
func (p *BackendProxy) Target() *url.URL { return p.target }

// Routes implements [Handler].
func (p *BackendProxy) Routes() []string { return p.routes }

func (p *BackendProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

func loggerFrom(r *http.Request, fallback *log.Logger) *log.Logger {
	if l, ok := r.Context().Value(log.ContextKey).(*log.Logger); ok {
		return l
	}
	return fallback
}
