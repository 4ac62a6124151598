package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/dssr/internal/shared"
)

// Route maps a path pattern to a view. Segments written {name} capture one segment; a final {name...}
// captures the rest of the path.
type Route struct {
	Name       string `toml:"name"`
	Path       string `toml:"path"`
	View       string `toml:"view"`
	Title      string `toml:"title"`
	Collection string `toml:"collection"`
	Single     bool   `toml:"single"`
}

// Location is a resolved navigation target. Route is nil when nothing matched.
type Location struct {
	Path   string
	Query  url.Values
	Route  *Route
	Params map[string]string
}

// History records navigation.
type History interface {
	Location() string
	Push(path string)
}

// MemoryHistory keeps navigation entries in memory. It is what server renders use.
type MemoryHistory struct {
	entries []string
}

func NewMemoryHistory() *MemoryHistory { return &MemoryHistory{} }

func (h *MemoryHistory) Location() string {
	if len(h.entries) == 0 {
		return "/"
	}
	return h.entries[len(h.entries)-1]
}

func (h *MemoryHistory) Push(path string) { h.entries = append(h.entries, path) }

// Len reports how many entries were pushed.
func (h *MemoryHistory) Len() int { return len(h.entries) }

// WebHistory tracks the address of a page loaded from origin, the way a browser's location bar does.
type WebHistory struct {
	origin  *url.URL
	current *url.URL
}

// NewWebHistory creates a history positioned at the root of origin.
func NewWebHistory(origin string) (*WebHistory, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid origin %q", shared.ErrInvalidInput, origin)
	}
	u = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return &WebHistory{origin: u, current: u}, nil
}

func (h *WebHistory) Location() string { return h.current.RequestURI() }

// Push resolves path against the current address. Cross-origin targets are ignored.
func (h *WebHistory) Push(path string) {
	ref, err := url.Parse(path)
	if err != nil {
		return
	}
	next := h.current.ResolveReference(ref)
	if next.Scheme != h.origin.Scheme || next.Host != h.origin.Host {
		return
	}
	next.Fragment = ""
	h.current = next
}

// URL returns the full current address.
func (h *WebHistory) URL() string { return h.current.String() }

// Router resolves history locations against a route table.
type Router struct {
	history History
	routes  []Route
}

// NewRouter validates routes and creates a router over history.
func NewRouter(history History, routes []Route) (*Router, error) {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("%w: route %q: path must start with /", shared.ErrInvalidConfig, r.Name)
		}
		if seen[r.Path] {
			return nil, fmt.Errorf("%w: duplicate route path %q", shared.ErrInvalidConfig, r.Path)
		}
		seen[r.Path] = true
	}
	return &Router{history: history, routes: routes}, nil
}

// Install makes the router available to views.
func (r *Router) Install(a *App) { a.router = r }

// Routes returns the route table.
func (r *Router) Routes() []Route { return r.routes }

// History returns the underlying history.
func (r *Router) History() History { return r.history }

// Push navigates to target, which may carry a query string.
func (r *Router) Push(target string) {
	r.history.Push(target)
}

// Current resolves the history's location.
func (r *Router) Current() Location {
	return r.Resolve(r.history.Location())
}

// Resolve matches target against the route table. Routes are tried in order.
func (r *Router) Resolve(target string) Location {
	u, err := url.Parse(target)
	if err != nil {
		return Location{Path: target}
	}

	loc := Location{Path: u.Path, Query: u.Query()}
	if loc.Path == "" {
		loc.Path = "/"
	}
	escaped := u.EscapedPath()
	for i := range r.routes {
		if params, ok := match(r.routes[i].Path, escaped); ok {
			loc.Route = &r.routes[i]
			loc.Params = params
			break
		}
	}
	return loc
}

func match(pattern, path string) (map[string]string, bool) {
	want := splitPath(pattern)
	got := splitPath(path)
	params := map[string]string{}

	for i, seg := range want {
		if name, ok := strings.CutSuffix(seg, "...}"); ok && strings.HasPrefix(name, "{") {
			params[name[1:]] = strings.Join(got[min(i, len(got)):], "/")
			return params, true
		}
		if i >= len(got) {
			return nil, false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			value, err := url.PathUnescape(got[i])
			if err != nil || value == "" {
				return nil, false
			}
			params[seg[1:len(seg)-1]] = value
			continue
		}
		if seg != got[i] {
			return nil, false
		}
	}
	if len(want) != len(got) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
