package ssr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/app"
	"github.com/desertthunder/dssr/internal/shared"
)

// Options configures an [Interceptor].
type Options struct {
	// Reserved paths are never rendered. Membership is exact.
	Reserved  []string
	Templates TemplateProvider
	Modules   RenderModuleProvider
	Manifest  Manifest
	Cookie    CookieConfig
	Env       app.Env
	Logger    *log.Logger
	// Now defaults to [time.Now].
	Now func() time.Time
}

// Interceptor renders pages for GET requests outside the reserved paths.
type Interceptor struct {
	reserved  map[string]bool
	templates TemplateProvider
	modules   RenderModuleProvider
	manifest  Manifest
	cookie    CookieConfig
	env       app.Env
	logger    *log.Logger
	now       func() time.Time
}

// New creates an interceptor.
func New(opts Options) *Interceptor {
	reserved := make(map[string]bool, len(opts.Reserved))
	for _, p := range opts.Reserved {
		reserved[p] = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	manifest := opts.Manifest
	if manifest == nil {
		manifest = Manifest{}
	}

	return &Interceptor{
		reserved:  reserved,
		templates: opts.Templates,
		modules:   opts.Modules,
		manifest:  manifest,
		cookie:    opts.Cookie,
		env:       opts.Env,
		logger:    logger,
		now:       now,
	}
}

// Reserved lists the reserved paths in sorted order.
func (i *Interceptor) Reserved() []string {
	paths := make([]string, 0, len(i.reserved))
	for p := range i.reserved {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Passthrough reports whether r is left to the next handler.
func (i *Interceptor) Passthrough(r *http.Request) bool {
	return r.Method != http.MethodGet || i.reserved[r.URL.Path]
}

// Middleware renders or delegates to next.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.Passthrough(r) {
			next.ServeHTTP(w, r)
			return
		}
		i.ServeHTTP(w, r)
	})
}

// ServeHTTP renders r unconditionally.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, cookie, err := i.render(r.Context(), w, r)
	if err != nil {
		if fixer, ok := i.modules.(StacktraceFixer); ok && i.env.IsDev() {
			err = fixer.FixStacktrace(err)
		}
		i.loggerFor(r.Context()).Error("global-error", "url", r.URL.RequestURI(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, cookie)
	w.Header().Del("Content-Security-Policy")
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, page)
}

// loggerFor prefers the request logger installed by the server's logging middleware.
func (i *Interceptor) loggerFor(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(log.ContextKey).(*log.Logger); ok {
		return l
	}
	return i.logger
}

// render runs template load through assembly. Panics are returned as errors carrying the stack.
func (i *Interceptor) render(ctx context.Context, w http.ResponseWriter, r *http.Request) (page string, cookie *http.Cookie, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", shared.ErrRender, rec, debug.Stack())
		}
	}()

	url := r.URL.RequestURI()

	if i.templates == nil || i.modules == nil {
		return "", nil, fmt.Errorf("%w: interceptor has no template or module provider", shared.ErrRender)
	}

	template, err := i.templates.Template(ctx, url)
	if err != nil {
		return "", nil, err
	}

	renderFn, err := i.modules.RenderFunc(ctx)
	if err != nil {
		return "", nil, err
	}

	state := &app.InitialState{}
	res, err := renderFn(ctx, RenderInput{
		SkipRender:   false,
		URL:          url,
		Manifest:     i.manifest,
		InitialState: state,
		Request:      r,
		Response:     w,
		Env:          i.env,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", shared.ErrRender, err)
	}
	if res == nil {
		return "", nil, fmt.Errorf("%w: render returned no result", shared.ErrRender)
	}

	auth := ReadCredentials(ctx, res.Directus)
	switch {
	case errors.Is(auth.Err, shared.ErrNotAuthenticated):
		i.loggerFor(ctx).Debug("anonymous render", "outcome", auth.Outcome)
	case auth.Err != nil:
		i.loggerFor(ctx).Warn("clearing refresh cookie", "outcome", auth.Outcome, "error", auth.Err)
	default:
		i.loggerFor(ctx).Debug("credentials read", "outcome", auth.Outcome)
	}
	cookie = RefreshCookie(auth, i.cookie, i.now())

	state.Credentials = auth.Credentials
	script, err := state.Script()
	if err != nil {
		return "", nil, err
	}

	return Assemble(template, res, script), cookie, nil
}
