package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/directus"
	"github.com/desertthunder/dssr/internal/shared"
	"golang.org/x/time/rate"
)

// Env is the process configuration a server-side bootstrap reads. Build it once at startup.
type Env struct {
	Mode       string
	PublicURL  string
	CookieName string
	Timeout    time.Duration
	Limiter    *rate.Limiter
}

// EnvFromConfig derives an [Env] from the loaded configuration.
func EnvFromConfig(cfg *shared.Config) Env {
	env := Env{
		Mode:       cfg.SSR.Env,
		PublicURL:  cfg.API.PublicURL,
		CookieName: cfg.Cookie.Name,
		Timeout:    cfg.APITimeout(),
	}
	if cfg.API.RateLimit > 0 {
		env.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit), max(int(cfg.API.RateLimit), 1))
	}
	return env
}

// IsDev reports whether the environment is development.
func (e Env) IsDev() bool { return e.Mode == shared.EnvDevelopment }

// Options distinguishes a server render from a client hydration.
//
// A server bootstrap reads Request and Env. A client bootstrap reads InitialState, Origin and Storage;
// Storage should be persistent ([directus.SQLiteStorage]).
type Options struct {
	IsClient     bool
	Routes       []Route
	InitialState *InitialState
	Request      *http.Request
	Env          Env
	Origin       string
	HTTPClient   *http.Client
	Storage      directus.Storage
	Logger       *log.Logger
}

// HookContext is passed to a [Hook] once the app is wired.
type HookContext struct {
	App      *App
	Router   *Router
	Directus *directus.Client
}

// Hook customizes a freshly built app, e.g. by installing plugins.
type Hook func(ctx context.Context, hc HookContext) error

// Bundle is a fully wired application.
type Bundle struct {
	App      *App
	Router   *Router
	Head     *Head
	Directus *directus.Client
}

// CreateApp builds an application around root and hydrates its Directus client.
//
// Hydration failures are logged and the app is returned unauthenticated. Only wiring errors (bad routes,
// missing client origin) and hook errors fail construction.
func CreateApp(ctx context.Context, root Component, opts Options, hook Hook) (*Bundle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var (
		client  *directus.Client
		history History
		err     error
	)

	if opts.IsClient {
		client, history, err = clientSide(ctx, opts, logger)
	} else {
		client, history = serverSide(ctx, opts, logger)
	}
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(history, opts.Routes)
	if err != nil {
		return nil, err
	}

	head := NewHead()
	a := New(root)
	a.Use(router, head)
	a.Provide(DirectusKey, client)

	if hook != nil {
		if err := hook(ctx, HookContext{App: a, Router: router, Directus: client}); err != nil {
			return nil, fmt.Errorf("app hook: %w", err)
		}
	}

	return &Bundle{App: a, Router: router, Head: head, Directus: client}, nil
}

func serverSide(ctx context.Context, opts Options, logger *log.Logger) (*directus.Client, History) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Env.Timeout}
	}

	client := directus.New(opts.Env.PublicURL, directus.Options{
		Mode:       directus.ModeJSON,
		Storage:    directus.NewMemoryStorage(),
		HTTPClient: hc,
		Limiter:    opts.Env.Limiter,
		Logger:     logger,
	})

	if opts.Request != nil && opts.Env.CookieName != "" {
		header := strings.Join(opts.Request.Header.Values("Cookie"), "; ")
		if token, ok := shared.CookieValue(header, opts.Env.CookieName); ok && token != "" {
			hydrate(ctx, logger, func() error {
				if err := client.SetRefreshToken(ctx, token); err != nil {
					return err
				}
				_, err := client.Refresh(ctx)
				return err
			})
		}
	}

	return client, NewMemoryHistory()
}

func clientSide(ctx context.Context, opts Options, logger *log.Logger) (*directus.Client, History, error) {
	if opts.Origin == "" {
		return nil, nil, fmt.Errorf("%w: client bootstrap needs the page origin", shared.ErrMissingConfig)
	}
	if opts.Storage == nil {
		return nil, nil, fmt.Errorf("%w: client bootstrap needs persistent storage", shared.ErrMissingConfig)
	}

	history, err := NewWebHistory(opts.Origin)
	if err != nil {
		return nil, nil, err
	}

	client := directus.New(history.origin.String(), directus.Options{
		Mode:       directus.ModeCookie,
		Storage:    opts.Storage,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
	})

	var accessToken string
	if opts.InitialState != nil && opts.InitialState.AccessToken != nil {
		accessToken = *opts.InitialState.AccessToken
	}

	hydrate(ctx, logger, func() error {
		if err := client.SetToken(ctx, accessToken); err != nil {
			return err
		}
		if accessToken == "" {
			return nil
		}
		_, err := client.Refresh(ctx)
		return err
	})

	return client, history, nil
}

func hydrate(ctx context.Context, logger *log.Logger, fn func() error) {
	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		logger.Debug("hydration abandoned", "error", err)
	default:
		logger.Warn("hydration failed, continuing unauthenticated", "error", err)
	}
}
