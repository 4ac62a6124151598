package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/desertthunder/dssr/internal/app"
	"github.com/desertthunder/dssr/internal/directus"
	"github.com/desertthunder/dssr/internal/shared"
	"github.com/desertthunder/dssr/internal/ui"
	"github.com/urfave/cli/v3"
)

// Refresh cookie outcomes seen by fetch.
const (
	cookieSet     = "set"
	cookieCleared = "cleared"
	cookieNone    = "none"
)

// FetchResult summarizes a simulated page visit.
type FetchResult struct {
	URL           string     `json:"url"`
	Status        int        `json:"status"`
	Route         string     `json:"route,omitempty"`
	RefreshCookie string     `json:"refresh_cookie"`
	ServerToken   bool       `json:"server_token"`
	Authenticated bool       `json:"authenticated"`
	Expires       *time.Time `json:"expires,omitempty"`
}

// Fetch behaves like a browser: optional login, a page load with a cookie jar, then a client bootstrap
// from the page's initial state with credentials kept in SQLite.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	target := cmd.StringArg("url")
	if target == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: fetch needs an absolute url, got %q", shared.ErrInvalidInput, target)
	}
	origin := u.Scheme + "://" + u.Host

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar, Transport: r.httpClient.Transport, Timeout: config.APITimeout()}

	storage, err := directus.OpenSQLiteStorage(config.Client.Database, origin)
	if err != nil {
		return err
	}
	defer storage.Close()

	if email := cmd.String("email"); email != "" {
		login := directus.New(origin, directus.Options{
			Mode:       directus.ModeCookie,
			Storage:    storage,
			HTTPClient: client,
			Logger:     r.logger,
		})
		if _, err := login.Login(ctx, email, cmd.String("password")); err != nil {
			return err
		}
		r.logger.Info("logged in", "email", email)
	}

	result, state, err := r.visit(ctx, client, target, config.Cookie.Name)
	if err != nil {
		return err
	}

	routes, err := r.routes(config)
	if err != nil {
		r.logger.Debug("routes unavailable, hydrating without a route table", "error", err)
	}

	bundle, err := app.CreateApp(ctx, app.Component{Name: "app"}, app.Options{
		IsClient:     true,
		Routes:       routes,
		InitialState: state,
		Origin:       origin,
		HTTPClient:   client,
		Storage:      storage,
		Logger:       r.logger,
	}, nil)
	if err != nil {
		return err
	}

	bundle.Router.Push(u.RequestURI())
	if route := bundle.Router.Current().Route; route != nil {
		result.Route = route.Name
	}

	if creds, err := bundle.Directus.Credentials(ctx); err == nil {
		result.Authenticated = true
		if tok := creds.Token(); !tok.Expiry.IsZero() {
			result.Expires = &tok.Expiry
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writeFetchResult(result)
}

// visit loads the page and extracts its initial state.
func (r *Runner) visit(ctx context.Context, client *http.Client, target, cookieName string) (*FetchResult, *app.InitialState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(body))
	}

	state, err := app.ExtractInitialState(string(body))
	if err != nil {
		return nil, nil, err
	}

	result := &FetchResult{
		URL:           target,
		Status:        resp.StatusCode,
		RefreshCookie: cookieNone,
		ServerToken:   state.AccessToken != nil,
	}
	for _, c := range resp.Cookies() {
		if c.Name != cookieName {
			continue
		}
		if c.MaxAge < 0 {
			result.RefreshCookie = cookieCleared
		} else {
			result.RefreshCookie = cookieSet
		}
	}
	return result, state, nil
}

func (r *Runner) writeFetchResult(res *FetchResult) error {
	p := ui.Styles()

	r.writePlain("%s\n", p.Title(res.URL))
	r.writePlain("status:         %d\n", res.Status)
	if res.Route != "" {
		r.writePlain("route:          %s\n", res.Route)
	}
	r.writePlain("refresh cookie: %s\n", res.RefreshCookie)

	if !res.Authenticated {
		return r.writePlain("%s\n", p.Warn("anonymous"))
	}
	r.writePlain("%s\n", p.OK("authenticated"))
	if res.Expires != nil {
		r.writePlain("%s\n", p.Help("access token expires "+res.Expires.Format(time.RFC3339)))
	}
	return nil
}
