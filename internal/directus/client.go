package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// AuthMode selects where the refresh token lives.
type AuthMode string

const (
	ModeJSON   AuthMode = "json"
	ModeCookie AuthMode = "cookie"
)

// Options configures a [Client]. Zero values select JSON mode, memory storage, [http.DefaultClient],
// no rate limit and a silent logger.
type Options struct {
	Mode       AuthMode
	Storage    Storage
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *log.Logger
}

// Client talks to one Directus instance.
type Client struct {
	baseURL    string
	mode       AuthMode
	storage    Storage
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// New creates a client for the Directus instance at baseURL.
func New(baseURL string, opts Options) *Client {
	if opts.Mode == "" {
		opts.Mode = ModeJSON
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/",
		mode:       opts.Mode,
		storage:    opts.Storage,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// URL returns the normalized base URL, always ending in "/".
func (c *Client) URL() string { return c.baseURL }

// Mode returns the auth mode.
func (c *Client) Mode() AuthMode { return c.mode }

// Storage returns the backing storage.
func (c *Client) Storage() Storage { return c.storage }

// envelope is the {"data": ...} wrapper around every Directus payload.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base URL %q: %v", shared.ErrInvalidConfig, c.baseURL, err)
	}
	u = u.JoinPath(strings.Split(strings.TrimLeft(path, "/"), "/")...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// do sends a request and decodes the data envelope into out. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	endpoint, err := c.endpoint(path, query)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("directus request", "method", method, "path", path)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", shared.ErrAPIRequest, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: invalid response data: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// authorizedClient returns an HTTP client that sends the stored access token, or the plain client when
// nothing is stored.
func (c *Client) authorizedClient(ctx context.Context) (*http.Client, error) {
	token, err := c.storage.Get(ctx, KeyToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return c.httpClient, nil
	}

	base := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})), nil
}
