package directus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/dssr/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// now is swapped out in tests.
var now = time.Now

// Credentials is the authentication data Directus returns from login and refresh.
//
// Expires is the access token lifetime in milliseconds, ExpiresAt the absolute expiry in Unix
// milliseconds. RefreshToken is empty in cookie mode.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	Expires      int64  `json:"expires"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Token converts the credentials into an [oauth2.Token].
func (c *Credentials) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
	}
	if c.ExpiresAt > 0 {
		tok.Expiry = time.UnixMilli(c.ExpiresAt)
	}
	return tok
}

// CredentialsFromToken is the inverse of [Credentials.Token].
func CredentialsFromToken(tok *oauth2.Token) *Credentials {
	if tok == nil {
		return nil
	}
	creds := &Credentials{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		creds.ExpiresAt = tok.Expiry.UnixMilli()
		creds.Expires = max(tok.Expiry.Sub(now()).Milliseconds(), 0)
	}
	return creds
}

// tokenExpiry reads the exp claim of a JWT access token without verifying it. Verification is the API's
// job; the claim is only used to know when the token lapses.
func tokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type refreshRequest struct {
	RefreshToken string   `json:"refresh_token,omitempty"`
	Mode         AuthMode `json:"mode"`
}

type loginRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Mode     AuthMode `json:"mode"`
	OTP      string   `json:"otp,omitempty"`
}

// Refresh exchanges the refresh token for a new access token.
//
// In JSON mode the stored refresh token is sent and the rotated one stored; without one the call fails
// with [shared.ErrNoRefreshToken] before any request is made. In cookie mode the HTTP client's cookie
// jar must carry the refresh cookie.
func (c *Client) Refresh(ctx context.Context) (*Credentials, error) {
	body := refreshRequest{Mode: c.mode}

	if c.mode == ModeJSON {
		rt, err := c.storage.Get(ctx, KeyRefreshToken)
		if err != nil {
			return nil, err
		}
		if rt == "" {
			return nil, shared.ErrNoRefreshToken
		}
		body.RefreshToken = rt
	}

	var creds Credentials
	if err := c.do(ctx, c.httpClient, http.MethodPost, "auth/refresh", nil, body, &creds); err != nil {
		c.logger.Debug("refresh failed", "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	if err := c.store(ctx, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument)
	}

	var creds Credentials
	body := loginRequest{Email: email, Password: password, Mode: c.mode}
	if err := c.do(ctx, c.httpClient, http.MethodPost, "auth/login", nil, body, &creds); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if err := c.store(ctx, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Logout invalidates the refresh token and clears stored credentials. Storage is cleared even when the
// API call fails.
func (c *Client) Logout(ctx context.Context) error {
	body := refreshRequest{Mode: c.mode}
	if c.mode == ModeJSON {
		rt, err := c.storage.Get(ctx, KeyRefreshToken)
		if err != nil {
			return err
		}
		body.RefreshToken = rt
	}

	apiErr := c.do(ctx, c.httpClient, http.MethodPost, "auth/logout", nil, body, nil)

	var errs []error
	if apiErr != nil {
		errs = append(errs, apiErr)
	}
	for _, key := range []string{KeyToken, KeyRefreshToken, KeyExpires, KeyExpiresAt} {
		if err := c.storage.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Credentials returns what is currently stored. It fails with [shared.ErrNotAuthenticated] when no access
// token is held.
func (c *Client) Credentials(ctx context.Context) (*Credentials, error) {
	token, err := c.storage.Get(ctx, KeyToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}

	creds := &Credentials{AccessToken: token}
	if creds.RefreshToken, err = c.storage.Get(ctx, KeyRefreshToken); err != nil {
		return nil, err
	}
	if v, err := c.storage.Get(ctx, KeyExpires); err == nil && v != "" {
		creds.Expires, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, err := c.storage.Get(ctx, KeyExpiresAt); err == nil && v != "" {
		creds.ExpiresAt, _ = strconv.ParseInt(v, 10, 64)
	}
	return creds, nil
}

// Token returns the stored credentials as an [oauth2.Token].
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return creds.Token(), nil
}

// SetToken seeds the access token, as the client bootstrap does from injected page state.
func (c *Client) SetToken(ctx context.Context, accessToken string) error {
	return c.storage.Set(ctx, KeyToken, accessToken)
}

// SetRefreshToken seeds the refresh token, as the server bootstrap does from the request cookie.
func (c *Client) SetRefreshToken(ctx context.Context, refreshToken string) error {
	return c.storage.Set(ctx, KeyRefreshToken, refreshToken)
}

// store persists creds, filling Expires/ExpiresAt from the token's exp claim when the API omitted them.
func (c *Client) store(ctx context.Context, creds *Credentials) error {
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: response carried no access token", shared.ErrAuthFailed)
	}

	issued := now()
	switch {
	case creds.Expires > 0:
		creds.ExpiresAt = issued.Add(time.Duration(creds.Expires) * time.Millisecond).UnixMilli()
	default:
		if exp, ok := tokenExpiry(creds.AccessToken); ok {
			creds.ExpiresAt = exp.UnixMilli()
			creds.Expires = max(exp.Sub(issued).Milliseconds(), 0)
		}
	}

	values := map[string]string{
		KeyToken:     creds.AccessToken,
		KeyExpires:   strconv.FormatInt(creds.Expires, 10),
		KeyExpiresAt: strconv.FormatInt(creds.ExpiresAt, 10),
	}
	if creds.RefreshToken != "" {
		values[KeyRefreshToken] = creds.RefreshToken
	}

	for key, value := range values {
		if err := c.storage.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
