package ssr

import (
	"context"
	"net/http"
	"time"

	"github.com/desertthunder/dssr/internal/directus"
	"github.com/desertthunder/dssr/internal/shared"
)

// CredentialsSource is the request-scoped API client a render hands back.
type CredentialsSource interface {
	Credentials(ctx context.Context) (*directus.Credentials, error)
}

// Outcome classifies what reading credentials after a render produced.
type Outcome int

const (
	RefreshFailed Outcome = iota
	Refreshed
	RefreshedWithoutToken
)

func (o Outcome) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case RefreshedWithoutToken:
		return "refreshed-without-token"
	default:
		return "refresh-failed"
	}
}

// AuthResult is the outcome of reading credentials. Credentials is nil when Outcome is RefreshFailed.
type AuthResult struct {
	Outcome     Outcome
	Credentials *directus.Credentials
	Err         error
}

// ReadCredentials asks src for its credentials. It never fails: any error becomes a RefreshFailed result.
func ReadCredentials(ctx context.Context, src CredentialsSource) AuthResult {
	if src == nil {
		return AuthResult{Outcome: RefreshFailed, Err: shared.ErrNotAuthenticated}
	}

	creds, err := src.Credentials(ctx)
	switch {
	case err != nil:
		return AuthResult{Outcome: RefreshFailed, Err: err}
	case creds == nil:
		return AuthResult{Outcome: RefreshFailed, Err: shared.ErrNotAuthenticated}
	case creds.RefreshToken == "":
		return AuthResult{Outcome: RefreshedWithoutToken, Credentials: creds}
	default:
		return AuthResult{Outcome: Refreshed, Credentials: creds}
	}
}

// CookieConfig describes the refresh-token cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	TTL      string
	Secure   bool
	SameSite http.SameSite
}

// CookieConfigFromConfig derives a [CookieConfig], rejecting an unknown same-site policy.
func CookieConfigFromConfig(cfg shared.CookieConfig) (CookieConfig, error) {
	sameSite, err := shared.ParseSameSite(cfg.SameSite)
	if err != nil {
		return CookieConfig{}, err
	}
	return CookieConfig{
		Name:     cfg.Name,
		Domain:   cfg.Domain,
		TTL:      cfg.TTL,
		Secure:   cfg.Secure,
		SameSite: sameSite,
	}, nil
}

// RefreshCookie decides the Set-Cookie for a request. A Refreshed result sets the rotated refresh token;
// anything else clears the cookie. When TTL does not parse the cookie is a session cookie.
func RefreshCookie(res AuthResult, cfg CookieConfig, now time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     cfg.Name,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}

	if res.Outcome != Refreshed || res.Credentials == nil {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0).UTC()
		return cookie
	}

	cookie.Value = res.Credentials.RefreshToken
	if ttl, ok := shared.ParseDuration(cfg.TTL); ok {
		cookie.MaxAge = int(ttl / time.Second)
		cookie.Expires = now.Add(ttl).UTC()
		if cookie.MaxAge <= 0 {
			cookie.MaxAge = -1
		}
	}
	return cookie
}
