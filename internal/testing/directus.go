package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Fake Directus credentials.
const (
	ValidRefreshToken = "valid-refresh"
	RotatedRefresh    = "rotated-refresh"
	FreshAccessToken  = "fresh-access"
	CookieName        = "directus_refresh_token"
	AdminEmail        = "admin@example.com"
	AdminPassword     = "secret"
)

// FakeDirectus is an httptest server speaking enough of the Directus API for rendering tests:
// auth refresh/login/logout and items reads.
type FakeDirectus struct {
	*httptest.Server

	Refreshes atomic.Int32
	ItemReads atomic.Int32

	mu          sync.Mutex
	collections map[string][]map[string]any
	singletons  map[string]map[string]any
	lastAuth    string
}

// NewFakeDirectus starts a fake API and closes it when the test ends.
func NewFakeDirectus(t *testing.T) *FakeDirectus {
	t.Helper()

	f := &FakeDirectus{
		collections: map[string][]map[string]any{},
		singletons:  map[string]map[string]any{},
	}
	f.Server = httptest.NewServer(f.handler())
	t.Cleanup(f.Close)
	return f
}

// AddItems appends items to a collection. Each item should carry an "id".
func (f *FakeDirectus) AddItems(collection string, items ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], items...)
}

// SetSingleton stores the single item of a singleton collection.
func (f *FakeDirectus) SetSingleton(collection string, item map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singletons[collection] = item
}

// LastAuthorization is the Authorization header of the latest items read.
func (f *FakeDirectus) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeDirectus) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.Refreshes.Add(1)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		token := body["refresh_token"]
		if body["mode"] == "cookie" {
			if c, err := r.Cookie(CookieName); err == nil {
				token = c.Value
			}
		}
		if token != ValidRefreshToken && token != RotatedRefresh {
			writeErrors(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}

		if body["mode"] == "cookie" {
			http.SetCookie(w, &http.Cookie{Name: CookieName, Value: RotatedRefresh, Path: "/", HttpOnly: true})
			writeData(w, map[string]any{"access_token": FreshAccessToken, "expires": 900000, "refresh_token": nil})
			return
		}
		writeData(w, map[string]any{"access_token": FreshAccessToken, "expires": 900000, "refresh_token": RotatedRefresh})
	})

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != AdminEmail || body["password"] != AdminPassword {
			writeErrors(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}
		if body["mode"] == "cookie" {
			http.SetCookie(w, &http.Cookie{Name: CookieName, Value: ValidRefreshToken, Path: "/", HttpOnly: true})
			writeData(w, map[string]any{"access_token": FreshAccessToken, "expires": 900000, "refresh_token": nil})
			return
		}
		writeData(w, map[string]any{"access_token": FreshAccessToken, "expires": 900000, "refresh_token": ValidRefreshToken})
	})

	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /items/{collection}", func(w http.ResponseWriter, r *http.Request) {
		f.ItemReads.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")

		name := r.PathValue("collection")
		if item, ok := f.singletons[name]; ok {
			writeData(w, item)
			return
		}
		items, ok := f.collections[name]
		if !ok {
			writeErrors(w, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
			return
		}

		search := strings.ToLower(r.URL.Query().Get("search"))
		out := []map[string]any{}
		for _, item := range items {
			if search == "" || strings.Contains(strings.ToLower(jsonString(item)), search) {
				out = append(out, item)
			}
		}
		writeData(w, out)
	})

	mux.HandleFunc("GET /items/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.ItemReads.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")

		for _, item := range f.collections[r.PathValue("collection")] {
			if jsonString(item["id"]) == r.PathValue("id") || item["id"] == r.PathValue("id") {
				writeData(w, item)
				return
			}
		}
		writeErrors(w, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
	})

	return mux
}

func jsonString(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeErrors(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{"message": message, "extensions": map[string]string{"code": code}}},
	})
}
