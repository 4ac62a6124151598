package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/shared"
)

func discard() *log.Logger { return log.New(io.Discard) }

func text(s string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, s)
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Handle Filters Methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", text("pong"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Mount Accepts Any Method", func(t *testing.T) {
		router := NewBasicRouter()
		router.Mount("/", text("root"))

		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, "/anything", nil))
			if rec.Body.String() != "root" {
				t.Errorf("%s: expected root, got %q", method, rec.Body.String())
			}
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Mount("/", text("ok"))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first,second, got %v", order)
		}
	})

	t.Run("Handler Routes", func(t *testing.T) {
		d := NewDevServer(t.TempDir(), time.Millisecond, discard())
		router := NewBasicRouter()
		router.Handler(d)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DevClientPath, nil))
		if !strings.Contains(rec.Body.String(), "EventSource") {
			t.Errorf("expected reload client, got %q", rec.Body.String())
		}
	})
}

func TestLogging(t *testing.T) {
	t.Run("Generates Request ID", func(t *testing.T) {
		var ctxLogger *log.Logger
		handler := Logging(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger, _ = r.Context().Value(log.ContextKey).(*log.Logger)
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a request ID header")
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected status to pass through, got %d", rec.Code)
		}
		if ctxLogger == nil {
			t.Error("expected request logger in context")
		}
	})

	t.Run("Keeps Incoming Request ID", func(t *testing.T) {
		handler := Logging(discard())(text("ok"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected abc-123, got %q", got)
		}
	})
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "assets"), 0755); err != nil {
		t.Fatal(err)
	}

	handler := Static(dir)(text("next"))

	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{"File", http.MethodGet, "/app.js", "console.log(1)"},
		{"Index Served As File", http.MethodGet, "/index.html", "<html>"},
		{"Root Falls Through", http.MethodGet, "/", "next"},
		{"Directory Falls Through", http.MethodGet, "/assets", "next"},
		{"Missing Falls Through", http.MethodGet, "/about", "next"},
		{"Traversal Stays Inside", http.MethodGet, "/../../etc/passwd", "next"},
		{"Post Falls Through", http.MethodPost, "/app.js", "next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Body.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, rec.Body.String())
			}
		})
	}
}

func TestBackendProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "backend "+r.Method+" "+r.URL.Path)
	}))
	defer backend.Close()

	t.Run("Routes", func(t *testing.T) {
		p, err := NewBackendProxy(backend.URL, []string{"/items", "/server/ping", "/items", "/"}, discard())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := "/items,/items/,/server/ping,/server/ping/"
		if got := strings.Join(p.Routes(), ","); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("Forwards Subtrees", func(t *testing.T) {
		p, err := NewBackendProxy(backend.URL+"/", []string{"/items"}, discard())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		router := NewBasicRouter()
		router.Handler(p)
		router.Mount("/", text("app"))

		for path, want := range map[string]string{
			"/items":       "backend GET /items",
			"/items/posts": "backend GET /items/posts",
			"/about":       "app",
		} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != want {
				t.Errorf("%s: expected %q, got %q", path, want, rec.Body.String())
			}
		}
	})

	t.Run("Backend Down", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()

		p, err := NewBackendProxy(down.URL, []string{"/items"}, discard())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Invalid Target", func(t *testing.T) {
		if _, err := NewBackendProxy("not a url", nil, nil); err == nil {
			t.Error("expected error")
		} else if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config error, got %v", err)
		}
	})
}

func TestDevServer(t *testing.T) {
	t.Run("Transform", func(t *testing.T) {
		d := NewDevServer(t.TempDir(), 0, nil)

		got, err := d.Transform(context.Background(), "/", "<html><head><title>x</title></head></html>")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := `<html><head><title>x</title><script type="module" src="/@dev/client.js"></script>` + "\n</head></html>"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}

		got, _ = d.Transform(context.Background(), "/", "<p>no head</p>")
		if !strings.HasPrefix(got, `<script type="module" src="/@dev/client.js"></script>`) {
			t.Errorf("expected script prepended, got %q", got)
		}
	})

	t.Run("Middleware", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "main.js"), []byte("main"), 0644); err != nil {
			t.Fatal(err)
		}
		handler := NewDevServer(dir, 0, discard()).Middleware()(text("next"))

		for path, want := range map[string]string{"/main.js": "main", "/about": "next"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != want {
				t.Errorf("%s: expected %q, got %q", path, want, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DevClientPath, nil))
		if ct := rec.Header().Get("Content-Type"); ct != "text/javascript" {
			t.Errorf("expected javascript content type, got %q", ct)
		}
	})

	t.Run("Check", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "app.html")
		if err := os.WriteFile(file, []byte("v1"), 0644); err != nil {
			t.Fatal(err)
		}

		d := NewDevServer(dir, time.Millisecond, discard())
		d.Check()
		start := d.Version()

		if d.Check() {
			t.Error("expected no change without writes")
		}

		future := time.Now().Add(time.Hour)
		if err := os.Chtimes(file, future, future); err != nil {
			t.Fatal(err)
		}
		if !d.Check() {
			t.Error("expected change after touching a file")
		}
		if d.Version() != start+1 {
			t.Errorf("expected version %d, got %d", start+1, d.Version())
		}
	})

	t.Run("Events", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "app.html")
		if err := os.WriteFile(file, []byte("v1"), 0644); err != nil {
			t.Fatal(err)
		}

		d := NewDevServer(dir, 5*time.Millisecond, discard())
		d.Check()

		srv := httptest.NewServer(d)
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+DevEventsPath, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("expected event stream, got %q", ct)
		}

		lines := bufio.NewReader(resp.Body)
		readEvent := func() string {
			for {
				line, err := lines.ReadString('\n')
				if err != nil {
					t.Fatalf("stream ended: %v", err)
				}
				if strings.HasPrefix(line, "event: ") {
					return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
				}
			}
		}

		if ev := readEvent(); ev != "connected" {
			t.Fatalf("expected connected event, got %q", ev)
		}

		future := time.Now().Add(time.Hour)
		if err := os.Chtimes(file, future, future); err != nil {
			t.Fatal(err)
		}
		d.Check()

		if ev := readEvent(); ev != "reload" {
			t.Errorf("expected reload event, got %q", ev)
		}
	})

	t.Run("Watch Stops", func(t *testing.T) {
		d := NewDevServer(t.TempDir(), time.Millisecond, discard())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- d.Watch(ctx) }()
		cancel()

		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("watch did not stop")
		}
	})
}
