package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Dev server endpoints.
const (
	DevClientPath = "/@dev/client.js"
	DevEventsPath = "/@dev/events"
)

const devClient = `const source = new EventSource(%q);
source.addEventListener("reload", () => location.reload());
`

// DevServer reloads browsers when files under its source directory change.
//
// [DevServer.Watch] polls modification times and bumps a version counter; connected pages hold an event
// stream open on [DevEventsPath] and reload on a "reload" event.
type DevServer struct {
	dir      string
	interval time.Duration
	logger   *log.Logger
	version  atomic.Int64
	latest   time.Time
}

// NewDevServer watches dir every interval (one second when zero).
func NewDevServer(dir string, interval time.Duration, logger *log.Logger) *DevServer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DevServer{dir: dir, interval: interval, logger: logger}
}

// Version is the number of changes seen so far.
func (d *DevServer) Version() int64 { return d.version.Load() }

// Routes implements [Handler].
func (d *DevServer) Routes() []string {
	return []string{"GET " + DevClientPath, "GET " + DevEventsPath}
}

func (d *DevServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case DevClientPath:
		w.Header().Set("Content-Type", "text/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		fmt.Fprintf(w, devClient, DevEventsPath)
	case DevEventsPath:
		d.events(w, r)
	default:
		http.NotFound(w, r)
	}
}

// Middleware serves the dev endpoints, the source directory's files and hands everything else to next.
func (d *DevServer) Middleware() Middleware {
	static := Static(d.dir)
	return func(next http.Handler) http.Handler {
		files := static(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == DevClientPath || r.URL.Path == DevEventsPath {
				d.ServeHTTP(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}
}

// Transform injects the reload client into a page's head. It is an [ssr.Transformer].
func (d *DevServer) Transform(_ context.Context, _ string, html string) (string, error) {
	tag := `<script type="module" src="` + DevClientPath + `"></script>`
	if i := strings.Index(html, "</head>"); i >= 0 {
		return html[:i] + tag + "\n" + html[i:], nil
	}
	return tag + "\n" + html, nil
}

func (d *DevServer) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	last := d.version.Load()
	fmt.Fprintf(w, "event: connected\ndata: %d\n\n", last)
	flusher.Flush()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if v := d.version.Load(); v != last {
				last = v
				fmt.Fprintf(w, "event: reload\ndata: %d\n\n", v)
				flusher.Flush()
			}
		}
	}
}

// Watch polls the source directory until ctx is done.
func (d *DevServer) Watch(ctx context.Context) error {
	d.latest = d.scan()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Check()
		}
	}
}

// Check rescans once and reports whether anything changed since the last scan. It must not run
// concurrently with [DevServer.Watch].
func (d *DevServer) Check() bool {
	latest := d.scan()
	if !latest.After(d.latest) {
		return false
	}
	d.latest = latest
	v := d.version.Add(1)
	d.logger.Info("source changed, reloading", "version", v)
	return true
}

func (d *DevServer) scan() time.Time {
	var latest time.Time
	err := filepath.WalkDir(d.dir, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := entry.Info(); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("scan failed", "dir", d.dir, "error", err)
	}
	return latest
}
