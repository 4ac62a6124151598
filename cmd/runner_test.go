package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/shared"
	tu "github.com/desertthunder/dssr/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with nil getenv reads nothing", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.getenv("SSR_ENV") != "" {
				t.Error("expected empty environment")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: io.Discard})

		var names []string
		for _, cmd := range runner.register() {
			names = append(names, cmd.Name)
		}
		if got := strings.Join(names, ","); got != "serve,render,fetch,routes,config" {
			t.Errorf("unexpected commands: %s", got)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("%s=%d\n", "a", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "a=1\n" {
			t.Errorf("expected a=1, got %q", output.String())
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("x"); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		quiet := func(env map[string]string) *Runner {
			return NewRunner(RunnerOpts{
				Logger: log.New(io.Discard),
				Output: io.Discard,
				Getenv: func(k string) string { return env[k] },
			})
		}

		t.Run("missing file uses defaults", func(t *testing.T) {
			config, err := quiet(nil).loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if config.Cookie.Name != "directus_refresh_token" {
				t.Errorf("expected default cookie name, got %q", config.Cookie.Name)
			}
		})

		t.Run("environment overrides file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[api]\npublic_url = \"http://file:8055\"\n"), 0644); err != nil {
				t.Fatal(err)
			}

			config, err := quiet(map[string]string{
				"SSR_ENV":    "development",
				"PUBLIC_URL": "http://env:8055",
			}).loadConfig(path)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if config.API.PublicURL != "http://env:8055" {
				t.Errorf("expected env public url, got %q", config.API.PublicURL)
			}
			if !config.IsDev() {
				t.Error("expected development mode")
			}
		})

		t.Run("does not mutate runner config", func(t *testing.T) {
			runner := quiet(map[string]string{"REFRESH_TOKEN_COOKIE_NAME": "other"})
			if _, err := runner.loadConfig(""); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Cookie.Name == "other" {
				t.Error("expected runner config to stay untouched")
			}
		})

		t.Run("invalid environment", func(t *testing.T) {
			_, err := quiet(map[string]string{"SSR_ENV": "staging"}).loadConfig("")
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected invalid config, got %v", err)
			}

			_, err = quiet(map[string]string{"REFRESH_TOKEN_COOKIE_SECURE": "maybe"}).loadConfig("")
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected invalid config, got %v", err)
			}
		})

		t.Run("malformed file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("log_level = "), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := quiet(nil).loadConfig(path); err == nil {
				t.Error("expected parse error")
			}
		})
	})
}
