package shared

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.SSR.Env != EnvProduction {
			t.Errorf("expected env production, got %s", config.SSR.Env)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Cookie.TTL != "7d" {
			t.Errorf("expected cookie ttl 7d, got %s", config.Cookie.TTL)
		}

		if config.Cookie.SameSite != "strict" {
			t.Errorf("expected same_site strict, got %s", config.Cookie.SameSite)
		}

		if len(config.Routes.Reserved) != 30 {
			t.Errorf("expected 30 reserved routes, got %d", len(config.Routes.Reserved))
		}

		if config.Routes.Reserved[0] != "/server/ping" {
			t.Errorf("expected first reserved route /server/ping, got %s", config.Routes.Reserved[0])
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Cookie.Name != DefaultConfig().Cookie.Name {
			t.Errorf("created config cookie name doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[ssr]
env = "development"

[server]
host = "0.0.0.0"
port = 8080

[cookie]
name = "refresh"
domain = "example.com"
secure = true
same_site = "lax"

[routes]
reserved = ["/items", "/auth"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if !config.IsDev() {
			t.Error("expected development mode")
		}

		if config.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Addr())
		}

		if config.Cookie.Domain != "example.com" || !config.Cookie.Secure {
			t.Errorf("unexpected cookie config: %+v", config.Cookie)
		}

		if config.Cookie.TTL != "7d" {
			t.Errorf("expected ttl to keep default 7d, got %s", config.Cookie.TTL)
		}

		if len(config.Routes.Reserved) != 2 {
			t.Errorf("expected reserved routes to be replaced, got %v", config.Routes.Reserved)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"SSR_ENV":                        "development",
			"PUBLIC_URL":                     "https://cms.example.com/",
			"REFRESH_TOKEN_COOKIE_NAME":      "rt",
			"REFRESH_TOKEN_COOKIE_DOMAIN":    ".example.com",
			"REFRESH_TOKEN_TTL":              "14d",
			"REFRESH_TOKEN_COOKIE_SECURE":    "true",
			"REFRESH_TOKEN_COOKIE_SAME_SITE": "none",
		}

		config := DefaultConfig()
		if err := config.ApplyEnv(func(k string) string { return env[k] }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !config.IsDev() {
			t.Error("expected SSR_ENV to switch to development")
		}
		if config.API.PublicURL != "https://cms.example.com/" {
			t.Errorf("unexpected public url %s", config.API.PublicURL)
		}
		if config.Cookie.Name != "rt" || config.Cookie.Domain != ".example.com" || config.Cookie.TTL != "14d" {
			t.Errorf("unexpected cookie config: %+v", config.Cookie)
		}
		if !config.Cookie.Secure || config.Cookie.SameSite != "none" {
			t.Errorf("unexpected cookie flags: %+v", config.Cookie)
		}
	})

	t.Run("ApplyEnv Invalid Secure", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(func(k string) string {
			if k == "REFRESH_TOKEN_COOKIE_SECURE" {
				return "sometimes"
			}
			return ""
		})
		if err == nil {
			t.Error("expected error for invalid boolean")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "unknown env", mutate: func(c *Config) { c.SSR.Env = "staging" }},
			{name: "missing cookie name", mutate: func(c *Config) { c.Cookie.Name = "" }},
			{name: "missing public url", mutate: func(c *Config) { c.API.PublicURL = "" }},
			{name: "bad same site", mutate: func(c *Config) { c.Cookie.SameSite = "sometimes" }},
			{name: "relative reserved route", mutate: func(c *Config) { c.Routes.Reserved = []string{"items"} }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("APITimeout", func(t *testing.T) {
		config := DefaultConfig()
		if got := config.APITimeout(); got != 10*time.Second {
			t.Errorf("expected 10s, got %v", got)
		}

		config.API.Timeout = "soon"
		if got := config.APITimeout(); got != 0 {
			t.Errorf("expected 0 for invalid timeout, got %v", got)
		}
	})
}

func TestParseSameSite(t *testing.T) {
	tc := []struct {
		in   string
		want http.SameSite
	}{
		{"", http.SameSiteStrictMode},
		{"strict", http.SameSiteStrictMode},
		{"Lax", http.SameSiteLaxMode},
		{"none", http.SameSiteNoneMode},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSameSite(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSameSite(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
