package shared

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel string       `toml:"log_level"`
	SSR      SSRConfig    `toml:"ssr"`
	Server   ServerConfig `toml:"server"`
	API      APIConfig    `toml:"api"`
	Cookie   CookieConfig `toml:"cookie"`
	Routes   RoutesConfig `toml:"routes"`
	Client   ClientConfig `toml:"client"`
}

// SSRConfig selects the execution mode and where templates and render modules live.
type SSRConfig struct {
	Env       string `toml:"env"`
	Root      string `toml:"root"`
	ClientDir string `toml:"client_dir"`
	ServerDir string `toml:"server_dir"`
	SourceDir string `toml:"source_dir"`
	Index     string `toml:"index"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// APIConfig points at the Directus instance.
type APIConfig struct {
	PublicURL string  `toml:"public_url"`
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"`
}

// CookieConfig describes the refresh-token cookie. TTL is a human readable duration ("7d", "12h").
type CookieConfig struct {
	Name     string `toml:"name"`
	Domain   string `toml:"domain"`
	TTL      string `toml:"ttl"`
	Secure   bool   `toml:"secure"`
	SameSite string `toml:"same_site"`
}

// RoutesConfig lists paths owned by the backend API.
type RoutesConfig struct {
	Reserved []string `toml:"reserved"`
}

// ClientConfig configures the simulated client used by the fetch command.
type ClientConfig struct {
	Database string `toml:"database"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values with the process environment variables the CMS shares with
// this server. getenv is usually [os.Getenv].
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("SSR_ENV"); v != "" {
		c.SSR.Env = v
	}
	if v := getenv("PUBLIC_URL"); v != "" {
		c.API.PublicURL = v
	}
	if v := getenv("REFRESH_TOKEN_COOKIE_NAME"); v != "" {
		c.Cookie.Name = v
	}
	if v := getenv("REFRESH_TOKEN_COOKIE_DOMAIN"); v != "" {
		c.Cookie.Domain = v
	}
	if v := getenv("REFRESH_TOKEN_TTL"); v != "" {
		c.Cookie.TTL = v
	}
	if v := getenv("REFRESH_TOKEN_COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: REFRESH_TOKEN_COOKIE_SECURE=%q", ErrInvalidConfig, v)
		}
		c.Cookie.Secure = secure
	}
	if v := getenv("REFRESH_TOKEN_COOKIE_SAME_SITE"); v != "" {
		c.Cookie.SameSite = v
	}
	return nil
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	switch c.SSR.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("%w: ssr.env must be %q or %q, got %q", ErrInvalidConfig, EnvDevelopment, EnvProduction, c.SSR.Env)
	}
	if c.Cookie.Name == "" {
		return fmt.Errorf("%w: cookie.name is required", ErrInvalidConfig)
	}
	if c.API.PublicURL == "" {
		return fmt.Errorf("%w: api.public_url is required", ErrInvalidConfig)
	}
	if _, err := ParseSameSite(c.Cookie.SameSite); err != nil {
		return err
	}
	for _, p := range c.Routes.Reserved {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: reserved route %q must start with /", ErrInvalidConfig, p)
		}
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.SSR.Env == EnvDevelopment
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Path resolves p against the configured project root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.SSR.Root, p)
}

// APITimeout is the per-request timeout for Directus calls, zero when unset or invalid.
func (c *Config) APITimeout() time.Duration {
	d, ok := ParseDuration(c.API.Timeout)
	if !ok {
		return 0
	}
	return d
}

// ParseSameSite maps the configured policy name to an [http.SameSite], defaulting to strict.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("%w: same_site must be lax, strict or none, got %q", ErrInvalidConfig, s)
	}
}
