package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval     = 30 * time.Second
	DefaultResultTTL    = 10 * time.Minute
	DefaultQueryTimeout = 10 * time.Second
	DefaultMaxAge       = time.Hour
	DefaultListen       = ":9464"
)

// Config is the top-level agent configuration.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Interval controls how often every check is evaluated.
	Interval time.Duration `yaml:"interval"`

	// ResultTTL is how long a check result stays visible over HTTP after its
	// last evaluation.
	ResultTTL time.Duration `yaml:"result_ttl"`

	HTTP       HTTPConfig `yaml:"http"`
	Prometheus Prometheus `yaml:"prometheus"`
	Checks     []Check    `yaml:"checks"`
}

// HTTPConfig controls the agent's own HTTP surface (API, /metrics, /ws/stream).
type HTTPConfig struct {
	// Listen is the listen address. An explicit empty string disables the server.
	Listen string `yaml:"listen"`
}

// Prometheus describes the backend the checks run against.
type Prometheus struct {
	// Endpoint is the base URL of the Prometheus HTTP API, without /api/v1.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds a single range query round trip.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the agent authenticates to the backend.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// Check is one edge query evaluated on every interval.
type Check struct {
	// Name is a unique, human-readable identifier used in logs and labels.
	Name string `yaml:"name"`

	// Query is the PromQL expression. Only the first returned series is used.
	Query string `yaml:"query"`

	// From and To are the thresholds; From < To looks for a rising edge,
	// anything else for a falling one.
	From uint64 `yaml:"from"`
	To   uint64 `yaml:"to"`

	// MaxAge is the lookback window ending at evaluation time.
	MaxAge time.Duration `yaml:"max_age"`
}

// AuthConfig specifies the authentication mode for the backend.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields: used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields: used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name: used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields: used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for i := range cfg.Checks {
		if cfg.Checks[i].MaxAge == 0 {
			cfg.Checks[i].MaxAge = DefaultMaxAge
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		Interval:  DefaultInterval,
		ResultTTL: DefaultResultTTL,
		HTTP:      HTTPConfig{Listen: DefaultListen},
		Prometheus: Prometheus{
			Timeout: DefaultQueryTimeout,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if cfg.ResultTTL <= 0 {
		return fmt.Errorf("result_ttl must be positive")
	}
	if cfg.Prometheus.Endpoint == "" {
		return fmt.Errorf("prometheus.endpoint is required")
	}
	if cfg.Prometheus.Timeout <= 0 {
		return fmt.Errorf("prometheus.timeout must be positive")
	}
	switch cfg.Prometheus.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("prometheus.auth: unknown mode %q", cfg.Prometheus.Auth.Mode)
	}
	if cfg.Prometheus.Auth.Mode == "apikey" && cfg.Prometheus.Auth.Header == "" {
		return fmt.Errorf("prometheus.auth: apikey mode requires header")
	}
	if cfg.Prometheus.Auth.Mode == "mtls" && (cfg.Prometheus.Auth.CertFile == "" || cfg.Prometheus.Auth.KeyFile == "") {
		return fmt.Errorf("prometheus.auth: mtls mode requires cert_file and key_file")
	}

	seen := make(map[string]bool, len(cfg.Checks))
	for i, c := range cfg.Checks {
		if c.Name == "" {
			return fmt.Errorf("checks[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("checks[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Query == "" {
			return fmt.Errorf("checks[%d] %q: query is required", i, c.Name)
		}
		if c.MaxAge < 0 {
			return fmt.Errorf("checks[%d] %q: max_age must be positive", i, c.Name)
		}
	}
	return nil
}
