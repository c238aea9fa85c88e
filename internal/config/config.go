// Package config loads the CLI configuration.
//
// Values come from, in increasing precedence: built-in defaults,
// $OKR_HOME/config.yaml, a .env file and the process environment, then flags.
// Flags are applied by the caller.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/okr/internal/errors"
)

// Environment variables
const (
	EnvHome     = "OKR_HOME"
	EnvAPIURL   = "OKR_API_URL"
	EnvLogLevel = "OKR_LOG_LEVEL"
	EnvFormat   = "OKR_FORMAT"
	EnvOTLP     = "OKR_OTLP_ENDPOINT"
	EnvNoColor  = "NO_COLOR"
)

const (
	fileName    = "config.yaml"
	stateName   = "state.json"
	defaultHome = ".okr"
	dotEnvName  = ".env"
)

// Config is the CLI configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

type APIConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
}

type OAuthConfig struct {
	CallbackAddr string `yaml:"callback_addr"` // host:port of the loopback listener
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text", "json"
}

type OutputConfig struct {
	Format  string `yaml:"format"` // "text", "json", "yaml"
	NoColor bool   `yaml:"no_color,omitempty"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"` // OTLP/HTTP collector host:port
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:       "http://localhost:3000/api",
			Timeout:   10 * time.Second,
			RateLimit: 20,
		},
		OAuth: OAuthConfig{
			CallbackAddr: "127.0.0.1:8765",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Home returns the configuration directory: $OKR_HOME, or ~/.okr.
func Home() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to get home directory", err).
			WithSuggestion(fmt.Sprintf("Set %s to choose a configuration directory", EnvHome))
	}
	return filepath.Join(userHome, defaultHome), nil
}

// Path returns the configuration file inside home.
func Path(home string) string {
	return filepath.Join(home, fileName)
}

// StatePath returns the persisted session state file inside home.
func StatePath(home string) string {
	return filepath.Join(home, stateName)
}

// Load reads home's config file over the defaults. A missing file is not an error.
func Load(home string) (*Config, error) {
	cfg := Default()

	path := Path(home)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to parse %s", path), err).
			WithSuggestion("Run 'okr config view' after fixing the file, or delete it to restore defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, dotEnvName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to load %s", path), err)
	}
	return nil
}

// ApplyEnv overrides cfg with the OKR_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvFormat); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv(EnvOTLP); v != "" {
		c.Telemetry.Endpoint = v
	}
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		c.Output.NoColor = true
	}
}

// Validate checks the values Load cannot repair.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("api.url %q is not an absolute URL", c.API.URL)).
			WithSuggestion("Use a value such as http://localhost:3000/api")
	}
	if c.API.Timeout < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "api.timeout must not be negative")
	}
	if c.API.RateLimit < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "api.rate_limit must not be negative")
	}
	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("output.format %q is not supported", c.Output.Format)).
			WithSuggestion("Use text, json or yaml")
	}
	return nil
}

// Save writes cfg to home's config file, creating home if needed.
func Save(cfg *Config, home string) error {
	if err := os.MkdirAll(home, 0700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to marshal config", err)
	}

	if err := os.WriteFile(Path(home), data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}

// Keys returns the keys accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(accessors))
	for k := range accessors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type accessor struct {
	get func(*Config) string
	set func(*Config, string) error
}

var accessors = map[string]accessor{
	"api.url": {
		get: func(c *Config) string { return c.API.URL },
		set: func(c *Config, v string) error { c.API.URL = v; return nil },
	},
	"api.timeout": {
		get: func(c *Config) string { return c.API.Timeout.String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			c.API.Timeout = d
			return nil
		},
	},
	"api.rate_limit": {
		get: func(c *Config) string { return strconv.FormatFloat(c.API.RateLimit, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			c.API.RateLimit = f
			return nil
		},
	},
	"oauth.callback_addr": {
		get: func(c *Config) string { return c.OAuth.CallbackAddr },
		set: func(c *Config, v string) error { c.OAuth.CallbackAddr = v; return nil },
	},
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error { c.Logging.Level = v; return nil },
	},
	"logging.format": {
		get: func(c *Config) string { return c.Logging.Format },
		set: func(c *Config, v string) error { c.Logging.Format = v; return nil },
	},
	"output.format": {
		get: func(c *Config) string { return c.Output.Format },
		set: func(c *Config, v string) error { c.Output.Format = v; return nil },
	},
	"output.no_color": {
		get: func(c *Config) string { return strconv.FormatBool(c.Output.NoColor) },
		set: func(c *Config, v string) error { c.Output.NoColor = parseBool(v); return nil },
	},
	"telemetry.endpoint": {
		get: func(c *Config) string { return c.Telemetry.Endpoint },
		set: func(c *Config, v string) error { c.Telemetry.Endpoint = v; return nil },
	},
}

// Get returns the value of a dotted key such as "api.url".
func (c *Config) Get(key string) (string, error) {
	a, ok := accessors[key]
	if !ok {
		return "", errors.NewConfigKeyError(key)
	}
	return a.get(c), nil
}

// Set assigns a dotted key from its string form and revalidates.
func (c *Config) Set(key, value string) error {
	a, ok := accessors[key]
	if !ok {
		return errors.NewConfigKeyError(key)
	}
	if err := a.set(c, value); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s: %q", key, value), err)
	}
	return c.Validate()
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "yes" || s == "1"
}
