package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/okr/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.URL != "http://localhost:3000/api" {
		t.Errorf("API.URL = %s, want http://localhost:3000/api", cfg.API.URL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("API.Timeout = %s, want 10s", cfg.API.Timeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestHome(t *testing.T) {
	t.Setenv(EnvHome, "/tmp/okr-home")
	home, err := Home()
	if err != nil {
		t.Fatalf("Home() error = %v", err)
	}
	if home != "/tmp/okr-home" {
		t.Errorf("Home() = %s, want /tmp/okr-home", home)
	}
	if Path(home) != filepath.Join("/tmp/okr-home", "config.yaml") {
		t.Errorf("Path() = %s", Path(home))
	}
	if StatePath(home) != filepath.Join("/tmp/okr-home", "state.json") {
		t.Errorf("StatePath() = %s", StatePath(home))
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.URL != Default().API.URL {
		t.Errorf("API.URL = %s, want default", cfg.API.URL)
	}
}

func TestSaveAndLoad(t *testing.T) {
	home := filepath.Join(t.TempDir(), "okr")
	cfg := Default()
	cfg.API.URL = "https://okr.example.com/api"
	cfg.API.Timeout = 30 * time.Second
	cfg.Output.Format = "json"

	if err := Save(cfg, home); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(Path(home))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.URL != "https://okr.example.com/api" {
		t.Errorf("API.URL = %s", loaded.API.URL)
	}
	if loaded.API.Timeout != 30*time.Second {
		t.Errorf("API.Timeout = %s, want 30s", loaded.API.Timeout)
	}
	if loaded.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", loaded.Output.Format)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	data := []byte("api:\n  url: https://okr.example.com/api\n")
	if err := os.WriteFile(Path(home), data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.URL != "https://okr.example.com/api" {
		t.Errorf("API.URL = %s", cfg.API.URL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("API.Timeout = %s, want default 10s", cfg.API.Timeout)
	}
	if cfg.OAuth.CallbackAddr != "127.0.0.1:8765" {
		t.Errorf("OAuth.CallbackAddr = %s, want default", cfg.OAuth.CallbackAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "api: [\n"},
		{"relative url", "api:\n  url: /api\n"},
		{"unknown format", "output:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			if err := os.WriteFile(Path(home), []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(home)
			if !errors.Is(err, errors.ErrCodeConfigInvalid) {
				t.Errorf("Load() error = %v, want %s", err, errors.ErrCodeConfigInvalid)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://env.example.com/api")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvFormat, "yaml")
	t.Setenv(EnvOTLP, "localhost:4318")
	t.Setenv(EnvNoColor, "")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.API.URL != "https://env.example.com/api" {
		t.Errorf("API.URL = %s", cfg.API.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s", cfg.Logging.Level)
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("Output.Format = %s", cfg.Output.Format)
	}
	if cfg.Telemetry.Endpoint != "localhost:4318" {
		t.Errorf("Telemetry.Endpoint = %s", cfg.Telemetry.Endpoint)
	}
	if !cfg.Output.NoColor {
		t.Error("NO_COLOR should disable color even when empty")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	t.Setenv(EnvAPIURL, "https://env.example.com/api")
	content := "OKR_API_URL=https://dotenv.example.com/api\nOKR_TEST_DOTENV=loaded\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("OKR_TEST_DOTENV") })

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("OKR_TEST_DOTENV"); got != "loaded" {
		t.Errorf("OKR_TEST_DOTENV = %q, want loaded", got)
	}
	if got := os.Getenv(EnvAPIURL); got != "https://env.example.com/api" {
		t.Errorf(".env must not override the environment, got %q", got)
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"api.url", "https://okr.example.com/api", "https://okr.example.com/api"},
		{"api.timeout", "1m30s", "1m30s"},
		{"api.rate_limit", "2.5", "2.5"},
		{"oauth.callback_addr", "127.0.0.1:9999", "127.0.0.1:9999"},
		{"logging.level", "info", "info"},
		{"logging.format", "json", "json"},
		{"output.format", "yaml", "yaml"},
		{"output.no_color", "yes", "true"},
		{"telemetry.endpoint", "collector:4318", "collector:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%s) error = %v", tt.key, err)
			}
			got, err := cfg.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%s) = %s, want %s", tt.key, got, tt.want)
			}
		})
	}

	if len(Keys()) != len(tests) {
		t.Errorf("Keys() = %v, want %d keys", Keys(), len(tests))
	}
}

func TestSetErrors(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("budget.max", "1"); !errors.Is(err, errors.ErrCodeConfigKey) {
		t.Errorf("unknown key error = %v, want %s", err, errors.ErrCodeConfigKey)
	}
	if _, err := cfg.Get("budget.max"); !errors.Is(err, errors.ErrCodeConfigKey) {
		t.Errorf("unknown key error = %v, want %s", err, errors.ErrCodeConfigKey)
	}
	if err := cfg.Set("api.timeout", "soon"); !errors.Is(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("bad duration error = %v, want %s", err, errors.ErrCodeConfigInvalid)
	}
	if err := cfg.Set("output.format", "xml"); !errors.Is(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("bad format error = %v, want %s", err, errors.ErrCodeConfigInvalid)
	}
}
