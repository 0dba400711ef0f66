package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRequestTimeout is the per-call budget for the prediction API.
const DefaultRequestTimeout = 30 * time.Second

// DefaultSessionTTL is how long an idle browser session keeps its forms.
const DefaultSessionTTL = 2 * time.Hour

// Config holds the application configuration
type Config struct {
	Port           int
	DataDir        string
	APIBaseURL     string
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	LogLevel       string
	LogFormat      string
	Version        string
}

// apiURLKeys are checked in order; the NEXT_PUBLIC_ name keeps existing
// .env files from the web frontend working.
var apiURLKeys = []string{"EXO_API_URL", "NEXT_PUBLIC_API_URL", "API_URL"}

// Default returns a Config with every optional value filled in
func Default() Config {
	return Config{
		Port:           8080,
		RequestTimeout: DefaultRequestTimeout,
		SessionTTL:     DefaultSessionTTL,
		LogLevel:       "info",
		LogFormat:      "text",
		Version:        "dev",
	}
}

// Load reads .env files (when present) and then the process environment.
// Values already set in the environment are never overwritten by .env.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	for _, key := range apiURLKeys {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			cfg.APIBaseURL = v
			break
		}
	}

	if v := getenv("EXO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid EXO_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("EXO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("EXO_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid EXO_REQUEST_TIMEOUT %q", v)
		}
		cfg.RequestTimeout = d
	}
	if v := getenv("EXO_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid EXO_SESSION_TTL %q", v)
		}
		cfg.SessionTTL = d
	}
	if v := getenv("EXO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("EXO_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg, nil
}

// Validate checks that the settings needed to reach the prediction API are present
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("prediction API base URL is not set (EXO_API_URL)")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// DataStoreDir returns the per-user directory the portal keeps its data in
func DataStoreDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(base, "exoplanet-portal"), nil
}
