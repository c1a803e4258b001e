// Package config resolves the kiosk runtime configuration from the process
// environment, optionally seeded from .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	localBaseURL = "http://localhost:3000"
	prodBaseURL  = "https://www.metrikpos.com"

	defaultAPIBaseURL    = "https://api.metrikpos.com"
	defaultListenAddr    = "127.0.0.1:47615"
	defaultFeedURL       = "https://api.github.com/repos/kensar/kiosk/releases/latest"
	defaultUpdateEvery   = 6 * time.Hour
	defaultShutdownAfter = 10 * time.Second

	appDirName = "kensar-kiosk"
)

// Env selects the endpoint family used for outward URLs.
type Env string

const (
	EnvLocal Env = "local"
	EnvProd  Env = "prod"
)

// PIN hash algorithms accepted by KIOSK_PIN_HASH.
const (
	PinHashSHA256   = "sha256"
	PinHashArgon2id = "argon2id"
)

// Config holds the kiosk runtime configuration.
type Config struct {
	Env             Env
	BaseURL         string // POS web app, selected by Env
	APIBaseURL      string // station authentication backend
	DataDir         string
	ListenAddr      string
	LogLevel        string // "debug", "info" (default), "warn", "error"
	LogFormat       string // "json" (default) or "text"
	Packaged        bool
	UpdateFeedURL   string
	UpdateInterval  time.Duration
	PinHash         string
	InstallCommand  string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // browser origin host patterns let through the control API
}

// LoginURL is the POS login page for the selected environment.
func (c Config) LoginURL() string {
	return c.BaseURL + "/login-pos"
}

// LoadEnvFiles loads .env and .env.local from the working directory.
// Variables already present in the environment are never overwritten.
// Returns the files that were loaded.
func LoadEnvFiles() []string {
	var loaded []string
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			continue
		}
		loaded = append(loaded, name)
	}
	return loaded
}

// Load reads configuration from environment variables with defaults.
// version is the running build's version; development builds are treated
// as unpackaged unless KIOSK_PACKAGED says otherwise.
func Load(version string) (Config, error) {
	cfg := Config{
		Env:             EnvProd,
		APIBaseURL:      defaultAPIBaseURL,
		ListenAddr:      defaultListenAddr,
		LogLevel:        "info",
		LogFormat:       "json",
		Packaged:        !isDevelopmentVersion(version),
		UpdateFeedURL:   defaultFeedURL,
		UpdateInterval:  defaultUpdateEvery,
		PinHash:         PinHashSHA256,
		ShutdownTimeout: defaultShutdownAfter,
	}

	if v := os.Getenv("POS_ENV"); strings.EqualFold(v, string(EnvLocal)) {
		cfg.Env = EnvLocal
	}
	cfg.BaseURL = prodBaseURL
	if cfg.Env == EnvLocal {
		cfg.BaseURL = localBaseURL
	}

	if v := os.Getenv("KIOSK_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("KIOSK_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("KIOSK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("KIOSK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := parseBoolEnv("KIOSK_PACKAGED"); v != nil {
		cfg.Packaged = *v
	}
	if v := os.Getenv("KIOSK_UPDATE_FEED_URL"); v != "" {
		cfg.UpdateFeedURL = v
	}
	if d, err := parseDurationEnv("KIOSK_UPDATE_INTERVAL"); err != nil {
		return cfg, err
	} else if d > 0 {
		cfg.UpdateInterval = d
	}
	if v := os.Getenv("KIOSK_PIN_HASH"); v != "" {
		switch strings.ToLower(v) {
		case PinHashSHA256, PinHashArgon2id:
			cfg.PinHash = strings.ToLower(v)
		default:
			return cfg, fmt.Errorf("KIOSK_PIN_HASH: unknown algorithm %q", v)
		}
	}
	if v := os.Getenv("KIOSK_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("KIOSK_INSTALL_CMD"); v != "" {
		cfg.InstallCommand = v
	}
	if d, err := parseDurationEnv("KIOSK_SHUTDOWN_TIMEOUT"); err != nil {
		return cfg, err
	} else if d > 0 {
		cfg.ShutdownTimeout = d
	}

	dir := os.Getenv("KIOSK_DATA_DIR")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, appDirName)
	}
	cfg.DataDir = dir

	return cfg, nil
}

// EnsureDataDir creates the private data directory.
func (c Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// isDevelopmentVersion mirrors the release checker's notion of a dev build.
func isDevelopmentVersion(v string) bool {
	if v == "" || v == "unknown" || v == "dev" || v == "devel" {
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	switch v {
	case "1", "true":
		b := true
		return &b
	case "0", "false":
		b := false
		return &b
	}
	return nil
}

// parseDurationEnv returns 0 when envKey is unset and an error when it is set
// to anything but a positive duration.
func parseDurationEnv(envKey string) (time.Duration, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envKey, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", envKey, v)
	}
	return d, nil
}
