// Package config loads storesync configuration.
//
// Sources are applied in increasing precedence: built-in defaults, an
// optional YAML file, STORESYNC_* environment variables, then command-line
// flags (applied by the CLI on top of the loaded value).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storesync/internal/remote"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STORESYNC_"

// Config holds all storesync settings.
type Config struct {
	// Database is the local SQLite file.
	Database string `yaml:"database"`
	// RemoteURL is the base URL of the profile and catalog service. Empty
	// runs the engine offline.
	RemoteURL string `yaml:"remote_url"`
	// RealtimeURL is the realtime feed endpoint, derived from RemoteURL
	// when empty.
	RealtimeURL string `yaml:"realtime_url"`

	WritebackDelay time.Duration `yaml:"writeback_delay"`
	SpinDuration   time.Duration `yaml:"spin_duration"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MissionCatalog optionally replaces the embedded CUE catalog.
	MissionCatalog string `yaml:"mission_catalog"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:       "storesync.db",
		WritebackDelay: 2 * time.Second,
		SpinDuration:   4 * time.Second,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("DATABASE", &c.Database)
	str("REMOTE_URL", &c.RemoteURL)
	str("REALTIME_URL", &c.RealtimeURL)
	str("MISSION_CATALOG", &c.MissionCatalog)
	str("LOG_LEVEL", &c.LogLevel)
	return errors.Join(
		dur("WRITEBACK_DELAY", &c.WritebackDelay),
		dur("SPIN_DURATION", &c.SpinDuration),
		dur("REQUEST_TIMEOUT", &c.RequestTimeout),
	)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.WritebackDelay <= 0 {
		errs = append(errs, fmt.Errorf("writeback_delay must be positive, got %s", c.WritebackDelay))
	}
	if c.SpinDuration <= 0 {
		errs = append(errs, fmt.Errorf("spin_duration must be positive, got %s", c.SpinDuration))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.RemoteURL != "" {
		if u, err := url.Parse(c.RemoteURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("remote_url %q must be an absolute http(s) URL", c.RemoteURL))
		}
	}
	if c.RealtimeURL != "" {
		if u, err := url.Parse(c.RealtimeURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("realtime_url %q must be a ws(s) URL", c.RealtimeURL))
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// FeedURL returns the realtime endpoint, derived from RemoteURL when not
// set explicitly. Empty when running offline.
func (c Config) FeedURL() (string, error) {
	if c.RealtimeURL != "" {
		return c.RealtimeURL, nil
	}
	if c.RemoteURL == "" {
		return "", nil
	}
	return remote.FeedURL(c.RemoteURL)
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q must be debug, info, warn or error", s)
}
