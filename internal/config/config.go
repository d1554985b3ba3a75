// Package config loads paper-reader settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all paper-reader environment variables.
const EnvPrefix = "PAPER_READER_"

const (
	defaultRequestTimeout = 10 * time.Second
	defaultPollInterval   = time.Second
	defaultAdvanceDelay   = 500 * time.Millisecond
	defaultSampleInterval = 100 * time.Millisecond
)

// Config holds all client configuration. Durations are kept as strings so the
// YAML stays human-editable; use the Parsed accessors.
type Config struct {
	BackendURL     string `yaml:"backend_url"`
	RequestTimeout string `yaml:"request_timeout"`
	PollInterval   string `yaml:"poll_interval"`
	MaxPolls       int    `yaml:"max_polls"`
	AdvanceDelay   string `yaml:"advance_delay"`
	SampleInterval string `yaml:"sample_interval"`
	MPVPath        string `yaml:"mpv_path"`
	SocketDir      string `yaml:"socket_dir"`
	HistoryDB      string `yaml:"history_db"`
	LogFile        string `yaml:"log_file"`
}

func defaults() Config {
	return Config{
		BackendURL:     "http://localhost:8000",
		RequestTimeout: defaultRequestTimeout.String(),
		PollInterval:   defaultPollInterval.String(),
		AdvanceDelay:   defaultAdvanceDelay.String(),
		SampleInterval: defaultSampleInterval.String(),
		MPVPath:        "mpv",
		HistoryDB:      DefaultHistoryPath(),
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "paper-reader.yaml"
	}
	return filepath.Join(dir, "paper-reader", "config.yaml")
}

// DefaultHistoryPath returns the default job history database location.
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("data", "history.sqlite")
	}
	return filepath.Join(dir, "paper-reader", "history.sqlite")
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, and validates the result. It returns the
// config, any validation warnings, and an error if the file exists but cannot
// be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedRequestTimeout returns RequestTimeout as a time.Duration, falling back
// to 10s if the value is invalid.
func (c *Config) ParsedRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, defaultRequestTimeout)
}

// ParsedPollInterval returns the delay between status queries.
func (c *Config) ParsedPollInterval() time.Duration {
	return parseDuration(c.PollInterval, defaultPollInterval)
}

// ParsedAdvanceDelay returns the pause inserted before the next segment starts.
// Zero is allowed and means advance immediately.
func (c *Config) ParsedAdvanceDelay() time.Duration {
	d, err := time.ParseDuration(c.AdvanceDelay)
	if err != nil || d < 0 {
		return defaultAdvanceDelay
	}
	return d
}

// ParsedSampleInterval returns the position sampling cadence.
func (c *Config) ParsedSampleInterval() time.Duration {
	return parseDuration(c.SampleInterval, defaultSampleInterval)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_POLLS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.MaxPolls = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ADVANCE_DELAY"); v != "" {
		cfg.AdvanceDelay = v
	}
	if v := os.Getenv(EnvPrefix + "SAMPLE_INTERVAL"); v != "" {
		cfg.SampleInterval = v
	}
	if v := os.Getenv(EnvPrefix + "MPV_PATH"); v != "" {
		cfg.MPVPath = v
	}
	if v := os.Getenv(EnvPrefix + "SOCKET_DIR"); v != "" {
		cfg.SocketDir = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "HISTORY_DB"); ok {
		cfg.HistoryDB = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.BackendURL == "" {
		cfg.BackendURL = defaults().BackendURL
		warnings = append(warnings, "backend_url is empty, using "+cfg.BackendURL+".")
	}

	checks := []struct {
		name     string
		value    string
		fallback time.Duration
	}{
		{"request_timeout", cfg.RequestTimeout, defaultRequestTimeout},
		{"poll_interval", cfg.PollInterval, defaultPollInterval},
		{"sample_interval", cfg.SampleInterval, defaultSampleInterval},
	}
	for _, c := range checks {
		if d, err := time.ParseDuration(c.value); err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using default %s.", c.name, c.value, c.fallback))
		}
	}
	if d, err := time.ParseDuration(cfg.AdvanceDelay); err != nil || d < 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid advance_delay %q, using default %s.", cfg.AdvanceDelay, defaultAdvanceDelay))
	}
	if cfg.MaxPolls < 0 {
		cfg.MaxPolls = 0
		warnings = append(warnings, "max_polls must not be negative, polling is unbounded.")
	}
	if cfg.HistoryDB == "" {
		warnings = append(warnings, "history_db is empty, job history is disabled.")
	}

	return warnings
}
