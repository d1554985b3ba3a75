package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BACKEND_URL", "REQUEST_TIMEOUT", "POLL_INTERVAL", "MAX_POLLS",
		"ADVANCE_DELAY", "SAMPLE_INTERVAL", "MPV_PATH", "SOCKET_DIR",
		"HISTORY_DB", "LOG_FILE",
	} {
		t.Setenv(EnvPrefix+key, "")
		// HISTORY_DB distinguishes unset from empty.
		_ = os.Unsetenv(EnvPrefix + key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("expected default backend_url, got %q", cfg.BackendURL)
	}
	if cfg.ParsedPollInterval() != time.Second {
		t.Fatalf("expected poll interval 1s, got %s", cfg.ParsedPollInterval())
	}
	if cfg.ParsedAdvanceDelay() != 500*time.Millisecond {
		t.Fatalf("expected advance delay 500ms, got %s", cfg.ParsedAdvanceDelay())
	}
	if cfg.ParsedSampleInterval() != 100*time.Millisecond {
		t.Fatalf("expected sample interval 100ms, got %s", cfg.ParsedSampleInterval())
	}
	if cfg.MaxPolls != 0 {
		t.Fatalf("expected unbounded polling by default, got %d", cfg.MaxPolls)
	}
	if cfg.MPVPath != "mpv" {
		t.Fatalf("expected default mpv_path, got %q", cfg.MPVPath)
	}
	if cfg.HistoryDB == "" {
		t.Fatal("expected a default history_db path")
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
backend_url: http://narrator.local:9000/
request_timeout: 3s
poll_interval: 2s
max_polls: 120
advance_delay: 0s
sample_interval: 250ms
mpv_path: /opt/mpv/bin/mpv
socket_dir: /tmp/sockets
history_db: /custom/history.sqlite
log_file: /tmp/paper-reader.log
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BackendURL != "http://narrator.local:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.ParsedRequestTimeout() != 3*time.Second {
		t.Fatalf("expected yaml request_timeout, got %s", cfg.ParsedRequestTimeout())
	}
	if cfg.ParsedPollInterval() != 2*time.Second {
		t.Fatalf("expected yaml poll_interval, got %s", cfg.ParsedPollInterval())
	}
	if cfg.MaxPolls != 120 {
		t.Fatalf("expected yaml max_polls, got %d", cfg.MaxPolls)
	}
	if cfg.ParsedAdvanceDelay() != 0 {
		t.Fatalf("expected zero advance delay to be honoured, got %s", cfg.ParsedAdvanceDelay())
	}
	if cfg.ParsedSampleInterval() != 250*time.Millisecond {
		t.Fatalf("expected yaml sample_interval, got %s", cfg.ParsedSampleInterval())
	}
	if cfg.MPVPath != "/opt/mpv/bin/mpv" {
		t.Fatalf("expected yaml mpv_path, got %q", cfg.MPVPath)
	}
	if cfg.SocketDir != "/tmp/sockets" {
		t.Fatalf("expected yaml socket_dir, got %q", cfg.SocketDir)
	}
	if cfg.HistoryDB != "/custom/history.sqlite" {
		t.Fatalf("expected yaml history_db, got %q", cfg.HistoryDB)
	}
	if cfg.LogFile != "/tmp/paper-reader.log" {
		t.Fatalf("expected yaml log_file, got %q", cfg.LogFile)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("backend_url: http://from-yaml\nmax_polls: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvPrefix+"BACKEND_URL", "http://from-env")
	t.Setenv(EnvPrefix+"MAX_POLLS", "9")
	t.Setenv(EnvPrefix+"ADVANCE_DELAY", "750ms")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendURL != "http://from-env" {
		t.Fatalf("expected env backend_url, got %q", cfg.BackendURL)
	}
	if cfg.MaxPolls != 9 {
		t.Fatalf("expected env max_polls, got %d", cfg.MaxPolls)
	}
	if cfg.ParsedAdvanceDelay() != 750*time.Millisecond {
		t.Fatalf("expected env advance_delay, got %s", cfg.ParsedAdvanceDelay())
	}
}

func TestEmptyHistoryEnvDisablesHistory(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"HISTORY_DB", "")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HistoryDB != "" {
		t.Fatalf("expected history disabled, got %q", cfg.HistoryDB)
	}
	if !containsWarning(warnings, "history_db") {
		t.Fatalf("expected history warning, got %v", warnings)
	}
}

func TestInvalidDurationsWarnAndFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"POLL_INTERVAL", "soon")
	t.Setenv(EnvPrefix+"ADVANCE_DELAY", "-1s")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ParsedPollInterval() != time.Second {
		t.Fatalf("expected fallback poll interval, got %s", cfg.ParsedPollInterval())
	}
	if cfg.ParsedAdvanceDelay() != 500*time.Millisecond {
		t.Fatalf("expected fallback advance delay, got %s", cfg.ParsedAdvanceDelay())
	}
	if !containsWarning(warnings, "poll_interval") || !containsWarning(warnings, "advance_delay") {
		t.Fatalf("expected duration warnings, got %v", warnings)
	}
}

func TestMalformedYAMLIsAnError(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("backend_url: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("expected default backend_url, got %q", cfg.BackendURL)
	}
}

func containsWarning(warnings []string, needle string) bool {
	for _, w := range warnings {
		if strings.Contains(w, needle) {
			return true
		}
	}
	return false
}
