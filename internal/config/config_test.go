package config

import (
	"os"
	"path/filepath"
	"testing"
)

func minimalConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[server]
port = 8080

[source]
url = "http://127.0.0.1:8080/data/aircraft.json"

[store]
type = "fs"
root = "` + filepath.Join(dir, "artifacts") + `"

[storage]
sqlite_base_path = "` + filepath.Join(dir, "db") + `"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := minimalConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Source.FetchIntervalSecs != 1 {
		t.Errorf("FetchIntervalSecs = %d, want 1", cfg.Source.FetchIntervalSecs)
	}
	if cfg.Source.VisibilityTimeoutSecs != 30 {
		t.Errorf("VisibilityTimeoutSecs = %d, want 30", cfg.Source.VisibilityTimeoutSecs)
	}
	if cfg.Tracker.GapMinutes != 5 {
		t.Errorf("GapMinutes = %d, want 5", cfg.Tracker.GapMinutes)
	}
	if cfg.Tracker.MinDurationSec != 30 {
		t.Errorf("MinDurationSec = %d, want 30", cfg.Tracker.MinDurationSec)
	}
	if cfg.Tracker.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Tracker.Workers)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging defaults = %s/%s, want info/console", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestValidateRejectsBadStore(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.Store.Type = "s3"
	cfg.Store.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted an s3 store with no endpoint")
	}

	cfg = minimalConfig(t)
	cfg.Store.Type = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted an unknown store type")
	}
}
