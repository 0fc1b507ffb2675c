package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("expected a default db path")
	}
}

func TestLoadParsesTOMLSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
db_path = "/var/lib/kto/kto.db"

[fetch]
timeout_secs = 15
user_agent = "kto-test/1.0"

[scheduler]
max_concurrency = 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/var/lib/kto/kto.db" {
		t.Errorf("db_path: got %q", cfg.DBPath)
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Errorf("fetch timeout: got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.UserAgent != "kto-test/1.0" {
		t.Errorf("user agent: got %q", cfg.Fetch.UserAgent)
	}
	if cfg.Scheduler.MaxConcurrency != 4 {
		t.Errorf("max concurrency: got %d", cfg.Scheduler.MaxConcurrency)
	}
}

func TestLoadParsesDefaultsRateLimitsAndNotifyChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
default_interval_secs = 3600
default_notify = "primary"

[rate_limits]
example.com = 0.5
slow.example.org = 0.1

[notify.primary]
type = "slack"
webhook_url = "https://hooks.slack.example/abc"

[notify.escape_hatch]
type = "command"
command = "/usr/local/bin/kto-notify"
args = "--quiet"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultIntervalSecs != 3600 {
		t.Errorf("default_interval_secs: got %d", cfg.DefaultIntervalSecs)
	}
	if cfg.DefaultNotify != "primary" {
		t.Errorf("default_notify: got %q", cfg.DefaultNotify)
	}
	if cfg.Fetch.RateLimits["example.com"] != 0.5 {
		t.Errorf("rate_limits[example.com]: got %v", cfg.Fetch.RateLimits["example.com"])
	}
	if cfg.Fetch.RateLimits["slow.example.org"] != 0.1 {
		t.Errorf("rate_limits[slow.example.org]: got %v", cfg.Fetch.RateLimits["slow.example.org"])
	}

	primary, ok := cfg.NotifyChannels["primary"]
	if !ok {
		t.Fatal("expected a notify.primary channel")
	}
	if primary.Type != "slack" || primary.Settings["webhook_url"] != "https://hooks.slack.example/abc" {
		t.Errorf("notify.primary: got %+v", primary)
	}

	hatch, ok := cfg.NotifyChannels["escape_hatch"]
	if !ok {
		t.Fatal("expected a notify.escape_hatch channel")
	}
	if hatch.Type != "command" || hatch.Settings["command"] != "/usr/local/bin/kto-notify" || hatch.Settings["args"] != "--quiet" {
		t.Errorf("notify.escape_hatch: got %+v", hatch)
	}
}

func TestEnvOverridesDBPath(t *testing.T) {
	t.Setenv("KTO_DB", "/tmp/env-override.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/env-override.db" {
		t.Errorf("db path: got %q, want env override", cfg.DBPath)
	}
}
