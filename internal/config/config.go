// CLAUDE:SUMMARY On-disk config file (~/.config/kto/config.toml) loading composed with per-package defaults; no config-loading CLI/wizard, just the resolver.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devindudeman/kto/internal/fetch"
	"github.com/devindudeman/kto/internal/notify"
	"github.com/devindudeman/kto/internal/scheduler"
)

// Config is the root configuration composed from per-package defaults,
// overridden by an on-disk config file and environment variables.
type Config struct {
	Fetch               fetch.Config
	Scheduler           scheduler.Config
	DBPath              string
	QuietHours          notify.QuietHours
	ProfilePath         string        // optional path to an interest-profile YAML file
	DefaultIntervalSecs int64         // parsed from default_interval_secs; nothing in this module reads it
	DefaultNotify       string        // channel name used when a watch's notify_target is unset
	NotifyChannels      map[string]NotifyChannelConfig // keyed by channel name, from [notify.<name>] sections
}

// NotifyChannelConfig is one [notify.<name>] section: a channel type plus
// its raw key/value settings, resolved into a concrete Sender by the CLI.
type NotifyChannelConfig struct {
	Type     string
	Settings map[string]string
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
}

func defaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "kto", "kto.db")
	}
	return "kto.db"
}

// DefaultConfigPath returns ~/.config/kto/config.toml.
func DefaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "kto", "config.toml")
	}
	return "config.toml"
}

// Load reads path (if it exists) and $KTO_DB, layering them over defaults.
// A missing config file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = DefaultConfigPath()
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := applyTOML(cfg, string(data)); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if db := os.Getenv("KTO_DB"); db != "" {
		cfg.DBPath = db
	}

	cfg.defaults()
	return cfg, nil
}

// applyTOML parses a small TOML subset: top-level "key = value" pairs and
// "[section]" headers, enough for the flat scalar settings kto exposes.
// No arrays-of-tables, no nested inline tables, no comments-mid-value.
// This is deliberately minimal rather than a full TOML implementation.
func applyTOML(cfg *Config, data string) error {
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq == -1 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.Trim(strings.TrimSpace(line[eq+1:]), `"`)
		if err := setField(cfg, section, key, val); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func setField(cfg *Config, section, key, val string) error {
	if name, ok := strings.CutPrefix(section, "notify."); ok {
		setNotifyChannelField(cfg, name, key, val)
		return nil
	}
	switch section {
	case "":
		switch key {
		case "db_path":
			cfg.DBPath = val
		case "profile_path":
			cfg.ProfilePath = val
		case "default_notify":
			cfg.DefaultNotify = val
		case "default_interval_secs":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return err
			}
			cfg.DefaultIntervalSecs = n
		}
	case "rate_limits":
		rate, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		if cfg.Fetch.RateLimits == nil {
			cfg.Fetch.RateLimits = map[string]float64{}
		}
		cfg.Fetch.RateLimits[key] = rate
	case "fetch":
		switch key {
		case "timeout_secs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.Fetch.Timeout = time.Duration(n) * time.Second
		case "max_bytes":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return err
			}
			cfg.Fetch.MaxBytes = n
		case "user_agent":
			cfg.Fetch.UserAgent = val
		}
	case "scheduler":
		switch key {
		case "poll_interval_secs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.Scheduler.PollInterval = time.Duration(n) * time.Second
		case "max_concurrency":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.Scheduler.MaxConcurrency = n
		case "max_fail_count":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.Scheduler.MaxFailCount = n
		}
	case "quiet_hours":
		switch key {
		case "start_secs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.QuietHours.Start = time.Duration(n) * time.Second
		case "end_secs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			cfg.QuietHours.End = time.Duration(n) * time.Second
		}
	}
	// unknown sections/keys are ignored, not an error
	return nil
}

// setNotifyChannelField records one key of a [notify.<name>] section. "type"
// selects the sender kind (slack, ntfy, command, ...); every other key is a
// raw setting the CLI's channel builder interprets per type.
func setNotifyChannelField(cfg *Config, name, key, val string) {
	if cfg.NotifyChannels == nil {
		cfg.NotifyChannels = map[string]NotifyChannelConfig{}
	}
	ch := cfg.NotifyChannels[name]
	if key == "type" {
		ch.Type = val
	} else {
		if ch.Settings == nil {
			ch.Settings = map[string]string{}
		}
		ch.Settings[key] = val
	}
	cfg.NotifyChannels[name] = ch
}
