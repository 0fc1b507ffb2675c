// CLAUDE:SUMMARY CLI entry point for kto: one-shot "run" and long-lived "daemon" modes. No wizard, no TUI, no config-file editor.
// Command kto is a universal web change detector: fetch, extract,
// normalize, diff, filter, optionally consult an external agent, and
// notify.
//
// Usage:
//
//	kto run                 # check every due watch once and exit
//	kto daemon               # poll continuously until SIGINT/SIGTERM
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/devindudeman/kto/internal/agent"
	"github.com/devindudeman/kto/internal/config"
	"github.com/devindudeman/kto/internal/dbopen"
	"github.com/devindudeman/kto/internal/fetch"
	"github.com/devindudeman/kto/internal/notify"
	"github.com/devindudeman/kto/internal/pipeline"
	"github.com/devindudeman/kto/internal/scheduler"
	"github.com/devindudeman/kto/internal/store"
)

// Exit codes: 0 success, 2 usage error, 3 configuration/startup error.
// exitRunError (4) is declared but run never returns it: watch check
// failures are logged by the scheduler and a run still exits 0.
const (
	exitOK       = 0
	exitUsage    = 2
	exitStartup  = 3
	exitRunError = 4
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default ~/.config/kto/config.toml)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: kto [-config path] [-log-level level] <run|daemon>")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(exitUsage)
	}
	mode := flag.Arg(0)
	if mode != "run" && mode != "daemon" {
		flag.Usage()
		os.Exit(exitUsage)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, logger, *configPath, mode)
	os.Exit(code)
}

// buildRegistry constructs one Sender per configured [notify.<name>]
// section and registers it under that name, plus wires the default_notify
// key as the registry's fallback channel.
func buildRegistry(cfg *config.Config) (*notify.Registry, error) {
	reg := notify.NewRegistry()
	reg.DefaultChannel = cfg.DefaultNotify
	for name, ch := range cfg.NotifyChannels {
		sender, err := buildSender(name, ch)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		reg.Register(name, sender)
	}
	return reg, nil
}

func buildSender(name string, ch config.NotifyChannelConfig) (notify.Sender, error) {
	s := ch.Settings
	switch ch.Type {
	case "ntfy":
		return notify.NewNtfySender(name, notify.NtfyConfig{ServerURL: s["server_url"], Topic: s["topic"]}), nil
	case "gotify":
		return notify.NewGotifySender(name, notify.GotifyConfig{ServerURL: s["server_url"], AppToken: s["app_token"]}), nil
	case "slack":
		return notify.NewSlackSender(name, notify.SlackConfig{WebhookURL: s["webhook_url"]}), nil
	case "discord":
		return notify.NewDiscordSender(name, notify.DiscordConfig{WebhookURL: s["webhook_url"]}), nil
	case "telegram":
		return notify.NewTelegramSender(name, notify.TelegramConfig{BotToken: s["bot_token"], ChatID: s["chat_id"]}), nil
	case "pushover":
		return notify.NewPushoverSender(name, notify.PushoverConfig{AppToken: s["app_token"], UserKey: s["user_key"]}), nil
	case "matrix":
		return notify.NewMatrixSender(name, notify.MatrixConfig{SendURL: s["send_url"]}), nil
	case "command":
		return notify.NewCommandSender(name, s["command"], strings.Fields(s["args"])...), nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", ch.Type)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, mode string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("kto: load config", "error", err)
		return exitStartup
	}

	db, err := dbopen.Open(cfg.DBPath, store.ApplySchema, dbopen.WithMkdirAll())
	if err != nil {
		logger.Error("kto: open database", "error", err)
		return exitStartup
	}
	defer db.Close()

	st := store.NewStore(db)
	fetcher := fetch.New(cfg.Fetch)
	notifyRegistry, err := buildRegistry(cfg)
	if err != nil {
		logger.Error("kto: configure notify channels", "error", err)
		return exitStartup
	}

	p := pipeline.New(st, fetcher, notifyRegistry)
	p.Logger = logger
	p.QuietHours = cfg.QuietHours

	if cfg.ProfilePath != "" {
		profile, err := agent.LoadProfile(cfg.ProfilePath)
		if err != nil {
			logger.Error("kto: load interest profile", "error", err)
			return exitStartup
		}
		p.Profile = profile
	}

	sched := scheduler.New(st, p, cfg.Scheduler, logger)

	switch mode {
	case "run":
		sched.RunOnce(ctx)
	case "daemon":
		sched.Run(ctx)
	}
	return exitOK
}
