// CLAUDE:SUMMARY Concrete Sender implementations for each notification channel; each owns only its own wire format.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

// httpSender is the shared shape behind every HTTP-based channel (ntfy,
// Gotify, Slack, Discord, Telegram, Pushover, Matrix): build a request body
// (JSON for most, plain text for ntfy, form-encoded for Pushover), POST it,
// treat any non-2xx response as a send failure.
type httpSender struct {
	name       string
	platform   string
	endpoint   string
	buildBody  func(Message) ([]byte, string) // returns body and content-type
	extraHead  map[string]string
	client     *http.Client
}

func (s *httpSender) Name() string { return s.name }

func (s *httpSender) Send(ctx context.Context, msg Message) error {
	body, contentType := s.buildBody(msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &ErrSendFailed{Channel: s.name, Platform: s.platform, Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range s.extraHead {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &ErrSendFailed{Channel: s.name, Platform: s.platform, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &ErrSendFailed{Channel: s.name, Platform: s.platform, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// NtfyConfig configures a delivery to an ntfy topic.
type NtfyConfig struct {
	ServerURL string // e.g. "https://ntfy.sh"
	Topic     string
}

func NewNtfySender(name string, cfg NtfyConfig) Sender {
	endpoint := strings.TrimRight(cfg.ServerURL, "/") + "/" + cfg.Topic
	return &httpSender{
		name: name, platform: "ntfy", endpoint: endpoint, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			return []byte(m.Body), "text/plain"
		},
		extraHead: map[string]string{},
	}
}

// GotifyConfig configures a delivery to a self-hosted Gotify server.
type GotifyConfig struct {
	ServerURL string
	AppToken  string
}

func NewGotifySender(name string, cfg GotifyConfig) Sender {
	endpoint := strings.TrimRight(cfg.ServerURL, "/") + "/message?token=" + url.QueryEscape(cfg.AppToken)
	return &httpSender{
		name: name, platform: "gotify", endpoint: endpoint, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			payload := map[string]string{"title": m.Title, "message": m.Body}
			b, _ := json.Marshal(payload)
			return b, "application/json"
		},
	}
}

// SlackConfig configures a delivery to an incoming Slack webhook.
type SlackConfig struct {
	WebhookURL string
}

func NewSlackSender(name string, cfg SlackConfig) Sender {
	return &httpSender{
		name: name, platform: "slack", endpoint: cfg.WebhookURL, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			text := m.Title
			if m.Body != "" {
				text += "\n" + m.Body
			}
			if m.URL != "" {
				text += "\n" + m.URL
			}
			b, _ := json.Marshal(map[string]string{"text": text})
			return b, "application/json"
		},
	}
}

// DiscordConfig configures a delivery to a Discord webhook.
type DiscordConfig struct {
	WebhookURL string
}

func NewDiscordSender(name string, cfg DiscordConfig) Sender {
	return &httpSender{
		name: name, platform: "discord", endpoint: cfg.WebhookURL, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			content := fmt.Sprintf("**%s**\n%s", m.Title, m.Body)
			if m.URL != "" {
				content += "\n" + m.URL
			}
			b, _ := json.Marshal(map[string]string{"content": content})
			return b, "application/json"
		},
	}
}

// TelegramConfig configures delivery via the Bot API sendMessage call.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

func NewTelegramSender(name string, cfg TelegramConfig) Sender {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken)
	return &httpSender{
		name: name, platform: "telegram", endpoint: endpoint, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			text := m.Title
			if m.Body != "" {
				text += "\n" + m.Body
			}
			b, _ := json.Marshal(map[string]string{"chat_id": cfg.ChatID, "text": text})
			return b, "application/json"
		},
	}
}

// PushoverConfig configures delivery via the Pushover message API.
type PushoverConfig struct {
	AppToken string
	UserKey  string
}

func NewPushoverSender(name string, cfg PushoverConfig) Sender {
	return &httpSender{
		name: name, platform: "pushover", endpoint: "https://api.pushover.net/1/messages.json", client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			form := url.Values{
				"token":   {cfg.AppToken},
				"user":    {cfg.UserKey},
				"title":   {m.Title},
				"message": {m.Body},
			}
			if m.URL != "" {
				form.Set("url", m.URL)
			}
			return []byte(form.Encode()), "application/x-www-form-urlencoded"
		},
	}
}

// MatrixConfig configures delivery to a Matrix room via a homeserver's
// client-server API send endpoint (already including access_token).
type MatrixConfig struct {
	SendURL string // e.g. "https://matrix.org/_matrix/client/v3/rooms/!id/send/m.room.message/txn?access_token=..."
}

func NewMatrixSender(name string, cfg MatrixConfig) Sender {
	return &httpSender{
		name: name, platform: "matrix", endpoint: cfg.SendURL, client: newHTTPClient(),
		buildBody: func(m Message) ([]byte, string) {
			body := m.Title
			if m.Body != "" {
				body += "\n" + m.Body
			}
			b, _ := json.Marshal(map[string]string{"msgtype": "m.text", "body": body})
			return b, "application/json"
		},
	}
}

// commandSender runs an external command, passing the message via
// TITLE/SUMMARY/URL environment variables. This is the escape hatch for any
// transport not built in.
type commandSender struct {
	name    string
	command string
	args    []string
}

// NewCommandSender builds a Sender that execs command with args, exporting
// the message as TITLE/SUMMARY/URL in the subprocess's environment.
func NewCommandSender(name, command string, args ...string) Sender {
	return &commandSender{name: name, command: command, args: args}
}

func (s *commandSender) Name() string { return s.name }

func (s *commandSender) Send(ctx context.Context, msg Message) error {
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Env = append(os.Environ(),
		"TITLE="+msg.Title,
		"SUMMARY="+msg.Body,
		"URL="+msg.URL,
	)
	if err := cmd.Run(); err != nil {
		return &ErrSendFailed{Channel: s.name, Platform: "command", Cause: err}
	}
	return nil
}
