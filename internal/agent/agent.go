// CLAUDE:SUMMARY Runs the external agent subprocess as a JSON-in/JSON-out black box, degrading gracefully on any failure.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"time"

	"github.com/devindudeman/kto/internal/store"
)

// Timeout is the hard limit imposed on the agent subprocess. The agent's
// own internals (which LLM it calls, how it prompts) are out of scope;
// kto only owns the contract at the process boundary.
const Timeout = 60 * time.Second

// Request is the JSON object written to the agent subprocess's stdin.
type Request struct {
	WatchName    string                 `json:"watch_name"`
	Instructions string                 `json:"instructions,omitempty"`
	OldContent   string                 `json:"old_content"`
	NewContent   string                 `json:"new_content"`
	Diff         string                 `json:"diff"`
	Memory       map[string]interface{} `json:"memory,omitempty"`
	Profile      *Profile               `json:"profile,omitempty"`
}

// Profile is the optional interest-profile document consulted when a
// watch's agent config sets use_profile.
type Profile struct {
	Description string          `json:"description"`
	Interests   []ProfileInterest `json:"interests"`
}

// ProfileInterest is one weighted topic in an interest profile.
type ProfileInterest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Weight   float64  `json:"weight"`
	Scope    string   `json:"scope,omitempty"`
}

// Config configures the subprocess adapter.
type Config struct {
	Command string
	Timeout time.Duration
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.Command == "" {
		c.Command = "kto-agent"
	}
	if c.Timeout == 0 {
		c.Timeout = Timeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Adapter invokes the configured agent command per change.
type Adapter struct {
	config Config
}

func New(cfg Config) *Adapter {
	cfg.defaults()
	return &Adapter{config: cfg}
}

// Consult runs the agent subprocess and returns its verdict. On any
// failure — timeout, non-zero exit, malformed JSON reply — Consult
// returns nil: the pipeline degrades to its filter-only decision
// rather than treating an agent failure as a fetch failure.
func (a *Adapter) Consult(ctx context.Context, w *store.Watch, req Request) *store.AgentVerdict {
	runCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		a.config.Logger.Warn("agent: encode request failed", "watch", w.Name, "error", err)
		return nil
	}

	cmd := exec.CommandContext(runCtx, a.config.Command)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() != nil {
		a.config.Logger.Warn("agent: timed out", "watch", w.Name)
		return nil
	}
	if err != nil {
		a.config.Logger.Warn("agent: exited non-zero", "watch", w.Name, "error", err, "stderr", stderr.String())
		return nil
	}

	var verdict store.AgentVerdict
	if err := json.Unmarshal(stdout.Bytes(), &verdict); err != nil {
		a.config.Logger.Warn("agent: malformed reply", "watch", w.Name, "error", err)
		return nil
	}
	return &verdict
}

// BuildRequest assembles the subprocess request from pipeline state.
func BuildRequest(w *store.Watch, oldContent, newContent, diffText string, memory map[string]interface{}, profile *Profile) Request {
	req := Request{
		WatchName:    w.Name,
		Instructions: w.AgentConfig.Instructions,
		OldContent:   oldContent,
		NewContent:   newContent,
		Diff:         diffText,
		Memory:       memory,
	}
	if w.AgentConfig.UseProfile {
		req.Profile = profile
	}
	return req
}

// MergeMemory folds an agent verdict's memory updates into an existing
// memory document, overwriting keys present in the update.
func MergeMemory(memory map[string]interface{}, updates map[string]interface{}) map[string]interface{} {
	if memory == nil {
		memory = map[string]interface{}{}
	}
	for k, v := range updates {
		memory[k] = v
	}
	return memory
}

// FinalNotify resolves whether to notify when the agent is enabled. The
// agent can only veto a notification the filters already approved, never
// overturn a filterPassed=false decision; on agent failure (verdict == nil)
// the filter's own decision stands.
func FinalNotify(verdict *store.AgentVerdict, filterPassed bool) bool {
	if verdict == nil {
		return filterPassed
	}
	return filterPassed && verdict.Notify
}
