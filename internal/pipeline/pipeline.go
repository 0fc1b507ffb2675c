// CLAUDE:SUMMARY Composes fetch, extract, normalize, diff, filter, agent and notify around one watch check, per the store's transactional insert contract.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devindudeman/kto/internal/agent"
	"github.com/devindudeman/kto/internal/diff"
	"github.com/devindudeman/kto/internal/extract"
	"github.com/devindudeman/kto/internal/fetch"
	"github.com/devindudeman/kto/internal/filter"
	"github.com/devindudeman/kto/internal/ids"
	"github.com/devindudeman/kto/internal/normalize"
	"github.com/devindudeman/kto/internal/notify"
	"github.com/devindudeman/kto/internal/store"
)

// Clock lets tests substitute a fixed time source.
type Clock func() time.Time

// Pipeline runs the check algorithm for a single watch: fetch, extract,
// normalize, persist, diff, filter, optionally consult the agent, and
// notify.
type Pipeline struct {
	Store      *store.Store
	Fetcher    *fetch.Fetcher
	Agent      *agent.Adapter
	Notify     *notify.Registry
	Logger     *slog.Logger
	NewID      ids.Generator
	Now        Clock
	Profile    *agent.Profile
	QuietHours notify.QuietHours
}

func New(st *store.Store, fetcher *fetch.Fetcher, notifyRegistry *notify.Registry) *Pipeline {
	return &Pipeline{
		Store:   st,
		Fetcher: fetcher,
		Notify:  notifyRegistry,
		Logger:  slog.Default(),
		NewID:   ids.Default,
		Now:     time.Now,
	}
}

// CheckResult summarises the outcome of one Check call for callers that
// want to log or test it.
type CheckResult struct {
	Fetched    bool
	Changed    bool
	Notified   bool
	Error      error
}

// Check runs the full pipeline for one watch:
//  1. fetch raw bytes (conditional GET where supported)
//  2. extract a content slice per the watch's strategy
//  3. normalize and hash it
//  4. compare against the latest snapshot's hash
//  5. on a hash change: insert snapshot + change atomically, diff, filter
//  6. optionally consult the agent
//  7. notify unless suppressed
func (p *Pipeline) Check(ctx context.Context, w *store.Watch) CheckResult {
	p.retryPending(ctx, w)

	latest, err := p.Store.LatestSnapshot(ctx, w.ID)
	if err != nil {
		return CheckResult{Error: fmt.Errorf("pipeline: load latest snapshot: %w", err)}
	}
	var prevETag, prevLastMod, prevRawHash, prevContentHash, prevExtracted string
	if latest != nil {
		prevETag, prevLastMod, prevRawHash, prevContentHash, prevExtracted =
			latest.ETag, latest.LastMod, latest.RawHash, latest.ContentHash, latest.Extracted
	}

	result, err := p.Fetcher.Fetch(ctx, w, prevETag, prevLastMod, prevRawHash)
	if err != nil {
		_ = p.Store.RecordFetchError(ctx, w.ID, err.Error())
		return CheckResult{Error: fmt.Errorf("pipeline: fetch: %w", err)}
	}
	_ = p.Store.RecordFetchSuccess(ctx, w.ID)

	if !result.Changed && latest != nil {
		return CheckResult{Fetched: true}
	}

	extracted, err := extract.Extract(result.Body, result.ContentType, w.URL, w.Extraction)
	if err != nil {
		return CheckResult{Fetched: true, Error: fmt.Errorf("pipeline: extract: %w", err)}
	}
	normalizedText := normalize.Normalize(extracted.Text, w.Normalization)
	contentHash := normalize.Hash(normalizedText)

	if latest != nil && contentHash == prevContentHash {
		// The raw bytes moved (e.g. a timestamp in a footer) but the
		// normalized content did not; nothing to snapshot or diff.
		return CheckResult{Fetched: true}
	}

	snap := &store.Snapshot{
		ID:          p.NewID(),
		WatchID:     w.ID,
		FetchedAt:   p.Now().Unix(),
		Raw:         result.Body,
		Extracted:   normalizedText,
		ContentHash: contentHash,
		RawHash:     result.Hash,
		ETag:        result.ETag,
		LastMod:     result.LastMod,
	}

	if latest == nil {
		// First observation: record the baseline snapshot but there is no
		// prior content to diff against, so no Change is produced.
		if err := p.Store.InsertSnapshot(ctx, snap); err != nil {
			return CheckResult{Fetched: true, Error: fmt.Errorf("pipeline: insert baseline snapshot: %w", err)}
		}
		return CheckResult{Fetched: true, Changed: false}
	}

	diffText := diff.Unified(prevExtracted, normalizedText)
	filterInput := filter.Input{OldText: prevExtracted, NewText: normalizedText, Diff: diffText}
	filterPassed := filter.Evaluate(w.Filters, filterInput)

	var verdict *store.AgentVerdict
	if w.AgentConfig.Enabled && filterPassed {
		mem, err := p.Store.GetAgentMemory(ctx, w.ID)
		if err != nil {
			p.Logger.Warn("pipeline: load agent memory failed", "watch", w.Name, "error", err)
			mem = &store.AgentMemory{WatchID: w.ID, Memory: map[string]interface{}{}}
		}
		req := agent.BuildRequest(w, prevExtracted, normalizedText, diffText, mem.Memory, p.Profile)
		if p.Agent != nil {
			verdict = p.Agent.Consult(ctx, w, req)
		}
	}

	notifyDecision := filterPassed
	if w.AgentConfig.Enabled && filterPassed {
		notifyDecision = agent.FinalNotify(verdict, filterPassed)
	}

	agentResponseJSON, err := store.MarshalAgentResponse(verdict)
	if err != nil {
		p.Logger.Warn("pipeline: marshal agent verdict failed", "watch", w.Name, "error", err)
	}

	change := &store.Change{
		ID:            p.NewID(),
		WatchID:       w.ID,
		DetectedAt:    p.Now().Unix(),
		OldSnapshotID: latest.ID,
		NewSnapshotID: snap.ID,
		Diff:          diffText,
		FilterPassed:  filterPassed,
		AgentResponse: agentResponseJSON,
		Notified:      w.NotifyTarget == "none" || !notifyDecision,
	}

	err = p.Store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertSnapshot(ctx, snap); err != nil {
			return err
		}
		if err := tx.InsertChange(ctx, change); err != nil {
			return err
		}
		if verdict != nil && len(verdict.MemoryUpdates) > 0 {
			mem, err := p.Store.GetAgentMemory(ctx, w.ID)
			if err != nil {
				return err
			}
			mem.Memory = agent.MergeMemory(mem.Memory, verdict.MemoryUpdates)
			mem.UpdatedAt = p.Now().Unix()
			if err := tx.PutAgentMemory(ctx, mem); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CheckResult{Fetched: true, Changed: true, Error: fmt.Errorf("pipeline: persist change: %w", err)}
	}

	if w.NotifyTarget == "none" {
		// A watch whose notify_target is "none" is considered notified at insert time.
		return CheckResult{Fetched: true, Changed: true, Notified: true}
	}
	if !notifyDecision {
		return CheckResult{Fetched: true, Changed: true}
	}

	if p.QuietHours.Suppressed() {
		// Deferred, not failed: PendingNotifications picks this change back
		// up on the watch's next poll once the window has passed.
		return CheckResult{Fetched: true, Changed: true}
	}

	if err := p.deliver(ctx, w, extracted.Title, diffText); err != nil {
		p.Logger.Warn("pipeline: notify failed", "watch", w.Name, "error", err)
		_ = p.Store.RecordNotifyFailure(ctx, change.ID)
		return CheckResult{Fetched: true, Changed: true, Error: err}
	}
	_ = p.Store.MarkChangeNotified(ctx, change.ID)
	return CheckResult{Fetched: true, Changed: true, Notified: true}
}

// retryPending attempts redelivery of previously-failed, still-unnotified
// changes for w whose backoff has elapsed. Called ahead of the main check so
// a watch that has since gone quiet still drains its backlog.
func (p *Pipeline) retryPending(ctx context.Context, w *store.Watch) {
	if w.NotifyTarget == "none" || p.QuietHours.Suppressed() {
		return
	}
	pending, err := p.Store.PendingNotifications(ctx, w.ID)
	if err != nil {
		p.Logger.Warn("pipeline: load pending notifications failed", "watch", w.Name, "error", err)
		return
	}
	for _, c := range pending {
		if err := p.deliver(ctx, w, w.Name, c.Diff); err != nil {
			p.Logger.Warn("pipeline: retry notify failed", "watch", w.Name, "error", err)
			_ = p.Store.RecordNotifyFailure(ctx, c.ID)
			continue
		}
		_ = p.Store.MarkChangeNotified(ctx, c.ID)
	}
}

func (p *Pipeline) deliver(ctx context.Context, w *store.Watch, title, diffText string) error {
	sender, err := p.Notify.ResolveTarget(w.NotifyTarget)
	if err != nil {
		return err
	}
	if title == "" {
		title = w.Name
	}
	body := diffText
	if len(body) > 2000 {
		body = body[:2000] + "\n… (truncated)"
	}
	return sender.Send(ctx, notify.Message{Title: title, Body: body, URL: w.URL})
}
