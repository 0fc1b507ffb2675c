// CLAUDE:SUMMARY Invokes the external js-render helper subprocess and parses its {url,title,html,text} JSON reply.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/devindudeman/kto/internal/store"
)

// renderReply is the JSON object the js-render helper writes to stdout.
type renderReply struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

// renderFailure is the JSON object the helper writes to stderr on failure.
type renderFailure struct {
	Error string `json:"error"`
}

func (f *Fetcher) fetchJSRender(ctx context.Context, w *store.Watch) (*Result, error) {
	if err := f.config.URLValidator(w.URL); err != nil {
		return nil, newError(KindTransport, fmt.Errorf("URL blocked (SSRF): %w", err))
	}

	renderCtx, cancel := context.WithTimeout(ctx, f.config.RenderTimeout)
	defer cancel()

	args := []string{w.URL, f.config.RenderTimeout.String()}
	if w.StorageState != "" {
		args = append(args, "--storage-state", w.StorageState)
	}
	cmd := exec.CommandContext(renderCtx, f.config.RenderHelper, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if renderCtx.Err() != nil {
		return nil, newError(KindTimeout, renderCtx.Err())
	}
	if err != nil {
		var fail renderFailure
		if jerr := json.Unmarshal(stderr.Bytes(), &fail); jerr == nil && fail.Error != "" {
			return nil, newError(KindSubprocessFailed, fmt.Errorf("%s", fail.Error))
		}
		return nil, newError(KindSubprocessFailed, fmt.Errorf("%w: %s", err, stderr.String()))
	}

	var reply renderReply
	if err := json.Unmarshal(stdout.Bytes(), &reply); err != nil {
		return nil, newError(KindSubprocessFailed, fmt.Errorf("parse render reply: %w", err))
	}

	body := []byte(reply.HTML)
	hash := hashBytes(body)
	return &Result{
		Body:        body,
		ContentType: "text/html",
		Title:       reply.Title,
		StatusCode:  200,
		Hash:        hash,
		Changed:     true, // the js-render helper has no conditional-GET support; hash comparison happens upstream
	}, nil
}
