// CLAUDE:SUMMARY Parses shell:// watch URLs and runs the command, capturing stdout as raw content.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/devindudeman/kto/internal/store"
)

// ShellPrefix is the URL prefix that denotes a shell-engine watch.
const ShellPrefix = "shell://"

// ShellCommand extracts the command from a shell:// watch URL.
func ShellCommand(watchURL string) (string, error) {
	if !strings.HasPrefix(watchURL, ShellPrefix) {
		return "", fmt.Errorf("fetch: not a shell:// URL: %s", watchURL)
	}
	cmd := strings.TrimPrefix(watchURL, ShellPrefix)
	if strings.TrimSpace(cmd) == "" {
		return "", fmt.Errorf("fetch: empty shell command")
	}
	return cmd, nil
}

func (f *Fetcher) fetchShell(ctx context.Context, w *store.Watch) (*Result, error) {
	command, err := ShellCommand(w.URL)
	if err != nil {
		return nil, newError(KindTransport, err)
	}

	shellCtx, cancel := context.WithTimeout(ctx, f.config.ShellTimeout)
	defer cancel()

	cmd := shellCommandContext(shellCtx, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if shellCtx.Err() != nil {
		return nil, newError(KindTimeout, shellCtx.Err())
	}
	if err != nil {
		return nil, newError(KindSubprocessFailed, fmt.Errorf("%w: %s", err, stderr.String()))
	}

	body := stdout.Bytes()
	if int64(len(body)) > f.config.MaxBytes {
		body = body[:f.config.MaxBytes]
	}
	return &Result{
		Body:        body,
		ContentType: "text/plain",
		StatusCode:  0,
		Hash:        hashBytes(body),
		Changed:     true,
	}, nil
}
