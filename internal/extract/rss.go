// CLAUDE:SUMMARY RSS/Atom extraction strategy: one line per item, "[published] title — link".
package extract

import (
	"strings"

	"github.com/devindudeman/kto/internal/feed"
)

// extractRSS parses body as an RSS or Atom document and renders one line
// per item. Change detection then reduces to noticing lines added or
// removed, without needing per-item state in the store.
func extractRSS(body []byte) (*Result, error) {
	f, err := feed.Parse(body)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, item := range f.Items {
		lines = append(lines, formatItem(item))
	}
	return &Result{Text: strings.Join(lines, "\n"), Title: f.Title}, nil
}

func formatItem(it feed.Item) string {
	var sb strings.Builder
	if it.Published != "" {
		sb.WriteByte('[')
		sb.WriteString(it.Published)
		sb.WriteString("] ")
	}
	sb.WriteString(it.Title)
	if it.Link != "" {
		sb.WriteString(" — ")
		sb.WriteString(it.Link)
	}
	return sb.String()
}
