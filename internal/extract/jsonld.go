// CLAUDE:SUMMARY json_ld strategy: canonicalizes <script type="application/ld+json"> blocks so key reordering doesn't register as a change.
package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractJSONLD collects every <script type="application/ld+json"> block,
// re-marshals each with sorted keys, and joins them one per line. Sorting
// keys means a site re-ordering the same fields doesn't produce a change.
func extractJSONLD(body []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	title := pageTitle(doc)

	var lines []string
	for _, n := range jsonLDScripts(doc) {
		raw := collectRawText(n)
		canon, err := canonicalizeJSON(raw)
		if err != nil {
			continue
		}
		lines = append(lines, canon)
	}
	return &Result{Text: strings.Join(lines, "\n"), Title: title}, nil
}

func hasArticleJSONLD(body []byte) bool {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return false
	}
	for _, n := range jsonLDScripts(doc) {
		raw := collectRawText(n)
		var probe struct {
			Type string `json:"@type"`
		}
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			continue
		}
		switch probe.Type {
		case "Article", "NewsArticle", "Product", "BlogPosting":
			return true
		}
	}
	return false
}

func jsonLDScripts(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && strings.EqualFold(getAttr(n, "type"), "application/ld+json") {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func collectRawText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// canonicalizeJSON re-encodes arbitrary JSON with map keys sorted, using
// encoding/json's default map ordering (alphabetical) as the canonical form.
func canonicalizeJSON(raw string) (string, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", err
	}
	sorted := sortKeys(v)
	out, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = sortKeys(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return v
	}
}
