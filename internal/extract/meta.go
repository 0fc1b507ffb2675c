// CLAUDE:SUMMARY Meta-strategy extraction: title plus meta description / og:* tags, one per line.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var metaKeys = []string{"description", "og:title", "og:description", "og:image", "twitter:description"}

// extractMeta collects the page title and a fixed set of <meta> tags,
// giving a stable, cheap-to-diff summary of a page's metadata.
func extractMeta(body []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	title := pageTitle(doc)

	found := map[string]string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			key := getAttr(n, "name")
			if key == "" {
				key = getAttr(n, "property")
			}
			key = strings.ToLower(key)
			if _, want := indexOf(metaKeys, key); want {
				found[key] = getAttr(n, "content")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var lines []string
	if title != "" {
		lines = append(lines, "title: "+title)
	}
	for _, k := range metaKeys {
		if v, ok := found[k]; ok && strings.TrimSpace(v) != "" {
			lines = append(lines, k+": "+strings.TrimSpace(v))
		}
	}
	return &Result{Text: strings.Join(lines, "\n"), Title: title}, nil
}

func indexOf(keys []string, k string) (int, bool) {
	for i, key := range keys {
		if key == k {
			return i, true
		}
	}
	return -1, false
}
