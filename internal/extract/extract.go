// CLAUDE:SUMMARY Dispatches a Watch's extraction strategy over fetched bytes; shared DOM-walk helpers live here for css.go/density.go.
// Package extract selects a content slice from raw fetched bytes using one
// of six strategies: auto, selector, full, meta, rss, json_ld.
package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/devindudeman/kto/internal/store"
)

// Result is the outcome of extraction: a text slice and, where the
// strategy discovered one, a title.
type Result struct {
	Text  string
	Title string
}

const minCandidateLen = 40

// sanitizePolicy strips <script>/<style>/<noscript> and any attribute not
// needed to resolve a link or image, ahead of the full strategy's markdown
// conversion (the density walk parses the unsanitized body). It intentionally keeps structural tags (headings,
// lists, tables, anchors) rather than bleaching to plain text the way
// bluemonday.StrictPolicy would; that stripping-to-text-only job is left to
// mdConverter for the full strategy and to collectText for density scoring.
var sanitizePolicy = newSanitizePolicy()

func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "p", "br", "hr",
		"ul", "ol", "li", "strong", "em", "b", "i", "code", "pre", "blockquote",
		"table", "thead", "tbody", "tr", "th", "td", "a", "img", "div", "span",
		"article", "main", "section", "nav", "header", "footer", "aside")
	return p
}

// mdConverter renders sanitized HTML to Markdown for the full strategy,
// preserving headings, lists, tables, and links instead of collapsing them
// to bare text.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Extract runs the strategy named by cfg against body, using contentType and
// sourceURL as hints (sourceURL resolves relative links during markdown
// conversion; it may be empty).
func Extract(body []byte, contentType string, sourceURL string, cfg store.Extraction) (*Result, error) {
	switch cfg.Strategy {
	case store.ExtractSelector:
		return extractSelector(body, cfg.Selector)
	case store.ExtractFull:
		return extractFull(body, sourceURL)
	case store.ExtractMeta:
		return extractMeta(body)
	case store.ExtractRSS:
		return extractRSS(body)
	case store.ExtractJSONLD:
		return extractJSONLD(body)
	default:
		return extractAuto(body, contentType)
	}
}

// extractAuto picks a strategy based on content signals: a feed-like
// content-type whose body also looks like a feed, then a Product/Article JSON-LD block, falling back to density-based
// visible-text extraction.
func extractAuto(body []byte, contentType string) (*Result, error) {
	if looksLikeFeed(contentType, body) {
		if r, err := extractRSS(body); err == nil {
			return r, nil
		}
	}
	if hasArticleJSONLD(body) {
		if r, err := extractJSONLD(body); err == nil && r.Text != "" {
			return r, nil
		}
	}
	return extractDensity(body)
}

func looksLikeFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		trimmed := strings.TrimSpace(string(body))
		return strings.HasPrefix(trimmed, "<?xml") || strings.Contains(trimmed[:min(200, len(trimmed))], "<rss") || strings.Contains(trimmed[:min(200, len(trimmed))], "<feed")
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func extractSelector(body []byte, selector string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	title := pageTitle(doc)
	if strings.TrimSpace(selector) == "" {
		return &Result{Title: title}, nil
	}

	var texts []string
	for _, sel := range strings.Split(selector, ",") {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		for _, n := range querySelectorAll(doc, sel) {
			text := collectText(n)
			if text != "" {
				texts = append(texts, text)
			}
		}
	}
	return &Result{Text: strings.Join(texts, "\n"), Title: title}, nil
}

func extractFull(body []byte, sourceURL string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	title := pageTitle(doc)

	sanitized := sanitizePolicy.Sanitize(string(body))
	opts := []converter.ConvertOptionFunc{}
	if sourceURL != "" {
		opts = append(opts, converter.WithDomain(sourceURL))
	}
	md, err := mdConverter.ConvertString(sanitized, opts...)
	if err != nil {
		// Markdown conversion is a best-effort enrichment; fall back to the
		// page's visible text rather than failing the whole extraction.
		return &Result{Text: collapseWhitespace(collectText(doc)), Title: title}, nil
	}
	return &Result{Text: strings.TrimSpace(md), Title: title}, nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func pageTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = strings.TrimSpace(collectText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// collectText concatenates the visible text of a subtree, space-separated.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// renderNode re-serialises a node back to HTML, used when a caller needs the
// markup length (e.g. density scoring) rather than just the text.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

var boilerplateTags = map[atom.Atom]bool{
	atom.Nav:    true,
	atom.Footer: true,
	atom.Header: true,
	atom.Aside:  true,
}

var boilerplateClasses = []string{"nav", "footer", "sidebar", "advert", "ad", "cookie", "banner", "menu"}

func isBoilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if boilerplateTags[n.DataAtom] {
		return true
	}
	class := strings.ToLower(getAttr(n, "class"))
	id := strings.ToLower(getAttr(n, "id"))
	for _, b := range boilerplateClasses {
		if strings.Contains(class, b) || strings.Contains(id, b) {
			return true
		}
	}
	return false
}

var contentTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Article: true,
	atom.Main:    true,
	atom.Section: true,
	atom.Body:    true,
}

func isContentTag(a atom.Atom) bool {
	return contentTags[a]
}
