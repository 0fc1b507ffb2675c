// CLAUDE:SUMMARY CSS-selector-subset matching over a parsed DOM, plus landmark-based content extraction.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// simpleSelector is a single compound selector: an optional tag, an
// optional #id, an optional .class, and an optional [attr=val] or [attr].
type simpleSelector struct {
	tag      string
	id       string
	class    string
	attrKey  string
	attrVal  string
	hasAttr  bool
}

// parseSimpleSelector parses one compound selector like "div.card#x[data-y=z]".
// It does not support combinators; callers split on commas for groups. A
// selector containing whitespace is not split, so a descendant selector
// such as "div p" is parsed as one compound selector and matches nothing.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector
	rest := sel
	for len(rest) > 0 {
		switch rest[0] {
		case '#':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				s.id = rest
				rest = ""
			} else {
				s.id = rest[:end]
				rest = rest[end:]
			}
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, "#[")
			if end == -1 {
				s.class = rest
				rest = ""
			} else {
				s.class = rest[:end]
				rest = rest[end:]
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				rest = ""
				break
			}
			attr := rest[1:end]
			if eq := strings.IndexByte(attr, '='); eq != -1 {
				s.attrKey = strings.Trim(attr[:eq], `"' `)
				s.attrVal = strings.Trim(attr[eq+1:], `"' `)
			} else {
				s.attrKey = attr
				s.hasAttr = true
			}
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, "#.[")
			if end == -1 {
				s.tag = rest
				rest = ""
			} else {
				s.tag = rest[:end]
				rest = rest[end:]
			}
		}
	}
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && !strings.EqualFold(n.Data, s.tag) {
		return false
	}
	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !hasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		if s.hasAttr {
			if !hasAttr(n, s.attrKey) {
				return false
			}
		} else if getAttr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}

func matchSimple(n *html.Node, sel string) bool {
	return matchesSelector(n, parseSimpleSelector(sel))
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

// querySelectorAll finds every node matching sel (a single compound
// selector, no combinators) anywhere under root.
func querySelectorAll(root *html.Node, sel string) []*html.Node {
	parsed := parseSimpleSelector(sel)
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, parsed) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// findContentByLandmarks returns the first <main> or <article> element, the
// common signal for "this is the page's content" on well-marked-up sites.
func findContentByLandmarks(doc *html.Node) *html.Node {
	if n := findAllByTag(doc, atom.Main); n != nil {
		return n
	}
	return findAllByTag(doc, atom.Article)
}

func findAllByTag(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAllByTag(c, a); found != nil {
			return found
		}
	}
	return nil
}
