// CLAUDE:SUMMARY Landmark-first, text-density-scoring fallback for the auto extraction strategy.
package extract

import (
	"math"
	"strings"

	"golang.org/x/net/html"
)

// extractDensity finds the page's main content: a <main>/<article> landmark
// if present, otherwise the highest-scoring node by text density.
func extractDensity(body []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	title := pageTitle(doc)

	if landmark := findContentByLandmarks(doc); landmark != nil {
		if text := collectCleanText(landmark); strings.TrimSpace(text) != "" {
			return &Result{Text: text, Title: title}, nil
		}
	}

	body2 := findBody(doc)
	if body2 == nil {
		return &Result{Title: title}, nil
	}
	best := findDensestNode(body2)
	if best == nil {
		return &Result{Text: collectCleanText(body2), Title: title}, nil
	}
	return &Result{Text: collectCleanText(best), Title: title}, nil
}

type nodeScore struct {
	node     *html.Node
	textLen  int
	markupLen int
	density  float64
	depth    int
	linkDens float64
}

// findDensestNode walks the DOM skipping boilerplate landmarks and nodes
// with too little text to be a content candidate, scoring the rest by
// density * logScale(textLen) * (1 - linkDensity).
func findDensestNode(root *html.Node) *html.Node {
	var candidates []nodeScore
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			if isBoilerplate(n) {
				return
			}
			if isContentTag(n.DataAtom) {
				text := collectCleanText(n)
				if len(text) >= minCandidateLen {
					markup := len(renderNode(n))
					linkText := collectLinkText(n)
					linkDens := 0.0
					if len(text) > 0 {
						linkDens = float64(len(linkText)) / float64(len(text))
					}
					density := 0.0
					if markup > 0 {
						density = float64(len(text)) / float64(markup)
					}
					candidates = append(candidates, nodeScore{
						node: n, textLen: len(text), markupLen: markup,
						density: density, depth: depth, linkDens: linkDens,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	walk(root, 0)

	var best *nodeScore
	var bestScore float64
	for i := range candidates {
		c := &candidates[i]
		score := c.density * logScale(c.textLen) * (1 - c.linkDens)
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	return best.node
}

func logScale(n int) float64 {
	if n < 1 {
		return 0
	}
	return math.Log(float64(n) + 1)
}

// collectLinkText concatenates the text found inside <a> descendants only,
// used to compute link density (a page mostly made of link text is
// probably a nav/listing, not an article body).
func collectLinkText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			sb.WriteString(collectText(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collectCleanText is collectText with boilerplate subtrees pruned first.
func collectCleanText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isBoilerplate(n) {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
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

func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}
