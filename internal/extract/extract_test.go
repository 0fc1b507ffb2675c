package extract

import (
	"strings"
	"testing"

	"github.com/devindudeman/kto/internal/store"
)

const samplePage = `<html><head><title>Sample Page</title></head>
<body>
<nav>Home About Contact</nav>
<main><article><h1>Big News</h1><p>Something changed on this page today.</p></article></main>
<footer>Copyright 2024</footer>
</body></html>`

func TestExtractSelectorPicksMatchingNodes(t *testing.T) {
	r, err := Extract([]byte(samplePage), "text/html", "", store.Extraction{Strategy: store.ExtractSelector, Selector: "h1"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(r.Text, "Big News") {
		t.Errorf("expected h1 text, got %q", r.Text)
	}
}

func TestExtractFullRendersMarkdown(t *testing.T) {
	r, err := Extract([]byte(samplePage), "text/html", "https://example.com/", store.Extraction{Strategy: store.ExtractFull})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(r.Text, "<html>") || strings.Contains(r.Text, "<body>") {
		t.Errorf("full extraction should not contain raw structural tags, got %q", r.Text)
	}
	if !strings.Contains(r.Text, "Big News") {
		t.Errorf("expected heading text preserved, got %q", r.Text)
	}
	if !strings.Contains(r.Text, "Something changed") {
		t.Errorf("expected body text preserved, got %q", r.Text)
	}
}

func TestExtractAutoPrefersLandmarkOverBoilerplate(t *testing.T) {
	r, err := Extract([]byte(samplePage), "text/html", "", store.Extraction{Strategy: store.ExtractAuto})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(r.Text, "Copyright") {
		t.Error("auto extraction should not include footer boilerplate")
	}
	if !strings.Contains(r.Text, "Something changed") {
		t.Errorf("expected article text, got %q", r.Text)
	}
}

func TestExtractMetaCollectsDescriptionTags(t *testing.T) {
	page := `<html><head><title>T</title><meta name="description" content="a page about things"></head><body></body></html>`
	r, err := Extract([]byte(page), "text/html", "", store.Extraction{Strategy: store.ExtractMeta})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(r.Text, "a page about things") {
		t.Errorf("expected meta description, got %q", r.Text)
	}
}

func TestExtractRSSFormatsOneLinePerItem(t *testing.T) {
	feedXML := `<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>
	<item><title>First</title><link>https://example.com/1</link><guid>1</guid></item>
	<item><title>Second</title><link>https://example.com/2</link><guid>2</guid></item>
	</channel></rss>`
	r, err := Extract([]byte(feedXML), "application/rss+xml", "", store.Extraction{Strategy: store.ExtractRSS})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	lines := strings.Split(r.Text, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "First") || !strings.Contains(lines[0], "https://example.com/1") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
}

func TestExtractJSONLDCanonicalizesKeyOrder(t *testing.T) {
	pageA := `<html><body><script type="application/ld+json">{"b":2,"a":1}</script></body></html>`
	pageB := `<html><body><script type="application/ld+json">{"a":1,"b":2}</script></body></html>`
	ra, err := Extract([]byte(pageA), "text/html", "", store.Extraction{Strategy: store.ExtractJSONLD})
	if err != nil {
		t.Fatalf("extract a: %v", err)
	}
	rb, err := Extract([]byte(pageB), "text/html", "", store.Extraction{Strategy: store.ExtractJSONLD})
	if err != nil {
		t.Fatalf("extract b: %v", err)
	}
	if ra.Text != rb.Text {
		t.Errorf("reordered keys should canonicalize identically: %q vs %q", ra.Text, rb.Text)
	}
}
