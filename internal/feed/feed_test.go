package feed

import "testing"

const rssSample = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example Feed</title>
<item><title>First Post</title><link>https://example.com/1</link><guid>guid-1</guid><pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate></item>
</channel></rss>`

const atomSample = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Example Atom</title>
<entry><title>Atom Entry</title><id>tag:example.com,2024:1</id><link href="https://example.com/atom/1" rel="alternate"/><updated>2024-01-01T00:00:00Z</updated></entry>
</feed>`

func TestParseRSS(t *testing.T) {
	f, err := Parse([]byte(rssSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Example Feed" {
		t.Errorf("title: got %q", f.Title)
	}
	if len(f.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(f.Items))
	}
	if f.Items[0].GUID != "guid-1" {
		t.Errorf("guid: got %q", f.Items[0].GUID)
	}
	if f.Items[0].Link != "https://example.com/1" {
		t.Errorf("link: got %q", f.Items[0].Link)
	}
}

func TestParseAtom(t *testing.T) {
	f, err := Parse([]byte(atomSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(f.Items))
	}
	if f.Items[0].Link != "https://example.com/atom/1" {
		t.Errorf("link: got %q", f.Items[0].Link)
	}
	if f.Items[0].Published != "2024-01-01T00:00:00Z" {
		t.Errorf("published should fall back to updated, got %q", f.Items[0].Published)
	}
}

func TestParseUnrecognisedRootIsAnError(t *testing.T) {
	_, err := Parse([]byte(`<?xml version="1.0"?><notafeed></notafeed>`))
	if err == nil {
		t.Error("expected an error for an unrecognised root element")
	}
}

func TestParseEmptyDocumentIsAnError(t *testing.T) {
	_, err := Parse([]byte(""))
	if err == nil {
		t.Error("expected an error for an empty document")
	}
}
