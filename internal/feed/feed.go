// Package feed parses RSS 2.0 and Atom 1.0 feeds with encoding/xml,
// auto-detecting the format from the document's root element.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Item is one entry in a feed, in whichever fields RSS or Atom supplied.
type Item struct {
	GUID      string
	Title     string
	Link      string
	Published string
}

// Feed is a parsed RSS or Atom document.
type Feed struct {
	Title string
	Items []Item
}

// Parse auto-detects and parses RSS 2.0 or Atom 1.0 XML.
func Parse(data []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty document")
	}
	switch rootElement(trimmed) {
	case "rss", "rdf":
		return parseRSS(data)
	case "feed":
		return parseAtom(data)
	default:
		return nil, fmt.Errorf("feed: unrecognised root element (expected <rss> or <feed>)")
	}
}

func rootElement(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

type rssDoc struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			GUID    string `xml:"guid"`
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseRSS(data []byte) (*Feed, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: rss: %w", err)
	}
	f := &Feed{Title: strings.TrimSpace(doc.Channel.Title)}
	for _, it := range doc.Channel.Items {
		guid := strings.TrimSpace(it.GUID)
		if guid == "" {
			guid = strings.TrimSpace(it.Link)
		}
		f.Items = append(f.Items, Item{
			GUID:      guid,
			Title:     strings.TrimSpace(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Published: strings.TrimSpace(it.PubDate),
		})
	}
	return f, nil
}

type atomDoc struct {
	Title   string `xml:"title"`
	Entries []struct {
		ID    string `xml:"id"`
		Title string `xml:"title"`
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

func parseAtom(data []byte) (*Feed, error) {
	var doc atomDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: atom: %w", err)
	}
	f := &Feed{Title: strings.TrimSpace(doc.Title)}
	for _, e := range doc.Entries {
		link := preferredLink(e.Links)
		guid := strings.TrimSpace(e.ID)
		if guid == "" {
			guid = link
		}
		published := strings.TrimSpace(e.Published)
		if published == "" {
			published = strings.TrimSpace(e.Updated)
		}
		f.Items = append(f.Items, Item{
			GUID:      guid,
			Title:     strings.TrimSpace(e.Title),
			Link:      link,
			Published: published,
		})
	}
	return f, nil
}

func preferredLink(links []struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}
