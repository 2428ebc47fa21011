// Package sitemap parses sitemap XML and plans page extraction work.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/rankscope/rankscope/internal/seo"
)

// Document is a classified sitemap: either a single urlset with entries or a
// sitemapindex pointing at child sitemaps.
type Document struct {
	Type     seo.SitemapType
	Entries  []seo.SitemapURL
	Children []string
}

type urlsetXML struct {
	URLs []entryXML `xml:"url"`
}

type entryXML struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

type indexXML struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Parse classifies raw sitemap XML by its root element and extracts the URL
// entries (urlset) or child sitemap locations (sitemapindex).
func Parse(data []byte) (Document, error) {
	root, err := rootElement(data)
	if err != nil {
		return Document{}, err
	}

	switch root {
	case "urlset":
		var u urlsetXML
		if err := xml.Unmarshal(data, &u); err != nil {
			return Document{}, fmt.Errorf("decode urlset: %w", err)
		}
		doc := Document{Type: seo.SitemapTypeSingle}
		for _, e := range u.URLs {
			if e.Loc == "" {
				continue
			}
			doc.Entries = append(doc.Entries, seo.SitemapURL{
				Loc:        e.Loc,
				LastMod:    e.LastMod,
				ChangeFreq: e.ChangeFreq,
				Priority:   e.Priority,
			})
		}
		return doc, nil
	case "sitemapindex":
		var idx indexXML
		if err := xml.Unmarshal(data, &idx); err != nil {
			return Document{}, fmt.Errorf("decode sitemapindex: %w", err)
		}
		doc := Document{Type: seo.SitemapTypeIndex}
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				doc.Children = append(doc.Children, s.Loc)
			}
		}
		return doc, nil
	default:
		return Document{}, fmt.Errorf("unsupported sitemap root element %q", root)
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("read sitemap xml: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
