// Package keywords extracts and weights page keywords for rank comparison.
package keywords

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/kljensen/snowball"

	"github.com/rankscope/rankscope/internal/seo"
)

const (
	minTokenLength = 3
	maxTokenLength = 40
	maxKeywords    = 50
)

// PageContent is the parsed view of a scraped page.
type PageContent struct {
	URL             string
	Title           string
	MetaDescription string
	H1              string
	Headings        []string
	Keywords        []seo.WeightedKeyword
}

// Extract parses raw HTML into metadata and a raw keyword list. Keyword
// scores are not populated; run Weight over the result for that.
func Extract(html []byte, pageURL string) (PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return PageContent{}, fmt.Errorf("parse html: %w", err)
	}

	content := PageContent{
		URL:   pageURL,
		Title: cleanText(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		content.MetaDescription = cleanText(desc)
	}
	content.H1 = cleanText(doc.Find("h1").First().Text())
	doc.Find("h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		if h := cleanText(sel.Text()); h != "" {
			content.Headings = append(content.Headings, h)
		}
	})

	doc.Find("script, style, noscript").Remove()
	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	content.Keywords = countKeywords(text)
	return content, nil
}

// countKeywords tokenizes visible text and counts term frequencies, grouping
// inflected forms under their snowball stem. The most frequent surface form
// represents each stem.
func countKeywords(text string) []seo.WeightedKeyword {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	type stemGroup struct {
		surface map[string]int
		total   int
	}
	groups := make(map[string]*stemGroup)
	for _, tok := range tokens {
		stem, err := snowball.Stem(tok, "english", true)
		if err != nil || stem == "" {
			stem = tok
		}
		g, ok := groups[stem]
		if !ok {
			g = &stemGroup{surface: make(map[string]int)}
			groups[stem] = g
		}
		g.surface[tok]++
		g.total++
	}

	out := make([]seo.WeightedKeyword, 0, len(groups))
	for _, g := range groups {
		best, bestCount := "", 0
		for form, n := range g.surface {
			if n > bestCount || (n == bestCount && form < best) {
				best, bestCount = form, n
			}
		}
		out = append(out, seo.WeightedKeyword{
			Keyword:   best,
			Frequency: g.total,
			Density:   round2(float64(g.total) / float64(len(tokens)) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength || len(f) > maxTokenLength {
			continue
		}
		if stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
