package sitemap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankscope/rankscope/internal/seo"
)

const urlsetDoc = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/</loc>
    <lastmod>2026-08-01</lastmod>
    <changefreq>daily</changefreq>
    <priority>1.0</priority>
  </url>
  <url>
    <loc>https://example.com/about</loc>
  </url>
</urlset>`

const indexDoc = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-blog.xml</loc></sitemap>
</sitemapindex>`

func TestParse_Urlset(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(urlsetDoc))
	require.NoError(t, err)
	require.Equal(t, seo.SitemapTypeSingle, doc.Type)
	require.Len(t, doc.Entries, 2)
	require.Equal(t, seo.SitemapURL{
		Loc:        "https://example.com/",
		LastMod:    "2026-08-01",
		ChangeFreq: "daily",
		Priority:   1.0,
	}, doc.Entries[0])
	require.Equal(t, "https://example.com/about", doc.Entries[1].Loc)
	require.Empty(t, doc.Children)
}

func TestParse_Index(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(indexDoc))
	require.NoError(t, err)
	require.Equal(t, seo.SitemapTypeIndex, doc.Type)
	require.Equal(t, []string{
		"https://example.com/sitemap-pages.xml",
		"https://example.com/sitemap-blog.xml",
	}, doc.Children)
	require.Empty(t, doc.Entries)
}

func TestParse_UnknownRoot(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`<rss version="2.0"></rss>`))
	require.Error(t, err)
}

func TestParse_Garbage(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("not xml at all"))
	require.Error(t, err)
}
