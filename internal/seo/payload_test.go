package seo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayload_ValidVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		typ  JobType
		raw  string
		want Payload
	}{
		{
			name: "initial analysis empty object",
			typ:  JobTypeInitialAnalysis,
			raw:  `{}`,
			want: &InitialAnalysisPayload{},
		},
		{
			name: "initial analysis nil payload",
			typ:  JobTypeInitialAnalysis,
			raw:  ``,
			want: &InitialAnalysisPayload{},
		},
		{
			name: "serp analysis",
			typ:  JobTypeSerpAnalysis,
			raw:  `{"search_query_id":"q-1","query":"running shoes"}`,
			want: &SerpAnalysisPayload{SearchQueryID: "q-1", Query: "running shoes"},
		},
		{
			name: "competitor serp analysis",
			typ:  JobTypeCompetitorSerpAnalysis,
			raw:  `{"competitor_id":"c-1"}`,
			want: &CompetitorSerpAnalysisPayload{CompetitorID: "c-1"},
		},
		{
			name: "sitemap fetch",
			typ:  JobTypeSitemapFetch,
			raw:  `{"selected_sitemaps":["https://a.com/sitemap.xml"],"website_url":"https://a.com"}`,
			want: &SitemapFetchPayload{
				SelectedSitemaps: []string{"https://a.com/sitemap.xml"},
				WebsiteURL:       "https://a.com",
			},
		},
		{
			name: "page extraction",
			typ:  JobTypePageExtraction,
			raw:  `{"extraction_id":"e-1","url":"https://a.com/p","extraction_type":"full"}`,
			want: &PageExtractionPayload{
				ExtractionID:   "e-1",
				URL:            "https://a.com/p",
				ExtractionType: ExtractionTypeFull,
			},
		},
		{
			name: "page scrape",
			typ:  JobTypePageScrape,
			raw:  `{"competitor_id":"c-1","urls":["https://b.com/p"]}`,
			want: &PageScrapePayload{CompetitorID: "c-1", URLs: []string{"https://b.com/p"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodePayload(tc.typ, json.RawMessage(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		typ  JobType
		raw  string
	}{
		{"unknown type", JobType("mystery"), `{}`},
		{"serp analysis missing query", JobTypeSerpAnalysis, `{"search_query_id":"q-1"}`},
		{"serp analysis missing id", JobTypeSerpAnalysis, `{"query":"x"}`},
		{"competitor serp missing id", JobTypeCompetitorSerpAnalysis, `{}`},
		{"sitemap fetch missing url", JobTypeSitemapFetch, `{"selected_sitemaps":[]}`},
		{"extraction bad type", JobTypePageExtraction, `{"extraction_id":"e","url":"u","extraction_type":"partial"}`},
		{"extraction empty type", JobTypeCompetitorPageExtraction, `{"extraction_id":"e","url":"u"}`},
		{"page scrape no urls", JobTypePageScrape, `{"competitor_id":"c-1","urls":[]}`},
		{"malformed json", JobTypeSerpAnalysis, `{not json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodePayload(tc.typ, json.RawMessage(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestEncodePayload_RoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := EncodePayload(&SerpAnalysisPayload{SearchQueryID: "q-9", Query: "trail shoes"})
	require.NoError(t, err)

	decoded, err := DecodePayload(JobTypeSerpAnalysis, raw)
	require.NoError(t, err)
	require.Equal(t, &SerpAnalysisPayload{SearchQueryID: "q-9", Query: "trail shoes"}, decoded)
}

func TestEncodePayload_RejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := EncodePayload(&PageScrapePayload{CompetitorID: "c-1"})
	require.Error(t, err)
}
