package seo

import (
	"encoding/json"
	"fmt"
)

// InitialAnalysisPayload carries no parameters; the job's WebsiteID is enough.
type InitialAnalysisPayload struct{}

// Validate implements the payload contract.
func (InitialAnalysisPayload) Validate() error { return nil }

// SerpAnalysisPayload identifies the query whose ranking should be fetched.
type SerpAnalysisPayload struct {
	SearchQueryID string `json:"search_query_id"`
	Query         string `json:"query"`
}

// Validate checks required fields.
func (p SerpAnalysisPayload) Validate() error {
	if p.SearchQueryID == "" {
		return fmt.Errorf("search_query_id is required")
	}
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

// CompetitorSerpAnalysisPayload identifies the competitor to re-rank.
type CompetitorSerpAnalysisPayload struct {
	CompetitorID string `json:"competitor_id"`
}

// Validate checks required fields.
func (p CompetitorSerpAnalysisPayload) Validate() error {
	if p.CompetitorID == "" {
		return fmt.Errorf("competitor_id is required")
	}
	return nil
}

// SitemapFetchPayload lists which sitemap documents to fetch for the website.
// An empty SelectedSitemaps falls back to the website's configured sitemap URL.
type SitemapFetchPayload struct {
	SelectedSitemaps []string `json:"selected_sitemaps,omitempty"`
	WebsiteURL       string   `json:"website_url"`
}

// Validate checks required fields.
func (p SitemapFetchPayload) Validate() error {
	if p.WebsiteURL == "" {
		return fmt.Errorf("website_url is required")
	}
	return nil
}

// CompetitorSitemapFetchPayload lists sitemap documents for a competitor.
type CompetitorSitemapFetchPayload struct {
	CompetitorID     string   `json:"competitor_id"`
	SelectedSitemaps []string `json:"selected_sitemaps,omitempty"`
}

// Validate checks required fields.
func (p CompetitorSitemapFetchPayload) Validate() error {
	if p.CompetitorID == "" {
		return fmt.Errorf("competitor_id is required")
	}
	return nil
}

// PageExtractionPayload identifies one URL to scrape and parse.
type PageExtractionPayload struct {
	ExtractionID   string         `json:"extraction_id"`
	URL            string         `json:"url"`
	ExtractionType ExtractionType `json:"extraction_type"`
}

// Validate checks required fields and the extraction type.
func (p PageExtractionPayload) Validate() error {
	if p.ExtractionID == "" {
		return fmt.Errorf("extraction_id is required")
	}
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	switch p.ExtractionType {
	case ExtractionTypeQuick, ExtractionTypeFull:
		return nil
	default:
		return fmt.Errorf("invalid extraction_type %q", p.ExtractionType)
	}
}

// CompetitorPageExtractionPayload mirrors PageExtractionPayload for
// competitor pages.
type CompetitorPageExtractionPayload struct {
	ExtractionID   string         `json:"extraction_id"`
	URL            string         `json:"url"`
	ExtractionType ExtractionType `json:"extraction_type"`
}

// Validate checks required fields and the extraction type.
func (p CompetitorPageExtractionPayload) Validate() error {
	return PageExtractionPayload(p).Validate()
}

// PageScrapePayload batches ad hoc competitor page extractions.
type PageScrapePayload struct {
	CompetitorID string   `json:"competitor_id"`
	URLs         []string `json:"urls"`
}

// Validate checks required fields.
func (p PageScrapePayload) Validate() error {
	if p.CompetitorID == "" {
		return fmt.Errorf("competitor_id is required")
	}
	if len(p.URLs) == 0 {
		return fmt.Errorf("urls must not be empty")
	}
	return nil
}

// AIReportPayload carries no parameters; the job's WebsiteID is enough.
type AIReportPayload struct{}

// Validate implements the payload contract.
func (AIReportPayload) Validate() error { return nil }

// Payload is implemented by every job payload variant.
type Payload interface {
	Validate() error
}

// DecodePayload unmarshals and validates raw payload bytes according to the
// job type. Unknown types and invalid payloads return an error so the
// dispatcher can fail the single job instead of crashing the batch.
func DecodePayload(t JobType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	decode := func(v Payload) (Payload, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s payload: %w", t, err)
		}
		return v, nil
	}
	switch t {
	case JobTypeInitialAnalysis:
		return decode(&InitialAnalysisPayload{})
	case JobTypeSerpAnalysis:
		return decode(&SerpAnalysisPayload{})
	case JobTypeCompetitorSerpAnalysis:
		return decode(&CompetitorSerpAnalysisPayload{})
	case JobTypeSitemapFetch:
		return decode(&SitemapFetchPayload{})
	case JobTypeCompetitorSitemapFetch:
		return decode(&CompetitorSitemapFetchPayload{})
	case JobTypePageExtraction:
		return decode(&PageExtractionPayload{})
	case JobTypeCompetitorPageExtraction:
		return decode(&CompetitorPageExtractionPayload{})
	case JobTypePageScrape:
		return decode(&PageScrapePayload{})
	case JobTypeAIReport:
		return decode(&AIReportPayload{})
	default:
		return nil, fmt.Errorf("unknown job type %q", t)
	}
}

// EncodePayload marshals a payload for persistence after validating it.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate payload: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
