// Package seo defines core types shared across subsystems.
package seo

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType identifies which handler a job is dispatched to.
type JobType string

// Job types persisted in the job store. A job's payload shape is fully
// determined by its type.
const (
	JobTypeInitialAnalysis          JobType = "initial_analysis"
	JobTypeSerpAnalysis             JobType = "serp_analysis"
	JobTypeCompetitorSerpAnalysis   JobType = "competitor_serp_analysis"
	JobTypeSitemapFetch             JobType = "sitemap_fetch"
	JobTypeCompetitorSitemapFetch   JobType = "competitor_sitemap_fetch"
	JobTypePageExtraction           JobType = "page_extraction"
	JobTypeCompetitorPageExtraction JobType = "competitor_page_extraction"
	JobTypePageScrape               JobType = "page_scrape"
	JobTypeAIReport                 JobType = "ai_report"
)

// Job is a persisted, typed unit of asynchronous work with priority and status.
type Job struct {
	ID        string          `json:"id"`
	WebsiteID string          `json:"website_id"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Priority  int             `json:"priority"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ErrorText string          `json:"error_text,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BatchResult aggregates the outcome of one processing pass.
type BatchResult struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// WebsiteStatus tracks where a website is in its analysis lifecycle.
// It is mutated only by pipelines, never by the dashboard directly.
type WebsiteStatus string

// Website status values.
const (
	WebsiteStatusPending   WebsiteStatus = "pending"
	WebsiteStatusDraft     WebsiteStatus = "draft"
	WebsiteStatusAnalyzing WebsiteStatus = "analyzing"
	WebsiteStatusActive    WebsiteStatus = "active"
	WebsiteStatusError     WebsiteStatus = "error"
)

// Website is a tracked domain. URL is canonical: https scheme, no trailing slash.
type Website struct {
	ID               string        `json:"id"`
	OrganizationID   string        `json:"organization_id"`
	URL              string        `json:"url"`
	Name             string        `json:"name"`
	Status           WebsiteStatus `json:"status"`
	SitemapURL       string        `json:"sitemap_url,omitempty"`
	LastSitemapFetch *time.Time    `json:"last_sitemap_fetch,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CompetitionLevel is the reasoner's estimate of how contested a query is.
type CompetitionLevel string

// Competition levels attached to search queries.
const (
	CompetitionHigh CompetitionLevel = "HIGH"
	CompetitionLow  CompetitionLevel = "LOW"
)

// SearchQuery is a tracked query string the website should rank for.
// Confidence is 1 for manual entries and < 1 for reasoner suggestions.
type SearchQuery struct {
	ID               string           `json:"id"`
	WebsiteID        string           `json:"website_id"`
	Query            string           `json:"query"`
	Tags             []string         `json:"tags,omitempty"`
	CompetitionLevel CompetitionLevel `json:"competition_level"`
	Confidence       float64          `json:"confidence"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"`
}

// SerpResult is one snapshot of a ranked result set for a query. It is scoped
// to exactly one of SearchQueryID or CompetitorID: the tracked site's own
// ranking run or a competitor's run for the same literal query string.
// Position is nil when the domain was not found in the fetched window.
type SerpResult struct {
	ID            string    `json:"id"`
	SearchQueryID string    `json:"search_query_id,omitempty"`
	CompetitorID  string    `json:"competitor_id,omitempty"`
	Query         string    `json:"query"`
	Position      *int      `json:"position,omitempty"`
	URL           string    `json:"url,omitempty"`
	Title         string    `json:"title,omitempty"`
	Snippet       string    `json:"snippet,omitempty"`
	RawBlobURL    string    `json:"raw_blob_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Competitor is a rival domain tracked against a website.
// (WebsiteID, URL) pairs are unique.
type Competitor struct {
	ID             string    `json:"id"`
	WebsiteID      string    `json:"website_id"`
	URL            string    `json:"url"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	AutoDiscovered bool      `json:"auto_discovered"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExtractionStatus tracks the lifecycle of a page extraction row.
type ExtractionStatus string

// Extraction status values.
const (
	ExtractionStatusPending    ExtractionStatus = "pending"
	ExtractionStatusExtracting ExtractionStatus = "extracting"
	ExtractionStatusCompleted  ExtractionStatus = "completed"
	ExtractionStatusFailed     ExtractionStatus = "failed"
)

// ExtractionType distinguishes quick metadata-only passes from full passes.
// The empty string means the row has not been classified or extracted yet.
type ExtractionType string

// Extraction types requested by planners and ad hoc triggers.
const (
	ExtractionTypeNone  ExtractionType = ""
	ExtractionTypeQuick ExtractionType = "quick"
	ExtractionTypeFull  ExtractionType = "full"
)

// WeightedKeyword is one keyword with its raw counts and computed score.
type WeightedKeyword struct {
	Keyword   string  `json:"keyword"`
	Frequency int     `json:"frequency"`
	Density   float64 `json:"density"`
	Score     float64 `json:"score"`
}

// PageExtraction is a scraped page's parsed content, for the tracked site
// (CompetitorID empty) or a competitor (CompetitorID set).
type PageExtraction struct {
	ID              string            `json:"id"`
	WebsiteID       string            `json:"website_id"`
	CompetitorID    string            `json:"competitor_id,omitempty"`
	URL             string            `json:"url"`
	Status          ExtractionStatus  `json:"status"`
	Type            ExtractionType    `json:"type"`
	Title           string            `json:"title,omitempty"`
	MetaDescription string            `json:"meta_description,omitempty"`
	H1              string            `json:"h1,omitempty"`
	Headings        []string          `json:"headings,omitempty"`
	Keywords        []WeightedKeyword `json:"keywords,omitempty"`
	HTMLBlobURL     string            `json:"html_blob_url,omitempty"`
	ExtractedAt     *time.Time        `json:"extracted_at,omitempty"`
	ErrorText       string            `json:"error_text,omitempty"`
}

// SitemapType classifies a fetched sitemap document.
type SitemapType string

// Sitemap document kinds.
const (
	SitemapTypeSingle SitemapType = "single"
	SitemapTypeIndex  SitemapType = "index"
)

// SitemapSnapshot is an append-only point-in-time capture of a sitemap.
// The latest snapshot is the one with the greatest FetchedAt.
type SitemapSnapshot struct {
	ID           string      `json:"id"`
	WebsiteID    string      `json:"website_id"`
	CompetitorID string      `json:"competitor_id,omitempty"`
	SitemapURL   string      `json:"sitemap_url"`
	SitemapType  SitemapType `json:"sitemap_type"`
	URLCount     int         `json:"url_count"`
	BlobURL      string      `json:"blob_url,omitempty"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// SitemapURL is one enumerated entry of a snapshot.
type SitemapURL struct {
	SnapshotID string  `json:"snapshot_id"`
	Loc        string  `json:"loc"`
	LastMod    string  `json:"lastmod,omitempty"`
	ChangeFreq string  `json:"changefreq,omitempty"`
	Priority   float64 `json:"priority,omitempty"`
}

// Report is a reasoner-generated SEO report for a website.
type Report struct {
	ID          string    `json:"id"`
	WebsiteID   string    `json:"website_id"`
	Summary     string    `json:"summary"`
	Suggestions []string  `json:"suggestions,omitempty"`
	BlobURL     string    `json:"blob_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is one entry of a fetched SERP, 1-based Position.
type SearchResult struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	Domain   string `json:"domain,omitempty"`
}

// RawSerpBlob is the shape persisted to blob storage for each SERP fetch.
// Reanalysis re-derives positions from this without re-querying.
type RawSerpBlob struct {
	Results   []SearchResult `json:"results"`
	Query     string         `json:"query"`
	Timestamp time.Time      `json:"timestamp"`
}

// RawSitemapBlob is the shape persisted to blob storage for sitemap listings.
type RawSitemapBlob struct {
	URLs []SitemapURL `json:"urls"`
}

// Page is the result of fetching one URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// QuerySuggestion is one reasoner-proposed search query.
type QuerySuggestion struct {
	Query            string           `json:"query"`
	Tags             []string         `json:"tags,omitempty"`
	CompetitionLevel CompetitionLevel `json:"competition_level"`
	Confidence       float64          `json:"confidence"`
}

// PageSignals is the structured page summary handed to the reasoner.
type PageSignals struct {
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	H1              string            `json:"h1"`
	Headings        []string          `json:"headings,omitempty"`
	Keywords        []WeightedKeyword `json:"keywords,omitempty"`
}

// ReportInput aggregates everything the reasoner sees for an SEO report.
type ReportInput struct {
	Website     Website           `json:"website"`
	Signals     PageSignals       `json:"signals"`
	Queries     []SearchQuery     `json:"queries,omitempty"`
	Competitors []CompetitorScore `json:"competitors,omitempty"`
}

// CompetitorScore pairs a competitor with its rank comparison against the
// tracked site.
type CompetitorScore struct {
	Competitor Competitor `json:"competitor"`
	Better     int        `json:"better"`
	Worse      int        `json:"worse"`
	Total      int        `json:"total"`
	Net        int        `json:"net"`
}
