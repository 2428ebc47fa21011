package seo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// JobStore persists analysis jobs and drives the status machine. Claiming is
// atomic per job row: no two processor passes may run the same job.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	// HasOpenJob reports whether a pending or running job of the given
	// (website, type) pair exists. This is the scheduler's idempotency guard.
	HasOpenJob(ctx context.Context, websiteID string, t JobType) (bool, error)
	// LatestJob returns the most recently created job of the pair, any status.
	LatestJob(ctx context.Context, websiteID string, t JobType) (Job, error)
	// ClaimPendingJobs atomically transitions up to limit pending jobs to
	// running, ordered by priority descending then createdAt ascending.
	ClaimPendingJobs(ctx context.Context, limit int) ([]Job, error)
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID string, errText string) error
}

// WebsiteStore persists tracked websites.
type WebsiteStore interface {
	GetWebsite(ctx context.Context, websiteID string) (Website, error)
	ListActiveWebsites(ctx context.Context) ([]Website, error)
	UpdateWebsiteStatus(ctx context.Context, websiteID string, status WebsiteStatus) error
	SetSitemapFetched(ctx context.Context, websiteID string, sitemapURL string, at time.Time) error
}

// QueryStore persists tracked search queries.
type QueryStore interface {
	CreateSearchQuery(ctx context.Context, q SearchQuery) error
	GetSearchQuery(ctx context.Context, queryID string) (SearchQuery, error)
	ListActiveQueries(ctx context.Context, websiteID string) ([]SearchQuery, error)
}

// SerpStore persists SERP snapshots and serves latest-position maps.
type SerpStore interface {
	CreateSerpResult(ctx context.Context, r SerpResult) error
	GetSerpResult(ctx context.Context, resultID string) (SerpResult, error)
	// CorrectSerpResult rewrites position and url from a reanalysis of the
	// stored raw blob. No other field of a SerpResult is ever updated.
	CorrectSerpResult(ctx context.Context, resultID string, position *int, url string) error
	// LatestQueryPositions maps lower-cased query strings to the most recent
	// query-scoped position for the website. Nil values mean "not ranked".
	LatestQueryPositions(ctx context.Context, websiteID string) (map[string]*int, error)
	// LatestCompetitorPositions is the competitor-scoped counterpart.
	LatestCompetitorPositions(ctx context.Context, competitorID string) (map[string]*int, error)
}

// CompetitorStore persists competitors. Creation must fail safely on
// duplicate (websiteID, url) pairs so dedup races stay harmless.
type CompetitorStore interface {
	CreateCompetitor(ctx context.Context, c Competitor) error
	GetCompetitor(ctx context.Context, competitorID string) (Competitor, error)
	ListCompetitors(ctx context.Context, websiteID string) ([]Competitor, error)
}

// ExtractionScope selects own-site rows (CompetitorID empty) or a single
// competitor's rows.
type ExtractionScope struct {
	WebsiteID    string
	CompetitorID string
}

// ExtractionStore persists page extraction rows for sites and competitors.
type ExtractionStore interface {
	CreateExtraction(ctx context.Context, e PageExtraction) error
	GetExtraction(ctx context.Context, extractionID string) (PageExtraction, error)
	// FindExtractionsByURL returns existing rows for the given URLs, keyed by
	// URL. Callers batch URL lookups; missing URLs are simply absent.
	FindExtractionsByURL(ctx context.Context, scope ExtractionScope, urls []string) (map[string]PageExtraction, error)
	// ResetExtraction returns a stale or failed row to pending for the
	// requested extraction type.
	ResetExtraction(ctx context.Context, extractionID string, t ExtractionType) error
	StartExtraction(ctx context.Context, extractionID string) error
	CompleteExtraction(ctx context.Context, e PageExtraction) error
	FailExtraction(ctx context.Context, extractionID string, errText string) error
}

// SitemapStore persists append-only sitemap snapshots.
type SitemapStore interface {
	CreateSitemapSnapshot(ctx context.Context, snap SitemapSnapshot, urls []SitemapURL) error
	LatestSitemapSnapshot(ctx context.Context, scope ExtractionScope) (SitemapSnapshot, error)
}

// ReportStore persists reasoner-generated reports.
type ReportStore interface {
	CreateReport(ctx context.Context, r Report) error
}

// Store is the single relational source of truth for all derived entities.
type Store interface {
	JobStore
	WebsiteStore
	QueryStore
	SerpStore
	CompetitorStore
	ExtractionStore
	SitemapStore
	ReportStore
}

// BlobStore writes large raw payloads and reads them back by URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, uri string) ([]byte, error)
}

// PageFetcher fetches a URL and returns the raw page. Failures are opaque.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// SearchClient fetches a ranked result list for a query. Failures are opaque.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Reasoner turns structured signals into typed JSON outputs.
type Reasoner interface {
	SuggestQueries(ctx context.Context, signals PageSignals) ([]QuerySuggestion, error)
	GenerateReport(ctx context.Context, input ReportInput) (Report, error)
}

// RenderDetector decides whether a fetched page warrants a headless re-fetch.
type RenderDetector interface {
	ShouldRender(page Page) bool
}

// Publisher pushes job completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for blob path addressing.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces row IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
