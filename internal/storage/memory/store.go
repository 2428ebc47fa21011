// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rankscope/rankscope/internal/domain"
	"github.com/rankscope/rankscope/internal/seo"
)

// Store is a mutex-guarded implementation of seo.Store.
type Store struct {
	mu           sync.RWMutex
	jobs         map[string]seo.Job
	websites     map[string]seo.Website
	queries      map[string]seo.SearchQuery
	serpResults  map[string]seo.SerpResult
	competitors  map[string]seo.Competitor
	extractions  map[string]seo.PageExtraction
	snapshots    map[string]seo.SitemapSnapshot
	snapshotURLs map[string][]seo.SitemapURL
	reports      map[string]seo.Report
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs:         make(map[string]seo.Job),
		websites:     make(map[string]seo.Website),
		queries:      make(map[string]seo.SearchQuery),
		serpResults:  make(map[string]seo.SerpResult),
		competitors:  make(map[string]seo.Competitor),
		extractions:  make(map[string]seo.PageExtraction),
		snapshots:    make(map[string]seo.SitemapSnapshot),
		snapshotURLs: make(map[string][]seo.SitemapURL),
		reports:      make(map[string]seo.Report),
	}
}

// CreateJob stores a new pending job.
func (s *Store) CreateJob(_ context.Context, job seo.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (seo.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return seo.Job{}, seo.ErrNotFound
	}
	return job, nil
}

// HasOpenJob reports whether a pending or running (websiteID, type) job exists.
func (s *Store) HasOpenJob(_ context.Context, websiteID string, t seo.JobType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.WebsiteID == websiteID && job.Type == t &&
			(job.Status == seo.JobStatusPending || job.Status == seo.JobStatusRunning) {
			return true, nil
		}
	}
	return false, nil
}

// LatestJob returns the most recently created job of the pair, any status.
func (s *Store) LatestJob(_ context.Context, websiteID string, t seo.JobType) (seo.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest seo.Job
	found := false
	for _, job := range s.jobs {
		if job.WebsiteID != websiteID || job.Type != t {
			continue
		}
		if !found || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
			found = true
		}
	}
	if !found {
		return seo.Job{}, seo.ErrNotFound
	}
	return latest, nil
}

// ClaimPendingJobs atomically marks up to limit pending jobs running,
// ordered by priority descending then createdAt ascending.
func (s *Store) ClaimPendingJobs(_ context.Context, limit int) ([]seo.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []seo.Job
	for _, job := range s.jobs {
		if job.Status == seo.JobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	for i := range pending {
		pending[i].Status = seo.JobStatusRunning
		pending[i].UpdatedAt = now
		s.jobs[pending[i].ID] = pending[i]
	}
	return pending, nil
}

// CompleteJob marks a running job completed.
func (s *Store) CompleteJob(_ context.Context, jobID string) error {
	return s.finishJob(jobID, seo.JobStatusCompleted, "")
}

// FailJob marks a job failed with the error text for operator inspection.
func (s *Store) FailJob(_ context.Context, jobID string, errText string) error {
	return s.finishJob(jobID, seo.JobStatusFailed, errText)
}

func (s *Store) finishJob(jobID string, status seo.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return seo.ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// CreateWebsite seeds a website row. The dashboard owns website creation in
// production; this exists for development and tests.
func (s *Store) CreateWebsite(_ context.Context, w seo.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.websites[w.ID]; exists {
		return fmt.Errorf("website %s already exists", w.ID)
	}
	s.websites[w.ID] = w
	return nil
}

// GetWebsite fetches a website by ID.
func (s *Store) GetWebsite(_ context.Context, websiteID string) (seo.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.websites[websiteID]
	if !ok {
		return seo.Website{}, seo.ErrNotFound
	}
	return w, nil
}

// ListActiveWebsites returns websites eligible for periodic scheduling.
func (s *Store) ListActiveWebsites(_ context.Context) ([]seo.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []seo.Website
	for _, w := range s.websites {
		if w.Status == seo.WebsiteStatusActive {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateWebsiteStatus mutates the lifecycle status. Only pipelines call this.
func (s *Store) UpdateWebsiteStatus(_ context.Context, websiteID string, status seo.WebsiteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.websites[websiteID]
	if !ok {
		return seo.ErrNotFound
	}
	w.Status = status
	s.websites[websiteID] = w
	return nil
}

// SetSitemapFetched records the sitemap URL and fetch time on the website.
func (s *Store) SetSitemapFetched(_ context.Context, websiteID string, sitemapURL string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.websites[websiteID]
	if !ok {
		return seo.ErrNotFound
	}
	if sitemapURL != "" {
		w.SitemapURL = sitemapURL
	}
	fetched := at
	w.LastSitemapFetch = &fetched
	s.websites[websiteID] = w
	return nil
}

// CreateSearchQuery stores a tracked query.
func (s *Store) CreateSearchQuery(_ context.Context, q seo.SearchQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.queries[q.ID]; exists {
		return fmt.Errorf("search query %s already exists", q.ID)
	}
	s.queries[q.ID] = q
	return nil
}

// GetSearchQuery fetches one query by ID.
func (s *Store) GetSearchQuery(_ context.Context, queryID string) (seo.SearchQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[queryID]
	if !ok {
		return seo.SearchQuery{}, seo.ErrNotFound
	}
	return q, nil
}

// ListActiveQueries returns the website's active queries.
func (s *Store) ListActiveQueries(_ context.Context, websiteID string) ([]seo.SearchQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []seo.SearchQuery
	for _, q := range s.queries {
		if q.WebsiteID == websiteID && q.IsActive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSerpResult appends one SERP snapshot.
func (s *Store) CreateSerpResult(_ context.Context, r seo.SerpResult) error {
	if (r.SearchQueryID == "") == (r.CompetitorID == "") {
		return fmt.Errorf("serp result must be scoped to exactly one of search query or competitor")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.serpResults[r.ID]; exists {
		return fmt.Errorf("serp result %s already exists", r.ID)
	}
	s.serpResults[r.ID] = r
	return nil
}

// GetSerpResult fetches one snapshot by ID.
func (s *Store) GetSerpResult(_ context.Context, resultID string) (seo.SerpResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.serpResults[resultID]
	if !ok {
		return seo.SerpResult{}, seo.ErrNotFound
	}
	return r, nil
}

// CorrectSerpResult rewrites position and url after a blob reanalysis.
func (s *Store) CorrectSerpResult(_ context.Context, resultID string, position *int, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.serpResults[resultID]
	if !ok {
		return seo.ErrNotFound
	}
	r.Position = position
	r.URL = url
	s.serpResults[resultID] = r
	return nil
}

// LatestQueryPositions maps lower-cased queries to the newest own-site position.
func (s *Store) LatestQueryPositions(_ context.Context, websiteID string) (map[string]*int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]seo.SerpResult)
	for _, r := range s.serpResults {
		if r.SearchQueryID == "" {
			continue
		}
		q, ok := s.queries[r.SearchQueryID]
		if !ok || q.WebsiteID != websiteID {
			continue
		}
		key := strings.ToLower(r.Query)
		if prev, ok := latest[key]; !ok || r.CreatedAt.After(prev.CreatedAt) {
			latest[key] = r
		}
	}
	return positionsOf(latest), nil
}

// LatestCompetitorPositions maps lower-cased queries to the newest
// competitor-scoped position.
func (s *Store) LatestCompetitorPositions(_ context.Context, competitorID string) (map[string]*int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]seo.SerpResult)
	for _, r := range s.serpResults {
		if r.CompetitorID != competitorID {
			continue
		}
		key := strings.ToLower(r.Query)
		if prev, ok := latest[key]; !ok || r.CreatedAt.After(prev.CreatedAt) {
			latest[key] = r
		}
	}
	return positionsOf(latest), nil
}

func positionsOf(latest map[string]seo.SerpResult) map[string]*int {
	out := make(map[string]*int, len(latest))
	for q, r := range latest {
		out[q] = r.Position
	}
	return out
}

// CreateCompetitor stores a competitor, rejecting duplicate (website, url)
// pairs the way a database uniqueness constraint would.
func (s *Store) CreateCompetitor(_ context.Context, c seo.Competitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.competitors {
		if existing.WebsiteID == c.WebsiteID && domain.Normalize(existing.URL) == domain.Normalize(c.URL) {
			return fmt.Errorf("competitor %s already tracked for website %s", c.URL, c.WebsiteID)
		}
	}
	s.competitors[c.ID] = c
	return nil
}

// GetCompetitor fetches one competitor by ID.
func (s *Store) GetCompetitor(_ context.Context, competitorID string) (seo.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.competitors[competitorID]
	if !ok {
		return seo.Competitor{}, seo.ErrNotFound
	}
	return c, nil
}

// ListCompetitors returns all competitors tracked for the website.
func (s *Store) ListCompetitors(_ context.Context, websiteID string) ([]seo.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []seo.Competitor
	for _, c := range s.competitors {
		if c.WebsiteID == websiteID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateExtraction stores a new extraction row.
func (s *Store) CreateExtraction(_ context.Context, e seo.PageExtraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.extractions[e.ID]; exists {
		return fmt.Errorf("extraction %s already exists", e.ID)
	}
	for _, existing := range s.extractions {
		if existing.WebsiteID == e.WebsiteID && existing.CompetitorID == e.CompetitorID && existing.URL == e.URL {
			return fmt.Errorf("extraction for %s already exists", e.URL)
		}
	}
	s.extractions[e.ID] = e
	return nil
}

// GetExtraction fetches one row by ID.
func (s *Store) GetExtraction(_ context.Context, extractionID string) (seo.PageExtraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.extractions[extractionID]
	if !ok {
		return seo.PageExtraction{}, seo.ErrNotFound
	}
	return e, nil
}

// FindExtractionsByURL returns existing rows for the given URLs, keyed by URL.
func (s *Store) FindExtractionsByURL(_ context.Context, scope seo.ExtractionScope, urls []string) (map[string]seo.PageExtraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(urls))
	for _, u := range urls {
		wanted[u] = true
	}
	out := make(map[string]seo.PageExtraction)
	for _, e := range s.extractions {
		if e.WebsiteID == scope.WebsiteID && e.CompetitorID == scope.CompetitorID && wanted[e.URL] {
			out[e.URL] = e
		}
	}
	return out, nil
}

// ResetExtraction returns a row to pending for the requested type.
func (s *Store) ResetExtraction(_ context.Context, extractionID string, t seo.ExtractionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extractions[extractionID]
	if !ok {
		return seo.ErrNotFound
	}
	e.Status = seo.ExtractionStatusPending
	e.Type = t
	e.ErrorText = ""
	s.extractions[extractionID] = e
	return nil
}

// StartExtraction marks a row extracting.
func (s *Store) StartExtraction(_ context.Context, extractionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extractions[extractionID]
	if !ok {
		return seo.ErrNotFound
	}
	e.Status = seo.ExtractionStatusExtracting
	s.extractions[extractionID] = e
	return nil
}

// CompleteExtraction stores the parsed content on the row.
func (s *Store) CompleteExtraction(_ context.Context, e seo.PageExtraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.extractions[e.ID]; !ok {
		return seo.ErrNotFound
	}
	e.Status = seo.ExtractionStatusCompleted
	e.ErrorText = ""
	s.extractions[e.ID] = e
	return nil
}

// FailExtraction records the failure reason on the row.
func (s *Store) FailExtraction(_ context.Context, extractionID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extractions[extractionID]
	if !ok {
		return seo.ErrNotFound
	}
	e.Status = seo.ExtractionStatusFailed
	e.ErrorText = errText
	s.extractions[extractionID] = e
	return nil
}

// CreateSitemapSnapshot appends a snapshot and its URL entries.
func (s *Store) CreateSitemapSnapshot(_ context.Context, snap seo.SitemapSnapshot, urls []seo.SitemapURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[snap.ID]; exists {
		return fmt.Errorf("sitemap snapshot %s already exists", snap.ID)
	}
	s.snapshots[snap.ID] = snap
	entries := make([]seo.SitemapURL, len(urls))
	copy(entries, urls)
	for i := range entries {
		entries[i].SnapshotID = snap.ID
	}
	s.snapshotURLs[snap.ID] = entries
	return nil
}

// LatestSitemapSnapshot returns the snapshot with the greatest FetchedAt.
func (s *Store) LatestSitemapSnapshot(_ context.Context, scope seo.ExtractionScope) (seo.SitemapSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest seo.SitemapSnapshot
	found := false
	for _, snap := range s.snapshots {
		if snap.WebsiteID != scope.WebsiteID || snap.CompetitorID != scope.CompetitorID {
			continue
		}
		if !found || snap.FetchedAt.After(latest.FetchedAt) {
			latest = snap
			found = true
		}
	}
	if !found {
		return seo.SitemapSnapshot{}, seo.ErrNotFound
	}
	return latest, nil
}

// CreateReport stores a generated report.
func (s *Store) CreateReport(_ context.Context, r seo.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("report %s already exists", r.ID)
	}
	s.reports[r.ID] = r
	return nil
}

// Reports returns stored reports for test inspection.
func (s *Store) Reports() []seo.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]seo.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
