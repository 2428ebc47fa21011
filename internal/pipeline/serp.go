package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/domain"
	"github.com/rankscope/rankscope/internal/score"
	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/serp"
)

// HandleSerpAnalysis fetches the live result set for one tracked query,
// snapshots it to blob storage, records the site's position and feeds new
// competitor domains into auto-discovery.
func (p *Pipeline) HandleSerpAnalysis(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.SerpAnalysisPayload)

	site, err := p.store.GetWebsite(ctx, job.WebsiteID)
	if err != nil {
		return fmt.Errorf("load website: %w", err)
	}
	results, blobURL, err := p.searchAndSnapshot(ctx, job.WebsiteID, pl.Query)
	if err != nil {
		return err
	}

	r := seo.SerpResult{
		SearchQueryID: pl.SearchQueryID,
		Query:         pl.Query,
		RawBlobURL:    blobURL,
		CreatedAt:     p.clock.Now(),
	}
	if r.ID, err = p.newID(); err != nil {
		return err
	}
	if match := serp.FindPosition(results, site.URL); match != nil {
		pos := match.Position
		r.Position = &pos
		r.URL = match.URL
		r.Title = match.Title
		r.Snippet = match.Snippet
	}
	if err := p.store.CreateSerpResult(ctx, r); err != nil {
		return fmt.Errorf("store serp result: %w", err)
	}

	// Discovery is best effort: a failed competitor insert never fails the
	// ranking run that surfaced it.
	p.discoverCompetitors(ctx, site, pl.Query, results)
	return nil
}

// HandleCompetitorSerpAnalysis re-runs every active query and records the
// competitor's position in each result set. Per-query failures are logged and
// skipped; the job fails only when no query could be fetched.
func (p *Pipeline) HandleCompetitorSerpAnalysis(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.CompetitorSerpAnalysisPayload)

	competitor, err := p.store.GetCompetitor(ctx, pl.CompetitorID)
	if err != nil {
		return fmt.Errorf("load competitor: %w", err)
	}
	queries, err := p.store.ListActiveQueries(ctx, job.WebsiteID)
	if err != nil {
		return fmt.Errorf("list active queries: %w", err)
	}
	if len(queries) == 0 {
		return nil
	}

	failed := 0
	for _, q := range queries {
		if err := p.competitorQueryRun(ctx, competitor, q.Query); err != nil {
			failed++
			p.logger.Warn("competitor serp run failed",
				zap.String("competitor_id", competitor.ID),
				zap.String("query", q.Query),
				zap.Error(err),
			)
		}
	}
	if failed == len(queries) {
		return fmt.Errorf("all %d competitor serp runs failed", failed)
	}
	return nil
}

func (p *Pipeline) competitorQueryRun(ctx context.Context, competitor seo.Competitor, query string) error {
	results, blobURL, err := p.searchAndSnapshot(ctx, competitor.WebsiteID, query)
	if err != nil {
		return err
	}
	r := seo.SerpResult{
		CompetitorID: competitor.ID,
		Query:        query,
		RawBlobURL:   blobURL,
		CreatedAt:    p.clock.Now(),
	}
	if r.ID, err = p.newID(); err != nil {
		return err
	}
	if match := serp.FindPosition(results, competitor.URL); match != nil {
		pos := match.Position
		r.Position = &pos
		r.URL = match.URL
		r.Title = match.Title
		r.Snippet = match.Snippet
	}
	if err := p.store.CreateSerpResult(ctx, r); err != nil {
		return fmt.Errorf("store serp result: %w", err)
	}
	return nil
}

// searchAndSnapshot runs the search and persists the raw result set so the
// position can later be re-derived without re-querying.
func (p *Pipeline) searchAndSnapshot(ctx context.Context, websiteID, query string) ([]seo.SearchResult, string, error) {
	results, err := p.search.Search(ctx, query)
	if err != nil {
		return nil, "", fmt.Errorf("search %q: %w", query, err)
	}
	blob := seo.RawSerpBlob{
		Results:   results,
		Query:     query,
		Timestamp: p.clock.Now(),
	}
	blobURL, err := p.putJSON(ctx, "serp/"+websiteID, blob)
	if err != nil {
		return nil, "", err
	}
	return results, blobURL, nil
}

// discoverCompetitors creates competitor rows for up to three new domains
// seen in the result set. A candidate whose domain overlaps a stored
// competitor URL in either direction is treated as already known.
func (p *Pipeline) discoverCompetitors(ctx context.Context, site seo.Website, query string, results []seo.SearchResult) {
	candidates := serp.Candidates(results, site.URL)
	if len(candidates) == 0 {
		return
	}
	existing, err := p.store.ListCompetitors(ctx, site.ID)
	if err != nil {
		p.logger.Warn("list competitors for discovery failed",
			zap.String("website_id", site.ID),
			zap.Error(err),
		)
		return
	}
	known := make([]string, 0, len(existing))
	for _, c := range existing {
		known = append(known, domain.Normalize(c.URL))
	}

	for _, cand := range candidates {
		if overlapsKnown(cand.Domain, known) {
			continue
		}
		id, err := p.newID()
		if err != nil {
			p.logger.Warn("competitor discovery failed", zap.Error(err))
			return
		}
		competitor := seo.Competitor{
			ID:             id,
			WebsiteID:      site.ID,
			URL:            "https://" + cand.Domain,
			Name:           cand.Domain,
			Description:    fmt.Sprintf("Auto-discovered from search results for %q", query),
			IsActive:       true,
			AutoDiscovered: true,
			CreatedAt:      p.clock.Now(),
		}
		if err := p.store.CreateCompetitor(ctx, competitor); err != nil {
			// Duplicate inserts from concurrent discovery are expected.
			p.logger.Debug("competitor insert skipped",
				zap.String("domain", cand.Domain),
				zap.Error(err),
			)
			continue
		}
		known = append(known, cand.Domain)
		p.logger.Info("competitor discovered",
			zap.String("website_id", site.ID),
			zap.String("domain", cand.Domain),
			zap.String("query", query),
		)
	}
}

func overlapsKnown(candidate string, known []string) bool {
	for _, k := range known {
		if k == "" {
			continue
		}
		if strings.Contains(k, candidate) || strings.Contains(candidate, k) {
			return true
		}
	}
	return false
}

// ReanalyzeSerpResult re-derives position and url for a stored result from
// its raw blob, without hitting the search provider again.
func (p *Pipeline) ReanalyzeSerpResult(ctx context.Context, resultID string) (seo.SerpResult, error) {
	r, err := p.store.GetSerpResult(ctx, resultID)
	if err != nil {
		return seo.SerpResult{}, fmt.Errorf("load serp result: %w", err)
	}
	if r.RawBlobURL == "" {
		return seo.SerpResult{}, fmt.Errorf("serp result %s has no raw blob", resultID)
	}
	data, err := p.blobs.GetObject(ctx, r.RawBlobURL)
	if err != nil {
		return seo.SerpResult{}, fmt.Errorf("read raw blob: %w", err)
	}
	var blob seo.RawSerpBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return seo.SerpResult{}, fmt.Errorf("decode raw blob: %w", err)
	}

	site, err := p.subjectDomain(ctx, r)
	if err != nil {
		return seo.SerpResult{}, err
	}

	var (
		position *int
		url      string
	)
	if match := serp.FindPosition(blob.Results, site); match != nil {
		pos := match.Position
		position = &pos
		url = match.URL
	}
	if err := p.store.CorrectSerpResult(ctx, resultID, position, url); err != nil {
		return seo.SerpResult{}, fmt.Errorf("correct serp result: %w", err)
	}
	return p.store.GetSerpResult(ctx, resultID)
}

// subjectDomain resolves the domain a result is tracking: the website behind
// its search query, or its competitor.
func (p *Pipeline) subjectDomain(ctx context.Context, r seo.SerpResult) (string, error) {
	if r.CompetitorID != "" {
		competitor, err := p.store.GetCompetitor(ctx, r.CompetitorID)
		if err != nil {
			return "", fmt.Errorf("load competitor: %w", err)
		}
		return competitor.URL, nil
	}
	q, err := p.store.GetSearchQuery(ctx, r.SearchQueryID)
	if err != nil {
		return "", fmt.Errorf("load search query: %w", err)
	}
	site, err := p.store.GetWebsite(ctx, q.WebsiteID)
	if err != nil {
		return "", fmt.Errorf("load website: %w", err)
	}
	return site.URL, nil
}

// CompetitorScores ranks every competitor of a website by how its latest
// positions compare with the site's own across shared queries.
func (p *Pipeline) CompetitorScores(ctx context.Context, websiteID string) ([]seo.CompetitorScore, error) {
	own, err := p.store.LatestQueryPositions(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("load own positions: %w", err)
	}
	competitors, err := p.store.ListCompetitors(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}

	scores := make([]seo.CompetitorScore, 0, len(competitors))
	for _, c := range competitors {
		theirs, err := p.store.LatestCompetitorPositions(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load positions for competitor %s: %w", c.ID, err)
		}
		cmp := score.Compare(own, theirs)
		scores = append(scores, seo.CompetitorScore{
			Competitor: c,
			Better:     cmp.Better,
			Worse:      cmp.Worse,
			Total:      cmp.Total,
			Net:        cmp.Net(),
		})
	}
	return score.Rank(scores), nil
}
