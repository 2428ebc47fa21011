package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/jobs"
	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/sitemap"
)

// Extraction depth per subject: the tracked site gets full passes, rivals get
// the cheaper metadata pass.
const (
	ownExtractionType        = seo.ExtractionTypeFull
	competitorExtractionType = seo.ExtractionTypeQuick
)

// HandleSitemapFetch captures the tracked site's sitemaps and schedules
// extraction work for the URLs they enumerate.
func (p *Pipeline) HandleSitemapFetch(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.SitemapFetchPayload)

	baseURL := pl.WebsiteURL
	if baseURL == "" {
		site, err := p.store.GetWebsite(ctx, job.WebsiteID)
		if err != nil {
			return fmt.Errorf("load website: %w", err)
		}
		baseURL = site.URL
	}
	scope := seo.ExtractionScope{WebsiteID: job.WebsiteID}
	fetched, err := p.captureSitemaps(ctx, scope, pl.SelectedSitemaps, baseURL, ownExtractionType)
	if err != nil {
		return err
	}
	if len(fetched) > 0 {
		if err := p.store.SetSitemapFetched(ctx, job.WebsiteID, fetched[0], p.clock.Now()); err != nil {
			p.logger.Warn("record sitemap fetch failed",
				zap.String("website_id", job.WebsiteID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// HandleCompetitorSitemapFetch is the competitor-scoped counterpart.
func (p *Pipeline) HandleCompetitorSitemapFetch(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.CompetitorSitemapFetchPayload)

	competitor, err := p.store.GetCompetitor(ctx, pl.CompetitorID)
	if err != nil {
		return fmt.Errorf("load competitor: %w", err)
	}
	scope := seo.ExtractionScope{WebsiteID: job.WebsiteID, CompetitorID: competitor.ID}
	_, err = p.captureSitemaps(ctx, scope, pl.SelectedSitemaps, competitor.URL, competitorExtractionType)
	return err
}

// captureSitemaps fetches each selected sitemap (default: /sitemap.xml under
// the base URL), expanding index documents into their children, then persists
// one snapshot per selected sitemap and plans extraction work over every
// enumerated URL. A sitemap that fails to fetch or parse is logged and
// skipped; the handler fails only when none succeeded. It returns the
// sitemap URLs that were captured.
func (p *Pipeline) captureSitemaps(
	ctx context.Context,
	scope seo.ExtractionScope,
	selected []string,
	baseURL string,
	extractionType seo.ExtractionType,
) ([]string, error) {
	sitemaps := selected
	if len(sitemaps) == 0 {
		sitemaps = []string{strings.TrimSuffix(baseURL, "/") + "/sitemap.xml"}
	}

	var (
		fetched []string
		allLocs []string
	)
	for _, sitemapURL := range sitemaps {
		entries, sitemapType, err := p.captureOne(ctx, scope, sitemapURL)
		if err != nil {
			p.logger.Warn("sitemap capture failed",
				zap.String("sitemap_url", sitemapURL),
				zap.Error(err),
			)
			continue
		}
		fetched = append(fetched, sitemapURL)
		for _, e := range entries {
			allLocs = append(allLocs, e.Loc)
		}
		p.logger.Info("sitemap captured",
			zap.String("sitemap_url", sitemapURL),
			zap.String("type", string(sitemapType)),
			zap.Int("urls", len(entries)),
		)
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("no sitemap could be fetched for %s", baseURL)
	}

	if err := p.planExtractions(ctx, scope, allLocs, extractionType); err != nil {
		return fetched, err
	}
	return fetched, nil
}

// captureOne fetches and parses a single sitemap, following index children,
// and persists the snapshot with its URL rows and raw blob.
func (p *Pipeline) captureOne(ctx context.Context, scope seo.ExtractionScope, sitemapURL string) ([]seo.SitemapURL, seo.SitemapType, error) {
	doc, err := p.fetchSitemapDoc(ctx, sitemapURL)
	if err != nil {
		return nil, "", err
	}

	entries := doc.Entries
	if doc.Type == seo.SitemapTypeIndex {
		for _, child := range doc.Children {
			childDoc, err := p.fetchSitemapDoc(ctx, child)
			if err != nil {
				p.logger.Warn("child sitemap fetch failed",
					zap.String("sitemap_url", child),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, childDoc.Entries...)
		}
	}

	blobURL, err := p.putJSON(ctx, "sitemaps/"+scope.WebsiteID, seo.RawSitemapBlob{URLs: entries})
	if err != nil {
		return nil, "", err
	}
	snapID, err := p.newID()
	if err != nil {
		return nil, "", err
	}
	snap := seo.SitemapSnapshot{
		ID:           snapID,
		WebsiteID:    scope.WebsiteID,
		CompetitorID: scope.CompetitorID,
		SitemapURL:   sitemapURL,
		SitemapType:  doc.Type,
		URLCount:     len(entries),
		BlobURL:      blobURL,
		FetchedAt:    p.clock.Now(),
	}
	rows := make([]seo.SitemapURL, len(entries))
	for i, e := range entries {
		e.SnapshotID = snapID
		rows[i] = e
	}
	if err := p.store.CreateSitemapSnapshot(ctx, snap, rows); err != nil {
		return nil, "", fmt.Errorf("store sitemap snapshot: %w", err)
	}
	return entries, doc.Type, nil
}

func (p *Pipeline) fetchSitemapDoc(ctx context.Context, sitemapURL string) (sitemap.Document, error) {
	page, err := p.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return sitemap.Document{}, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	doc, err := sitemap.Parse(page.Body)
	if err != nil {
		return sitemap.Document{}, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return doc, nil
}

// planExtractions partitions the enumerated URLs against existing rows and
// creates or resets extraction rows plus their jobs. Lookups run in chunks to
// keep query parameter lists bounded.
func (p *Pipeline) planExtractions(ctx context.Context, scope seo.ExtractionScope, locs []string, extractionType seo.ExtractionType) error {
	if len(locs) == 0 {
		return nil
	}
	existing := make(map[string]seo.PageExtraction)
	for _, chunk := range sitemap.Chunk(locs, sitemap.LookupChunkSize) {
		found, err := p.store.FindExtractionsByURL(ctx, scope, chunk)
		if err != nil {
			return fmt.Errorf("look up extractions: %w", err)
		}
		for u, row := range found {
			existing[u] = row
		}
	}

	plan := sitemap.PlanExtractions(locs, existing, extractionType, p.clock.Now())
	for _, u := range plan.Create {
		if err := p.createExtractionJob(ctx, scope, u, extractionType); err != nil {
			p.logger.Warn("create extraction failed",
				zap.String("url", u),
				zap.Error(err),
			)
		}
	}
	for _, row := range plan.Update {
		if err := p.resetExtractionJob(ctx, scope, row, extractionType); err != nil {
			p.logger.Warn("reset extraction failed",
				zap.String("url", row.URL),
				zap.Error(err),
			)
		}
	}
	p.logger.Info("extraction plan applied",
		zap.String("website_id", scope.WebsiteID),
		zap.String("competitor_id", scope.CompetitorID),
		zap.Int("created", len(plan.Create)),
		zap.Int("updated", len(plan.Update)),
		zap.Int("skipped", plan.Skipped),
	)
	return nil
}

func (p *Pipeline) createExtractionJob(ctx context.Context, scope seo.ExtractionScope, url string, t seo.ExtractionType) error {
	id, err := p.newID()
	if err != nil {
		return err
	}
	row := seo.PageExtraction{
		ID:           id,
		WebsiteID:    scope.WebsiteID,
		CompetitorID: scope.CompetitorID,
		URL:          url,
		Status:       seo.ExtractionStatusPending,
		Type:         t,
	}
	if err := p.store.CreateExtraction(ctx, row); err != nil {
		return fmt.Errorf("create extraction row: %w", err)
	}
	return p.enqueueExtraction(ctx, scope, id, url, t)
}

func (p *Pipeline) resetExtractionJob(ctx context.Context, scope seo.ExtractionScope, row seo.PageExtraction, t seo.ExtractionType) error {
	if err := p.store.ResetExtraction(ctx, row.ID, t); err != nil {
		return fmt.Errorf("reset extraction row: %w", err)
	}
	return p.enqueueExtraction(ctx, scope, row.ID, row.URL, t)
}

func (p *Pipeline) enqueueExtraction(ctx context.Context, scope seo.ExtractionScope, extractionID, url string, t seo.ExtractionType) error {
	if scope.CompetitorID != "" {
		return p.enqueue(ctx, scope.WebsiteID, seo.JobTypeCompetitorPageExtraction, jobs.PriorityPageExtraction, &seo.CompetitorPageExtractionPayload{
			ExtractionID:   extractionID,
			URL:            url,
			ExtractionType: t,
		})
	}
	return p.enqueue(ctx, scope.WebsiteID, seo.JobTypePageExtraction, jobs.PriorityPageExtraction, &seo.PageExtractionPayload{
		ExtractionID:   extractionID,
		URL:            url,
		ExtractionType: t,
	})
}
