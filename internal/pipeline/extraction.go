package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/keywords"
	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/sitemap"
)

// HandlePageExtraction scrapes one tracked-site page and persists its parsed
// content and weighted keywords.
func (p *Pipeline) HandlePageExtraction(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.PageExtractionPayload)
	return p.runExtraction(ctx, pl.ExtractionID, pl.URL)
}

// HandleCompetitorPageExtraction is the competitor-scoped counterpart.
func (p *Pipeline) HandleCompetitorPageExtraction(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.CompetitorPageExtractionPayload)
	return p.runExtraction(ctx, pl.ExtractionID, pl.URL)
}

// runExtraction drives one extraction row from pending to a terminal status.
// Any failure after the row starts is recorded on the row and fails the job.
func (p *Pipeline) runExtraction(ctx context.Context, extractionID, url string) error {
	row, err := p.store.GetExtraction(ctx, extractionID)
	if err != nil {
		return fmt.Errorf("load extraction: %w", err)
	}
	if url == "" {
		url = row.URL
	}
	if err := p.store.StartExtraction(ctx, extractionID); err != nil {
		return fmt.Errorf("start extraction: %w", err)
	}

	if err := p.extractInto(ctx, &row, url); err != nil {
		if failErr := p.store.FailExtraction(ctx, extractionID, err.Error()); failErr != nil {
			p.logger.Error("mark extraction failed failed",
				zap.String("extraction_id", extractionID),
				zap.Error(failErr),
			)
		}
		return err
	}
	if err := p.store.CompleteExtraction(ctx, row); err != nil {
		return fmt.Errorf("complete extraction: %w", err)
	}
	return nil
}

// extractInto fetches the page, parses its signals and weights the keywords,
// writing results onto row.
func (p *Pipeline) extractInto(ctx context.Context, row *seo.PageExtraction, url string) error {
	page, err := p.fetchPage(ctx, url)
	if err != nil {
		return err
	}
	if page.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: status %d", url, page.StatusCode)
	}
	content, err := keywords.Extract(page.Body, url)
	if err != nil {
		return fmt.Errorf("extract %s: %w", url, err)
	}

	blobURL, err := p.putBlob(ctx, "pages/"+row.WebsiteID, "text/html", ".html", page.Body)
	if err != nil {
		return err
	}

	row.URL = url
	row.Title = content.Title
	row.MetaDescription = content.MetaDescription
	row.H1 = content.H1
	row.Headings = content.Headings
	row.Keywords = keywords.Weight(content.Keywords, content.Title, content.MetaDescription, content.Headings)
	row.HTMLBlobURL = blobURL
	now := p.clock.Now()
	row.ExtractedAt = &now
	row.Status = seo.ExtractionStatusCompleted
	row.ErrorText = ""
	return nil
}

// HandlePageScrape batches ad hoc competitor page extractions, typically for
// pages seen in a SERP. Rows are created when missing and force-reset when
// present, then one extraction job is enqueued per URL.
func (p *Pipeline) HandlePageScrape(ctx context.Context, job seo.Job, payload seo.Payload) error {
	pl := payload.(*seo.PageScrapePayload)

	competitor, err := p.store.GetCompetitor(ctx, pl.CompetitorID)
	if err != nil {
		return fmt.Errorf("load competitor: %w", err)
	}
	scope := seo.ExtractionScope{WebsiteID: job.WebsiteID, CompetitorID: competitor.ID}

	existing := make(map[string]seo.PageExtraction)
	for _, chunk := range sitemap.Chunk(pl.URLs, sitemap.LookupChunkSize) {
		found, err := p.store.FindExtractionsByURL(ctx, scope, chunk)
		if err != nil {
			return fmt.Errorf("look up extractions: %w", err)
		}
		for u, row := range found {
			existing[u] = row
		}
	}

	seen := make(map[string]bool, len(pl.URLs))
	scheduled := 0
	for _, u := range pl.URLs {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		var err error
		if row, ok := existing[u]; ok {
			err = p.resetExtractionJob(ctx, scope, row, competitorExtractionType)
		} else {
			err = p.createExtractionJob(ctx, scope, u, competitorExtractionType)
		}
		if err != nil {
			p.logger.Warn("schedule page scrape failed",
				zap.String("url", u),
				zap.Error(err),
			)
			continue
		}
		scheduled++
	}
	if scheduled == 0 && len(seen) > 0 {
		return fmt.Errorf("no page scrape could be scheduled for competitor %s", competitor.ID)
	}
	p.logger.Info("page scrape scheduled",
		zap.String("competitor_id", competitor.ID),
		zap.Int("pages", scheduled),
	)
	return nil
}
