package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/seo"
)

// HandleAIReport aggregates the site's latest homepage signals, tracked
// queries and competitor ranking into a reasoner-generated report.
func (p *Pipeline) HandleAIReport(ctx context.Context, job seo.Job, _ seo.Payload) error {
	site, err := p.store.GetWebsite(ctx, job.WebsiteID)
	if err != nil {
		return fmt.Errorf("load website: %w", err)
	}

	input := seo.ReportInput{Website: site}

	existing, err := p.store.FindExtractionsByURL(ctx, seo.ExtractionScope{WebsiteID: site.ID}, []string{site.URL})
	if err != nil {
		return fmt.Errorf("look up homepage extraction: %w", err)
	}
	if row, ok := existing[site.URL]; ok && row.Status == seo.ExtractionStatusCompleted {
		input.Signals = seo.PageSignals{
			URL:             row.URL,
			Title:           row.Title,
			MetaDescription: row.MetaDescription,
			H1:              row.H1,
			Headings:        row.Headings,
			Keywords:        row.Keywords,
		}
	} else {
		p.logger.Warn("no completed homepage extraction for report",
			zap.String("website_id", site.ID),
		)
		input.Signals = seo.PageSignals{URL: site.URL}
	}

	if input.Queries, err = p.store.ListActiveQueries(ctx, site.ID); err != nil {
		return fmt.Errorf("list active queries: %w", err)
	}
	if input.Competitors, err = p.CompetitorScores(ctx, site.ID); err != nil {
		return err
	}

	report, err := p.reasoner.GenerateReport(ctx, input)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if report.ID, err = p.newID(); err != nil {
		return err
	}
	report.WebsiteID = site.ID
	report.CreatedAt = p.clock.Now()
	if report.BlobURL, err = p.putJSON(ctx, "reports/"+site.ID, report); err != nil {
		return err
	}
	if err := p.store.CreateReport(ctx, report); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}
