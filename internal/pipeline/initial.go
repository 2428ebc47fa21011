package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/jobs"
	"github.com/rankscope/rankscope/internal/seo"
)

// HandleInitialAnalysis runs the full first-time analysis of a website:
// sitemap capture, homepage extraction, reasoner query suggestions and one
// serp_analysis job per suggested query. The website moves to analyzing for
// the duration and lands on active, or on error when the analysis fails.
func (p *Pipeline) HandleInitialAnalysis(ctx context.Context, job seo.Job, _ seo.Payload) error {
	site, err := p.store.GetWebsite(ctx, job.WebsiteID)
	if err != nil {
		return fmt.Errorf("load website: %w", err)
	}
	if err := p.store.UpdateWebsiteStatus(ctx, site.ID, seo.WebsiteStatusAnalyzing); err != nil {
		return fmt.Errorf("mark website analyzing: %w", err)
	}

	if err := p.analyzeWebsite(ctx, site); err != nil {
		if statusErr := p.store.UpdateWebsiteStatus(ctx, site.ID, seo.WebsiteStatusError); statusErr != nil {
			p.logger.Error("mark website errored failed",
				zap.String("website_id", site.ID),
				zap.Error(statusErr),
			)
		}
		return err
	}
	if err := p.store.UpdateWebsiteStatus(ctx, site.ID, seo.WebsiteStatusActive); err != nil {
		return fmt.Errorf("mark website active: %w", err)
	}
	return nil
}

func (p *Pipeline) analyzeWebsite(ctx context.Context, site seo.Website) error {
	// Sitemap capture feeds the extraction planner but is not load-bearing
	// for the rest of the analysis.
	scope := seo.ExtractionScope{WebsiteID: site.ID}
	var selected []string
	if site.SitemapURL != "" {
		selected = []string{site.SitemapURL}
	}
	if fetched, err := p.captureSitemaps(ctx, scope, selected, site.URL, ownExtractionType); err != nil {
		p.logger.Warn("initial sitemap capture failed",
			zap.String("website_id", site.ID),
			zap.Error(err),
		)
	} else if len(fetched) > 0 {
		if err := p.store.SetSitemapFetched(ctx, site.ID, fetched[0], p.clock.Now()); err != nil {
			p.logger.Warn("record sitemap fetch failed",
				zap.String("website_id", site.ID),
				zap.Error(err),
			)
		}
	}

	signals, err := p.extractHomepage(ctx, site)
	if err != nil {
		return err
	}

	suggestions, err := p.reasoner.SuggestQueries(ctx, signals)
	if err != nil {
		return fmt.Errorf("suggest queries: %w", err)
	}
	created := 0
	for _, s := range suggestions {
		if s.Query == "" {
			continue
		}
		id, err := p.newID()
		if err != nil {
			return err
		}
		q := seo.SearchQuery{
			ID:               id,
			WebsiteID:        site.ID,
			Query:            s.Query,
			Tags:             s.Tags,
			CompetitionLevel: s.CompetitionLevel,
			Confidence:       s.Confidence,
			IsActive:         true,
			CreatedAt:        p.clock.Now(),
		}
		if err := p.store.CreateSearchQuery(ctx, q); err != nil {
			return fmt.Errorf("store search query: %w", err)
		}
		err = p.enqueue(ctx, site.ID, seo.JobTypeSerpAnalysis, jobs.PrioritySerpAnalysis, &seo.SerpAnalysisPayload{
			SearchQueryID: q.ID,
			Query:         q.Query,
		})
		if err != nil {
			return err
		}
		created++
	}
	p.logger.Info("initial analysis finished",
		zap.String("website_id", site.ID),
		zap.Int("queries", created),
	)
	return nil
}

// extractHomepage scrapes the site's homepage into a completed extraction row
// and returns the structured signals for the reasoner.
func (p *Pipeline) extractHomepage(ctx context.Context, site seo.Website) (seo.PageSignals, error) {
	scope := seo.ExtractionScope{WebsiteID: site.ID}

	existing, err := p.store.FindExtractionsByURL(ctx, scope, []string{site.URL})
	if err != nil {
		return seo.PageSignals{}, fmt.Errorf("look up homepage extraction: %w", err)
	}
	row, ok := existing[site.URL]
	if !ok {
		id, err := p.newID()
		if err != nil {
			return seo.PageSignals{}, err
		}
		row = seo.PageExtraction{
			ID:        id,
			WebsiteID: site.ID,
			URL:       site.URL,
			Status:    seo.ExtractionStatusPending,
			Type:      ownExtractionType,
		}
		if err := p.store.CreateExtraction(ctx, row); err != nil {
			return seo.PageSignals{}, fmt.Errorf("create homepage extraction: %w", err)
		}
	}
	if err := p.store.StartExtraction(ctx, row.ID); err != nil {
		return seo.PageSignals{}, fmt.Errorf("start homepage extraction: %w", err)
	}
	if err := p.extractInto(ctx, &row, site.URL); err != nil {
		if failErr := p.store.FailExtraction(ctx, row.ID, err.Error()); failErr != nil {
			p.logger.Error("mark homepage extraction failed failed",
				zap.String("extraction_id", row.ID),
				zap.Error(failErr),
			)
		}
		return seo.PageSignals{}, err
	}
	if err := p.store.CompleteExtraction(ctx, row); err != nil {
		return seo.PageSignals{}, fmt.Errorf("complete homepage extraction: %w", err)
	}

	return seo.PageSignals{
		URL:             row.URL,
		Title:           row.Title,
		MetaDescription: row.MetaDescription,
		H1:              row.H1,
		Headings:        row.Headings,
		Keywords:        row.Keywords,
	}, nil
}
