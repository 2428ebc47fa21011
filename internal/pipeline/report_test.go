package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankscope/rankscope/internal/seo"
)

func TestHandleAIReport(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	e.seedCompetitor("c1", "w1", "https://runners.example.org")
	require.NoError(t, e.store.CreateSearchQuery(ctx, seo.SearchQuery{
		ID: "q1", WebsiteID: "w1", Query: "running shoes", IsActive: true,
	}))
	now := e.clock.Now()
	require.NoError(t, e.store.CreateExtraction(ctx, seo.PageExtraction{
		ID:          "e1",
		WebsiteID:   "w1",
		URL:         "https://mysite.example.com",
		Status:      seo.ExtractionStatusCompleted,
		Type:        seo.ExtractionTypeFull,
		Title:       "Running Shoes Store",
		ExtractedAt: &now,
	}))
	e.reasoner.report = seo.Report{
		Summary:     "Solid keyword coverage, weak against runners.example.org.",
		Suggestions: []string{"Add a trail shoes landing page"},
	}

	require.NoError(t, e.pipeline.HandleAIReport(ctx, job("w1", seo.JobTypeAIReport), &seo.AIReportPayload{}))

	reports := e.store.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "w1", reports[0].WebsiteID)
	require.NotEmpty(t, reports[0].ID)
	require.NotEmpty(t, reports[0].BlobURL)
	require.Contains(t, reports[0].Summary, "keyword coverage")

	// The reasoner saw the homepage signals, queries and competitor ranking.
	require.Equal(t, "Running Shoes Store", e.reasoner.lastInput.Signals.Title)
	require.Len(t, e.reasoner.lastInput.Queries, 1)
	require.Len(t, e.reasoner.lastInput.Competitors, 1)
}

func TestHandleAIReport_NoHomepageExtraction(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	e.reasoner.report = seo.Report{Summary: "thin data"}

	require.NoError(t, e.pipeline.HandleAIReport(ctx, job("w1", seo.JobTypeAIReport), &seo.AIReportPayload{}))

	require.Len(t, e.store.Reports(), 1)
	require.Equal(t, "https://mysite.example.com", e.reasoner.lastInput.Signals.URL)
	require.Empty(t, e.reasoner.lastInput.Signals.Title)
}

func TestHandleAIReport_ReasonerFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	e.reasoner.reportErr = errors.New("model overloaded")

	err := e.pipeline.HandleAIReport(ctx, job("w1", seo.JobTypeAIReport), &seo.AIReportPayload{})
	require.Error(t, err)
	require.Empty(t, e.store.Reports())
}
