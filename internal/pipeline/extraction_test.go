package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankscope/rankscope/internal/seo"
)

const shoePageHTML = `<html>
<head>
  <title>Running Shoes Store</title>
  <meta name="description" content="Buy running shoes online">
</head>
<body>
  <h1>Running Shoes</h1>
  <h2>Trail shoes</h2>
  <p>shoes shoes shoes running trail comfort comfort</p>
</body>
</html>`

func seedExtraction(t *testing.T, e *env, id, websiteID, competitorID, url string) {
	t.Helper()
	err := e.store.CreateExtraction(context.Background(), seo.PageExtraction{
		ID:           id,
		WebsiteID:    websiteID,
		CompetitorID: competitorID,
		URL:          url,
		Status:       seo.ExtractionStatusPending,
		Type:         seo.ExtractionTypeFull,
	})
	require.NoError(t, err)
}

func TestHandlePageExtraction_Completes(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	seedExtraction(t, e, "e1", "w1", "", "https://mysite.example.com/shoes")
	e.fetcher.serve("https://mysite.example.com/shoes", shoePageHTML)

	payload := &seo.PageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://mysite.example.com/shoes",
		ExtractionType: seo.ExtractionTypeFull,
	}
	require.NoError(t, e.pipeline.HandlePageExtraction(ctx, job("w1", seo.JobTypePageExtraction), payload))

	row, err := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, seo.ExtractionStatusCompleted, row.Status)
	require.Equal(t, "Running Shoes Store", row.Title)
	require.Equal(t, "Buy running shoes online", row.MetaDescription)
	require.Equal(t, "Running Shoes", row.H1)
	require.NotEmpty(t, row.Keywords)
	require.NotNil(t, row.ExtractedAt)
	require.NotEmpty(t, row.HTMLBlobURL)

	// Title, description and headings all mention shoes, so it wins.
	require.Equal(t, "shoes", row.Keywords[0].Keyword)

	data, err := e.blobs.GetObject(ctx, row.HTMLBlobURL)
	require.NoError(t, err)
	require.Equal(t, shoePageHTML, string(data))
}

func TestHandlePageExtraction_FetchFailureFailsRowAndJob(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	seedExtraction(t, e, "e1", "w1", "", "https://mysite.example.com/shoes")
	e.fetcher.errs["https://mysite.example.com/shoes"] = errors.New("connection refused")

	payload := &seo.PageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://mysite.example.com/shoes",
		ExtractionType: seo.ExtractionTypeFull,
	}
	err := e.pipeline.HandlePageExtraction(ctx, job("w1", seo.JobTypePageExtraction), payload)
	require.Error(t, err)

	row, getErr := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, getErr)
	require.Equal(t, seo.ExtractionStatusFailed, row.Status)
	require.Contains(t, row.ErrorText, "connection refused")
}

func TestHandlePageExtraction_HTTPErrorStatusFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	seedExtraction(t, e, "e1", "w1", "", "https://mysite.example.com/gone")
	e.fetcher.pages["https://mysite.example.com/gone"] = seo.Page{
		URL:        "https://mysite.example.com/gone",
		StatusCode: 404,
		Body:       []byte("not found"),
	}

	payload := &seo.PageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://mysite.example.com/gone",
		ExtractionType: seo.ExtractionTypeFull,
	}
	err := e.pipeline.HandlePageExtraction(ctx, job("w1", seo.JobTypePageExtraction), payload)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}

func TestHandlePageExtraction_HeadlessPromotion(t *testing.T) {
	ctx := context.Background()
	e := newEnv().withDetector(alwaysRender{fire: true})
	e.seedWebsite("w1", "https://mysite.example.com")
	seedExtraction(t, e, "e1", "w1", "", "https://mysite.example.com/app")
	e.fetcher.serve("https://mysite.example.com/app", `<html><body><div id="root"></div></body></html>`)
	e.headless.serve("https://mysite.example.com/app", shoePageHTML)

	payload := &seo.PageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://mysite.example.com/app",
		ExtractionType: seo.ExtractionTypeFull,
	}
	require.NoError(t, e.pipeline.HandlePageExtraction(ctx, job("w1", seo.JobTypePageExtraction), payload))

	row, err := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, "Running Shoes Store", row.Title)
	require.Len(t, e.headless.calls, 1)
}

func TestHandlePageExtraction_HeadlessFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv().withDetector(alwaysRender{fire: true})
	e.seedWebsite("w1", "https://mysite.example.com")
	seedExtraction(t, e, "e1", "w1", "", "https://mysite.example.com/shoes")
	e.fetcher.serve("https://mysite.example.com/shoes", shoePageHTML)
	e.headless.errs["https://mysite.example.com/shoes"] = errors.New("browser crashed")

	payload := &seo.PageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://mysite.example.com/shoes",
		ExtractionType: seo.ExtractionTypeFull,
	}
	require.NoError(t, e.pipeline.HandlePageExtraction(ctx, job("w1", seo.JobTypePageExtraction), payload))

	row, err := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, seo.ExtractionStatusCompleted, row.Status)
}

func TestHandleCompetitorPageExtraction(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	e.seedCompetitor("c1", "w1", "https://runners.example.org")
	seedExtraction(t, e, "e1", "w1", "c1", "https://runners.example.org/gear")
	e.fetcher.serve("https://runners.example.org/gear", shoePageHTML)

	payload := &seo.CompetitorPageExtractionPayload{
		ExtractionID:   "e1",
		URL:            "https://runners.example.org/gear",
		ExtractionType: seo.ExtractionTypeQuick,
	}
	require.NoError(t, e.pipeline.HandleCompetitorPageExtraction(ctx, job("w1", seo.JobTypeCompetitorPageExtraction), payload))

	row, err := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, seo.ExtractionStatusCompleted, row.Status)
	require.Equal(t, "c1", row.CompetitorID)
}

func TestHandlePageScrape_CreatesAndResets(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.seedWebsite("w1", "https://mysite.example.com")
	e.seedCompetitor("c1", "w1", "https://runners.example.org")
	// One URL already has a completed row, it gets force-reset.
	now := e.clock.Now()
	require.NoError(t, e.store.CreateExtraction(ctx, seo.PageExtraction{
		ID:           "e1",
		WebsiteID:    "w1",
		CompetitorID: "c1",
		URL:          "https://runners.example.org/gear",
		Status:       seo.ExtractionStatusCompleted,
		Type:         seo.ExtractionTypeQuick,
		ExtractedAt:  &now,
	}))

	payload := &seo.PageScrapePayload{
		CompetitorID: "c1",
		URLs: []string{
			"https://runners.example.org/gear",
			"https://runners.example.org/sale",
			"https://runners.example.org/sale", // duplicate collapsed
		},
	}
	require.NoError(t, e.pipeline.HandlePageScrape(ctx, job("w1", seo.JobTypePageScrape), payload))

	claimed := e.claimAll()
	require.Len(t, claimed, 2)
	for _, j := range claimed {
		require.Equal(t, seo.JobTypeCompetitorPageExtraction, j.Type)
	}

	row, err := e.store.GetExtraction(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, seo.ExtractionStatusPending, row.Status)
}
