package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/rankscope/rankscope/internal/seo"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "website_id", "type", "status", "priority", "payload", "error_text", "created_at", "updated_at",
	})
}

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Unix(1700000000, 0).UTC()
	job := seo.Job{
		ID:        "j1",
		WebsiteID: "w1",
		Type:      seo.JobTypeSerpAnalysis,
		Status:    seo.JobStatusPending,
		Priority:  5,
		Payload:   []byte(`{"search_query_id":"q1","query":"shoes"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(job.ID, job.WebsiteID, job.Type, job.Status, job.Priority,
			job.Payload, job.ErrorText, job.CreatedAt, job.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM jobs WHERE id =").
		WithArgs("missing").
		WillReturnRows(jobRows())

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, seo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasOpenJob(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("w1", seo.JobTypeSerpAnalysis).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	open, err := store.HasOpenJob(context.Background(), "w1", seo.JobTypeSerpAnalysis)
	require.NoError(t, err)
	require.True(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingJobsSortsReturnedRows(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	older := time.Unix(1700000000, 0).UTC()
	newer := older.Add(time.Hour)
	// RETURNING rows arrive in arbitrary order; the store re-sorts them.
	mock.ExpectQuery("UPDATE jobs SET status = 'running'").
		WithArgs(10).
		WillReturnRows(jobRows().
			AddRow("j-low", "w1", seo.JobTypeAIReport, seo.JobStatusRunning, 1, []byte(`{}`), "", older, older).
			AddRow("j-new", "w2", seo.JobTypeSerpAnalysis, seo.JobStatusRunning, 5, []byte(`{}`), "", newer, newer).
			AddRow("j-old", "w3", seo.JobTypeSerpAnalysis, seo.JobStatusRunning, 5, []byte(`{}`), "", older, older))

	jobs, err := store.ClaimPendingJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.Equal(t, "j-old", jobs[0].ID)
	require.Equal(t, "j-new", jobs[1].ID)
	require.Equal(t, "j-low", jobs[2].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJobNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status =").
		WithArgs(seo.JobStatusFailed, "boom", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.FailJob(context.Background(), "missing", "boom")
	require.ErrorIs(t, err, seo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSerpResultRejectsAmbiguousScope(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	err := store.CreateSerpResult(context.Background(), seo.SerpResult{
		ID:            "r1",
		SearchQueryID: "q1",
		CompetitorID:  "c1",
		Query:         "shoes",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestQueryPositions(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	three := 3
	mock.ExpectQuery("SELECT DISTINCT ON").
		WithArgs("w1").
		WillReturnRows(pgxmock.NewRows([]string{"query", "position"}).
			AddRow("running shoes", &three).
			AddRow("trail shoes", (*int)(nil)))

	positions, err := store.LatestQueryPositions(context.Background(), "w1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, 3, *positions["running shoes"])
	require.Nil(t, positions["trail shoes"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSitemapSnapshotCommitsURLsInOneTx(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	now := time.Unix(1700000000, 0).UTC()
	snap := seo.SitemapSnapshot{
		ID:          "s1",
		WebsiteID:   "w1",
		SitemapURL:  "https://mysite.example.com/sitemap.xml",
		SitemapType: seo.SitemapTypeSingle,
		URLCount:    2,
		BlobURL:     "gs://bucket/sitemaps/w1/abc.json",
		FetchedAt:   now,
	}
	urls := []seo.SitemapURL{
		{Loc: "https://mysite.example.com/"},
		{Loc: "https://mysite.example.com/shoes", ChangeFreq: "weekly"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sitemap_snapshots").
		WithArgs(snap.ID, snap.WebsiteID, snap.CompetitorID, snap.SitemapURL,
			snap.SitemapType, snap.URLCount, snap.BlobURL, snap.FetchedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, u := range urls {
		mock.ExpectExec("INSERT INTO sitemap_urls").
			WithArgs(snap.ID, u.Loc, u.LastMod, u.ChangeFreq, u.Priority).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.CreateSitemapSnapshot(context.Background(), snap, urls))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExtractionsByURLKeyedByURL(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	extractionRows := pgxmock.NewRows([]string{
		"id", "website_id", "competitor_id", "url", "status", "type",
		"title", "meta_description", "h1", "headings", "keywords",
		"html_blob_url", "extracted_at", "error_text",
	}).AddRow(
		"e1", "w1", "", "https://mysite.example.com/shoes",
		seo.ExtractionStatusCompleted, seo.ExtractionTypeFull,
		"Shoes", "", "", []string(nil), []byte(`[{"keyword":"shoes","frequency":4,"density":10,"score":40}]`),
		"", (*time.Time)(nil), "",
	)
	mock.ExpectQuery("SELECT .* FROM page_extractions").
		WithArgs("w1", "", []string{"https://mysite.example.com/shoes", "https://mysite.example.com/about"}).
		WillReturnRows(extractionRows)

	found, err := store.FindExtractionsByURL(context.Background(),
		seo.ExtractionScope{WebsiteID: "w1"},
		[]string{"https://mysite.example.com/shoes", "https://mysite.example.com/about"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	row := found["https://mysite.example.com/shoes"]
	require.Equal(t, "e1", row.ID)
	require.Len(t, row.Keywords, 1)
	require.Equal(t, "shoes", row.Keywords[0].Keyword)
	require.NoError(t, mock.ExpectationsWereMet())
}
