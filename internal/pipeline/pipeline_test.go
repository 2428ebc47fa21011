package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqID struct {
	mu sync.Mutex
	n  int
}

func (g *seqID) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n), nil
}

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// fakePageFetcher serves canned pages by URL.
type fakePageFetcher struct {
	mu    sync.Mutex
	pages map[string]seo.Page
	errs  map[string]error
	calls []string
}

func newFakePageFetcher() *fakePageFetcher {
	return &fakePageFetcher{
		pages: make(map[string]seo.Page),
		errs:  make(map[string]error),
	}
}

func (f *fakePageFetcher) serve(url, body string) {
	f.pages[url] = seo.Page{URL: url, StatusCode: 200, Body: []byte(body)}
}

func (f *fakePageFetcher) Fetch(_ context.Context, url string) (seo.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return seo.Page{}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return seo.Page{}, errors.New("no such page")
	}
	return page, nil
}

// fakeSearchClient serves canned result sets by query.
type fakeSearchClient struct {
	results map[string][]seo.SearchResult
	errs    map[string]error
}

func newFakeSearchClient() *fakeSearchClient {
	return &fakeSearchClient{
		results: make(map[string][]seo.SearchResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeSearchClient) Search(_ context.Context, query string) ([]seo.SearchResult, error) {
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

type fakeReasoner struct {
	suggestions []seo.QuerySuggestion
	suggestErr  error
	report      seo.Report
	reportErr   error
	lastInput   seo.ReportInput
}

func (f *fakeReasoner) SuggestQueries(_ context.Context, _ seo.PageSignals) ([]seo.QuerySuggestion, error) {
	return f.suggestions, f.suggestErr
}

func (f *fakeReasoner) GenerateReport(_ context.Context, input seo.ReportInput) (seo.Report, error) {
	f.lastInput = input
	return f.report, f.reportErr
}

type alwaysRender struct{ fire bool }

func (d alwaysRender) ShouldRender(seo.Page) bool { return d.fire }

type env struct {
	pipeline *Pipeline
	store    *memory.Store
	blobs    *memory.BlobStore
	fetcher  *fakePageFetcher
	headless *fakePageFetcher
	search   *fakeSearchClient
	reasoner *fakeReasoner
	clock    *fakeClock
}

func newEnv() *env {
	e := &env{
		store:    memory.NewStore(),
		blobs:    memory.NewBlobStore(),
		fetcher:  newFakePageFetcher(),
		headless: newFakePageFetcher(),
		search:   newFakeSearchClient(),
		reasoner: &fakeReasoner{},
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	e.pipeline = New(Deps{
		Store:    e.store,
		Blobs:    e.blobs,
		Fetcher:  e.fetcher,
		Headless: e.headless,
		Detector: alwaysRender{fire: false},
		Search:   e.search,
		Reasoner: e.reasoner,
		Hasher:   sha256Hasher{},
		Clock:    e.clock,
		IDGen:    &seqID{},
		Logger:   zap.NewNop(),
	})
	return e
}

func (e *env) withDetector(d seo.RenderDetector) *env {
	e.pipeline.detector = d
	return e
}

func (e *env) seedWebsite(id, url string) seo.Website {
	site := seo.Website{
		ID:     id,
		URL:    url,
		Name:   id,
		Status: seo.WebsiteStatusActive,
	}
	if err := e.store.CreateWebsite(context.Background(), site); err != nil {
		panic(err)
	}
	return site
}

func (e *env) seedCompetitor(id, websiteID, url string) seo.Competitor {
	c := seo.Competitor{
		ID:        id,
		WebsiteID: websiteID,
		URL:       url,
		Name:      id,
		IsActive:  true,
	}
	if err := e.store.CreateCompetitor(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

// claimAll drains the pending queue for inspection.
func (e *env) claimAll() []seo.Job {
	jobs, err := e.store.ClaimPendingJobs(context.Background(), 1000)
	if err != nil {
		panic(err)
	}
	return jobs
}

func job(websiteID string, t seo.JobType) seo.Job {
	return seo.Job{
		ID:        "job-" + string(t),
		WebsiteID: websiteID,
		Type:      t,
		Status:    seo.JobStatusRunning,
		Priority:  5,
	}
}
