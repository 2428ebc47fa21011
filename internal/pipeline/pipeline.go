// Package pipeline implements the per-type analysis job handlers: initial
// website analysis, SERP tracking, sitemap-driven page extraction and
// report generation.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/jobs"
	"github.com/rankscope/rankscope/internal/seo"
)

// Deps are the collaborators a Pipeline needs. Headless and Detector are
// optional as a pair; when either is nil fetched pages are never re-rendered.
type Deps struct {
	Store    seo.Store
	Blobs    seo.BlobStore
	Fetcher  seo.PageFetcher
	Headless seo.PageFetcher
	Detector seo.RenderDetector
	Search   seo.SearchClient
	Reasoner seo.Reasoner
	Hasher   seo.Hasher
	Clock    seo.Clock
	IDGen    seo.IDGenerator
	Logger   *zap.Logger
}

// Pipeline hosts all job handlers over one shared dependency set.
type Pipeline struct {
	store    seo.Store
	blobs    seo.BlobStore
	fetcher  seo.PageFetcher
	headless seo.PageFetcher
	detector seo.RenderDetector
	search   seo.SearchClient
	reasoner seo.Reasoner
	hasher   seo.Hasher
	clock    seo.Clock
	idGen    seo.IDGenerator
	logger   *zap.Logger
}

// New constructs a Pipeline from its dependencies.
func New(d Deps) *Pipeline {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    d.Store,
		blobs:    d.Blobs,
		fetcher:  d.Fetcher,
		headless: d.Headless,
		detector: d.Detector,
		search:   d.Search,
		reasoner: d.Reasoner,
		hasher:   d.Hasher,
		clock:    d.Clock,
		idGen:    d.IDGen,
		logger:   logger,
	}
}

// RegisterAll installs every handler on the processor.
func (p *Pipeline) RegisterAll(proc *jobs.Processor) {
	proc.Register(seo.JobTypeInitialAnalysis, jobs.HandlerFunc(p.HandleInitialAnalysis))
	proc.Register(seo.JobTypeSerpAnalysis, jobs.HandlerFunc(p.HandleSerpAnalysis))
	proc.Register(seo.JobTypeCompetitorSerpAnalysis, jobs.HandlerFunc(p.HandleCompetitorSerpAnalysis))
	proc.Register(seo.JobTypeSitemapFetch, jobs.HandlerFunc(p.HandleSitemapFetch))
	proc.Register(seo.JobTypeCompetitorSitemapFetch, jobs.HandlerFunc(p.HandleCompetitorSitemapFetch))
	proc.Register(seo.JobTypePageExtraction, jobs.HandlerFunc(p.HandlePageExtraction))
	proc.Register(seo.JobTypeCompetitorPageExtraction, jobs.HandlerFunc(p.HandleCompetitorPageExtraction))
	proc.Register(seo.JobTypePageScrape, jobs.HandlerFunc(p.HandlePageScrape))
	proc.Register(seo.JobTypeAIReport, jobs.HandlerFunc(p.HandleAIReport))
}

// fetchPage fetches a URL and, when the render detector flags the response as
// script-shell markup, promotes it to a headless re-fetch. A failed headless
// pass falls back to the plain page.
func (p *Pipeline) fetchPage(ctx context.Context, url string) (seo.Page, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return seo.Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if p.headless == nil || p.detector == nil || !p.detector.ShouldRender(page) {
		return page, nil
	}
	rendered, err := p.headless.Fetch(ctx, url)
	if err != nil {
		p.logger.Warn("headless fetch failed, using plain page",
			zap.String("url", url),
			zap.Error(err),
		)
		return page, nil
	}
	return rendered, nil
}

// putJSON marshals v and writes it under a content-addressed path.
func (p *Pipeline) putJSON(ctx context.Context, prefix string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal blob: %w", err)
	}
	return p.putBlob(ctx, prefix, "application/json", ".json", data)
}

func (p *Pipeline) putBlob(ctx context.Context, prefix, contentType, ext string, data []byte) (string, error) {
	digest, err := p.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash blob: %w", err)
	}
	path := strings.TrimSuffix(prefix, "/") + "/" + digest + ext
	uri, err := p.blobs.PutObject(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("store blob %s: %w", path, err)
	}
	return uri, nil
}

func (p *Pipeline) newID() (string, error) {
	id, err := p.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

// enqueue creates a pending job row.
func (p *Pipeline) enqueue(ctx context.Context, websiteID string, t seo.JobType, priority int, payload seo.Payload) error {
	raw, err := seo.EncodePayload(payload)
	if err != nil {
		return err
	}
	id, err := p.newID()
	if err != nil {
		return err
	}
	now := p.clock.Now()
	job := seo.Job{
		ID:        id,
		WebsiteID: websiteID,
		Type:      t,
		Status:    seo.JobStatusPending,
		Priority:  priority,
		Payload:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s job: %w", t, err)
	}
	return nil
}
