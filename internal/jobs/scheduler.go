// Package jobs implements the analysis job queue: periodic scheduling and
// batch processing over the relational store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/seo"
)

// Default priorities per recurring job family. Higher runs sooner.
const (
	PriorityInitialAnalysis = 10
	PrioritySitemapFetch    = 6
	PrioritySerpAnalysis    = 5
	PriorityCompetitorSerp  = 4
	PriorityPageExtraction  = 3
	PriorityReport          = 1
)

// SchedulerConfig sets the cadence for each recurring job family.
type SchedulerConfig struct {
	SerpRecheckEvery       time.Duration
	CompetitorRecheckEvery time.Duration
	ReportEvery            time.Duration
}

// Scheduler periodically generates jobs per website cadence. It is driven by
// an external trigger (HTTP endpoint or cron) and holds no background state.
type Scheduler struct {
	store  seo.Store
	clock  seo.Clock
	idGen  seo.IDGenerator
	cfg    SchedulerConfig
	logger *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(store seo.Store, clock seo.Clock, idGen seo.IDGenerator, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:  store,
		clock:  clock,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
	}
}

// SchedulePeriodicJobs scans all active websites and creates due jobs for
// each recurring family. A job is created only when no pending or running
// job of the same (website, type) pair exists and the cadence has elapsed,
// so frequent invocation never duplicates work. Scheduling errors for one
// website are isolated and do not abort the others.
func (s *Scheduler) SchedulePeriodicJobs(ctx context.Context) (int, error) {
	websites, err := s.store.ListActiveWebsites(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active websites: %w", err)
	}

	created := 0
	for _, site := range websites {
		n, err := s.scheduleWebsite(ctx, site)
		if err != nil {
			s.logger.Error("schedule website failed",
				zap.String("website_id", site.ID),
				zap.Error(err),
			)
			continue
		}
		created += n
	}
	s.logger.Info("periodic scheduling pass finished",
		zap.Int("websites", len(websites)),
		zap.Int("jobs_created", created),
	)
	return created, nil
}

func (s *Scheduler) scheduleWebsite(ctx context.Context, site seo.Website) (int, error) {
	created := 0

	n, err := s.scheduleSerpRecheck(ctx, site)
	if err != nil {
		return created, err
	}
	created += n

	n, err = s.scheduleCompetitorRecheck(ctx, site)
	if err != nil {
		return created, err
	}
	created += n

	n, err = s.scheduleReport(ctx, site)
	if err != nil {
		return created, err
	}
	return created + n, nil
}

func (s *Scheduler) scheduleSerpRecheck(ctx context.Context, site seo.Website) (int, error) {
	due, err := s.familyDue(ctx, site.ID, seo.JobTypeSerpAnalysis, s.cfg.SerpRecheckEvery)
	if err != nil || !due {
		return 0, err
	}
	queries, err := s.store.ListActiveQueries(ctx, site.ID)
	if err != nil {
		return 0, fmt.Errorf("list active queries: %w", err)
	}
	created := 0
	for _, q := range queries {
		payload, err := seo.EncodePayload(&seo.SerpAnalysisPayload{
			SearchQueryID: q.ID,
			Query:         q.Query,
		})
		if err != nil {
			return created, err
		}
		if err := s.createJob(ctx, site.ID, seo.JobTypeSerpAnalysis, PrioritySerpAnalysis, payload); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Scheduler) scheduleCompetitorRecheck(ctx context.Context, site seo.Website) (int, error) {
	due, err := s.familyDue(ctx, site.ID, seo.JobTypeCompetitorSerpAnalysis, s.cfg.CompetitorRecheckEvery)
	if err != nil || !due {
		return 0, err
	}
	competitors, err := s.store.ListCompetitors(ctx, site.ID)
	if err != nil {
		return 0, fmt.Errorf("list competitors: %w", err)
	}
	created := 0
	for _, c := range competitors {
		if !c.IsActive {
			continue
		}
		payload, err := seo.EncodePayload(&seo.CompetitorSerpAnalysisPayload{CompetitorID: c.ID})
		if err != nil {
			return created, err
		}
		if err := s.createJob(ctx, site.ID, seo.JobTypeCompetitorSerpAnalysis, PriorityCompetitorSerp, payload); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Scheduler) scheduleReport(ctx context.Context, site seo.Website) (int, error) {
	due, err := s.familyDue(ctx, site.ID, seo.JobTypeAIReport, s.cfg.ReportEvery)
	if err != nil || !due {
		return 0, err
	}
	payload, err := seo.EncodePayload(&seo.AIReportPayload{})
	if err != nil {
		return 0, err
	}
	if err := s.createJob(ctx, site.ID, seo.JobTypeAIReport, PriorityReport, payload); err != nil {
		return 0, err
	}
	return 1, nil
}

// familyDue applies the idempotency guard and the cadence check for one
// (website, type) family.
func (s *Scheduler) familyDue(ctx context.Context, websiteID string, t seo.JobType, every time.Duration) (bool, error) {
	if every <= 0 {
		return false, nil
	}
	open, err := s.store.HasOpenJob(ctx, websiteID, t)
	if err != nil {
		return false, fmt.Errorf("check open %s job: %w", t, err)
	}
	if open {
		return false, nil
	}
	last, err := s.store.LatestJob(ctx, websiteID, t)
	if err != nil {
		if err == seo.ErrNotFound {
			return true, nil
		}
		return false, fmt.Errorf("latest %s job: %w", t, err)
	}
	return s.clock.Now().Sub(last.CreatedAt) >= every, nil
}

// ErrJobOpen is returned by ad hoc scheduling when a pending or running job
// of the same family already exists and force was not requested.
var ErrJobOpen = errors.New("a job of this type is already open for the website")

// ScheduleInitialAnalysis enqueues a full analysis for a website. With force
// set, a new job is created even when one is already open; the old job is
// left to complete or fail on its own and consumers must tolerate duplicate
// completions.
func (s *Scheduler) ScheduleInitialAnalysis(ctx context.Context, websiteID string, force bool) (string, error) {
	if _, err := s.store.GetWebsite(ctx, websiteID); err != nil {
		return "", fmt.Errorf("get website: %w", err)
	}
	if !force {
		open, err := s.store.HasOpenJob(ctx, websiteID, seo.JobTypeInitialAnalysis)
		if err != nil {
			return "", fmt.Errorf("check open initial_analysis job: %w", err)
		}
		if open {
			return "", ErrJobOpen
		}
	}
	payload, err := seo.EncodePayload(&seo.InitialAnalysisPayload{})
	if err != nil {
		return "", err
	}
	return s.createJobID(ctx, websiteID, seo.JobTypeInitialAnalysis, PriorityInitialAnalysis, payload)
}

// ScheduleSerpCheck enqueues a SERP fetch for one tracked query.
func (s *Scheduler) ScheduleSerpCheck(ctx context.Context, websiteID, queryID string) (string, error) {
	q, err := s.store.GetSearchQuery(ctx, queryID)
	if err != nil {
		return "", fmt.Errorf("get search query: %w", err)
	}
	if q.WebsiteID != websiteID {
		return "", fmt.Errorf("query %s does not belong to website %s: %w", queryID, websiteID, seo.ErrNotFound)
	}
	payload, err := seo.EncodePayload(&seo.SerpAnalysisPayload{
		SearchQueryID: q.ID,
		Query:         q.Query,
	})
	if err != nil {
		return "", err
	}
	return s.createJobID(ctx, q.WebsiteID, seo.JobTypeSerpAnalysis, PrioritySerpAnalysis, payload)
}

// SchedulePageScrape enqueues an ad hoc competitor page scrape.
func (s *Scheduler) SchedulePageScrape(ctx context.Context, competitorID string, urls []string) (string, error) {
	c, err := s.store.GetCompetitor(ctx, competitorID)
	if err != nil {
		return "", fmt.Errorf("get competitor: %w", err)
	}
	payload, err := seo.EncodePayload(&seo.PageScrapePayload{
		CompetitorID: c.ID,
		URLs:         urls,
	})
	if err != nil {
		return "", err
	}
	return s.createJobID(ctx, c.WebsiteID, seo.JobTypePageScrape, PriorityPageExtraction, payload)
}

func (s *Scheduler) createJob(ctx context.Context, websiteID string, t seo.JobType, priority int, payload []byte) error {
	_, err := s.createJobID(ctx, websiteID, t, priority, payload)
	return err
}

func (s *Scheduler) createJobID(ctx context.Context, websiteID string, t seo.JobType, priority int, payload []byte) (string, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := seo.Job{
		ID:        id,
		WebsiteID: websiteID,
		Type:      t,
		Status:    seo.JobStatusPending,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create %s job: %w", t, err)
	}
	return id, nil
}
