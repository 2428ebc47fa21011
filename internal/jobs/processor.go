package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankscope/rankscope/internal/seo"
)

// Handler executes a single job of one type. A returned error marks the job
// failed; there is no automatic retry.
type Handler interface {
	Handle(ctx context.Context, job seo.Job, payload seo.Payload) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job seo.Job, payload seo.Payload) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job seo.Job, payload seo.Payload) error {
	return f(ctx, job, payload)
}

// JobObserver receives per-job outcome callbacks for metrics.
type JobObserver interface {
	ObserveJob(jobType string, status string, duration time.Duration)
}

// ProcessorConfig tunes one processing pass.
type ProcessorConfig struct {
	BatchSize      int
	Workers        int
	HandlerTimeout time.Duration
	EventTopic     string
}

// Processor claims pending jobs from the queue and dispatches them to the
// handler registered for each type. Jobs for different websites run
// concurrently; jobs for the same website run in claim order, one at a
// time, so a site's pipeline stages never race each other.
type Processor struct {
	store     seo.JobStore
	handlers  map[seo.JobType]Handler
	publisher seo.Publisher
	observer  JobObserver
	cfg       ProcessorConfig
	logger    *zap.Logger
}

// NewProcessor constructs a Processor. publisher and observer may be nil.
func NewProcessor(store seo.JobStore, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:    store,
		handlers: make(map[seo.JobType]Handler),
		cfg:      cfg,
		logger:   logger,
	}
}

// Register installs the handler for a job type, replacing any previous one.
func (p *Processor) Register(t seo.JobType, h Handler) {
	p.handlers[t] = h
}

// SetPublisher installs an optional completion-event publisher.
func (p *Processor) SetPublisher(pub seo.Publisher) {
	p.publisher = pub
}

// SetObserver installs an optional metrics observer.
func (p *Processor) SetObserver(obs JobObserver) {
	p.observer = obs
}

// ProcessJobQueue claims up to BatchSize pending jobs, highest priority
// first and oldest first within a priority, and runs each to a terminal
// completed or failed status. It returns counts for the batch; handler
// failures are recorded on the job, not returned.
func (p *Processor) ProcessJobQueue(ctx context.Context) (seo.BatchResult, error) {
	jobs, err := p.store.ClaimPendingJobs(ctx, p.cfg.BatchSize)
	if err != nil {
		return seo.BatchResult{}, fmt.Errorf("claim pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return seo.BatchResult{}, nil
	}

	// Preserve claim order within each website's lane.
	lanes := make(map[string][]seo.Job)
	order := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := lanes[job.WebsiteID]; !ok {
			order = append(order, job.WebsiteID)
		}
		lanes[job.WebsiteID] = append(lanes[job.WebsiteID], job)
	}

	var (
		mu     sync.Mutex
		result = seo.BatchResult{Total: len(jobs)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, websiteID := range order {
		lane := lanes[websiteID]
		g.Go(func() error {
			for _, job := range lane {
				ok := p.runJob(gctx, job)
				mu.Lock()
				if ok {
					result.Completed++
				} else {
					result.Failed++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	p.logger.Info("processed job batch",
		zap.Int("total", result.Total),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// runJob drives one claimed job to a terminal status. It never panics the
// batch: decode errors, missing handlers, and handler errors all fail the
// job in place.
func (p *Processor) runJob(ctx context.Context, job seo.Job) bool {
	start := time.Now()

	payload, err := seo.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return p.fail(ctx, job, start, fmt.Errorf("decode payload: %w", err))
	}
	handler, ok := p.handlers[job.Type]
	if !ok {
		return p.fail(ctx, job, start, fmt.Errorf("no handler registered for type %s", job.Type))
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	err = p.invoke(hctx, handler, job, payload)
	cancel()
	if err != nil {
		return p.fail(ctx, job, start, err)
	}

	if err := p.store.CompleteJob(ctx, job.ID); err != nil {
		p.logger.Error("mark job completed failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return false
	}
	p.observe(job, string(seo.JobStatusCompleted), start)
	p.publishEvent(ctx, job, seo.JobStatusCompleted, "")
	return true
}

// invoke runs the handler and converts a panic into a returned error so one
// misbehaving handler fails its job instead of killing the whole pass.
func (p *Processor) invoke(ctx context.Context, h Handler, job seo.Job, payload seo.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, job, payload)
}

func (p *Processor) fail(ctx context.Context, job seo.Job, start time.Time, cause error) bool {
	p.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("website_id", job.WebsiteID),
		zap.String("type", string(job.Type)),
		zap.Error(cause),
	)
	if err := p.store.FailJob(ctx, job.ID, cause.Error()); err != nil {
		p.logger.Error("mark job failed failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
	p.observe(job, string(seo.JobStatusFailed), start)
	p.publishEvent(ctx, job, seo.JobStatusFailed, cause.Error())
	return false
}

func (p *Processor) observe(job seo.Job, status string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveJob(string(job.Type), status, time.Since(start))
	}
}

// publishEvent emits a job outcome event. Delivery is best effort and never
// affects the job's terminal status.
func (p *Processor) publishEvent(ctx context.Context, job seo.Job, status seo.JobStatus, errText string) {
	if p.publisher == nil {
		return
	}
	event := map[string]any{
		"job_id":     job.ID,
		"website_id": job.WebsiteID,
		"type":       string(job.Type),
		"status":     string(status),
	}
	if errText != "" {
		event["error"] = errText
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.EventTopic, event); err != nil {
		p.logger.Warn("publish job event failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}
