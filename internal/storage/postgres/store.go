// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankscope/rankscope/internal/seo"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// db is the subset of pgxpool.Pool the store uses, so tests can substitute
// a mock connection.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements seo.Store on Postgres.
type Store struct {
	pool db
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool db) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping reports whether the database is reachable. Pools without a ping
// capability (mocks) are treated as healthy.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.pool.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

const jobColumns = `id, website_id, type, status, priority, payload, error_text, created_at, updated_at`

// CreateJob inserts a pending job row.
func (s *Store) CreateJob(ctx context.Context, job seo.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := s.pool.Exec(ctx, query,
		job.ID,
		job.WebsiteID,
		job.Type,
		job.Status,
		job.Priority,
		payload,
		job.ErrorText,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a single job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (seo.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.Job{}, seo.ErrNotFound
		}
		return seo.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// HasOpenJob reports whether a pending or running (website, type) job exists.
func (s *Store) HasOpenJob(ctx context.Context, websiteID string, t seo.JobType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE website_id = $1 AND type = $2 AND status IN ('pending', 'running')
		);
	`
	var open bool
	if err := s.pool.QueryRow(ctx, query, websiteID, t).Scan(&open); err != nil {
		return false, fmt.Errorf("check open job: %w", err)
	}
	return open, nil
}

// LatestJob returns the most recently created job of the pair, any status.
func (s *Store) LatestJob(ctx context.Context, websiteID string, t seo.JobType) (seo.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE website_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1;
	`
	job, err := scanJob(s.pool.QueryRow(ctx, query, websiteID, t))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.Job{}, seo.ErrNotFound
		}
		return seo.Job{}, fmt.Errorf("get latest job: %w", err)
	}
	return job, nil
}

// ClaimPendingJobs atomically transitions up to limit pending jobs to
// running. SKIP LOCKED keeps concurrent processor passes from claiming the
// same rows.
func (s *Store) ClaimPendingJobs(ctx context.Context, limit int) ([]seo.Job, error) {
	query := `
		UPDATE jobs SET status = 'running', updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns + `;
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []seo.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	// RETURNING does not guarantee row order.
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// CompleteJob marks a running job completed.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	return s.finishJob(ctx, jobID, seo.JobStatusCompleted, "")
}

// FailJob marks a running job failed with its error text.
func (s *Store) FailJob(ctx context.Context, jobID string, errText string) error {
	return s.finishJob(ctx, jobID, seo.JobStatusFailed, errText)
}

func (s *Store) finishJob(ctx context.Context, jobID string, status seo.JobStatus, errText string) error {
	query := `
		UPDATE jobs SET status = $1, error_text = $2, updated_at = now()
		WHERE id = $3;
	`
	tag, err := s.pool.Exec(ctx, query, status, errText, jobID)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (seo.Job, error) {
	var job seo.Job
	err := row.Scan(
		&job.ID,
		&job.WebsiteID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&job.Payload,
		&job.ErrorText,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}

const websiteColumns = `id, organization_id, url, name, status, sitemap_url, last_sitemap_fetch, created_at`

// GetWebsite retrieves a website by ID.
func (s *Store) GetWebsite(ctx context.Context, websiteID string) (seo.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1;`
	w, err := scanWebsite(s.pool.QueryRow(ctx, query, websiteID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.Website{}, seo.ErrNotFound
		}
		return seo.Website{}, fmt.Errorf("get website: %w", err)
	}
	return w, nil
}

// ListActiveWebsites lists every website eligible for periodic scheduling.
func (s *Store) ListActiveWebsites(ctx context.Context) ([]seo.Website, error) {
	query := `
		SELECT ` + websiteColumns + ` FROM websites
		WHERE status = 'active'
		ORDER BY created_at ASC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active websites: %w", err)
	}
	defer rows.Close()

	var sites []seo.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website row: %w", err)
		}
		sites = append(sites, w)
	}
	return sites, rows.Err()
}

// UpdateWebsiteStatus moves a website through its lifecycle.
func (s *Store) UpdateWebsiteStatus(ctx context.Context, websiteID string, status seo.WebsiteStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE websites SET status = $1 WHERE id = $2;`, status, websiteID)
	if err != nil {
		return fmt.Errorf("update website status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// SetSitemapFetched records the sitemap URL and fetch time on the website.
func (s *Store) SetSitemapFetched(ctx context.Context, websiteID string, sitemapURL string, at time.Time) error {
	query := `UPDATE websites SET sitemap_url = $1, last_sitemap_fetch = $2 WHERE id = $3;`
	tag, err := s.pool.Exec(ctx, query, sitemapURL, at, websiteID)
	if err != nil {
		return fmt.Errorf("set sitemap fetched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

func scanWebsite(row rowScanner) (seo.Website, error) {
	var w seo.Website
	err := row.Scan(
		&w.ID,
		&w.OrganizationID,
		&w.URL,
		&w.Name,
		&w.Status,
		&w.SitemapURL,
		&w.LastSitemapFetch,
		&w.CreatedAt,
	)
	return w, err
}

const queryColumns = `id, website_id, query, tags, competition_level, confidence, is_active, created_at`

// CreateSearchQuery inserts a tracked query row.
func (s *Store) CreateSearchQuery(ctx context.Context, q seo.SearchQuery) error {
	query := `
		INSERT INTO search_queries (` + queryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, query,
		q.ID,
		q.WebsiteID,
		q.Query,
		q.Tags,
		q.CompetitionLevel,
		q.Confidence,
		q.IsActive,
		q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search query: %w", err)
	}
	return nil
}

// GetSearchQuery retrieves a tracked query by ID.
func (s *Store) GetSearchQuery(ctx context.Context, queryID string) (seo.SearchQuery, error) {
	query := `SELECT ` + queryColumns + ` FROM search_queries WHERE id = $1;`
	q, err := scanSearchQuery(s.pool.QueryRow(ctx, query, queryID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.SearchQuery{}, seo.ErrNotFound
		}
		return seo.SearchQuery{}, fmt.Errorf("get search query: %w", err)
	}
	return q, nil
}

// ListActiveQueries lists a website's active queries.
func (s *Store) ListActiveQueries(ctx context.Context, websiteID string) ([]seo.SearchQuery, error) {
	query := `
		SELECT ` + queryColumns + ` FROM search_queries
		WHERE website_id = $1 AND is_active
		ORDER BY created_at ASC;
	`
	rows, err := s.pool.Query(ctx, query, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list active queries: %w", err)
	}
	defer rows.Close()

	var queries []seo.SearchQuery
	for rows.Next() {
		q, err := scanSearchQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search query row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

func scanSearchQuery(row rowScanner) (seo.SearchQuery, error) {
	var q seo.SearchQuery
	err := row.Scan(
		&q.ID,
		&q.WebsiteID,
		&q.Query,
		&q.Tags,
		&q.CompetitionLevel,
		&q.Confidence,
		&q.IsActive,
		&q.CreatedAt,
	)
	return q, err
}

const serpColumns = `id, search_query_id, competitor_id, query, position, url, title, snippet, raw_blob_url, created_at`

// CreateSerpResult inserts a SERP snapshot row. The row must be scoped to
// exactly one of search query or competitor.
func (s *Store) CreateSerpResult(ctx context.Context, r seo.SerpResult) error {
	if (r.SearchQueryID == "") == (r.CompetitorID == "") {
		return fmt.Errorf("serp result must be scoped to exactly one of search query or competitor")
	}
	query := `
		INSERT INTO serp_results (` + serpColumns + `)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.SearchQueryID,
		r.CompetitorID,
		r.Query,
		r.Position,
		r.URL,
		r.Title,
		r.Snippet,
		r.RawBlobURL,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert serp result: %w", err)
	}
	return nil
}

// GetSerpResult retrieves a SERP snapshot by ID.
func (s *Store) GetSerpResult(ctx context.Context, resultID string) (seo.SerpResult, error) {
	query := `
		SELECT id, COALESCE(search_query_id, ''), COALESCE(competitor_id, ''),
		       query, position, url, title, snippet, raw_blob_url, created_at
		FROM serp_results WHERE id = $1;
	`
	var r seo.SerpResult
	err := s.pool.QueryRow(ctx, query, resultID).Scan(
		&r.ID,
		&r.SearchQueryID,
		&r.CompetitorID,
		&r.Query,
		&r.Position,
		&r.URL,
		&r.Title,
		&r.Snippet,
		&r.RawBlobURL,
		&r.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.SerpResult{}, seo.ErrNotFound
		}
		return seo.SerpResult{}, fmt.Errorf("get serp result: %w", err)
	}
	return r, nil
}

// CorrectSerpResult rewrites position and url after a blob reanalysis.
func (s *Store) CorrectSerpResult(ctx context.Context, resultID string, position *int, url string) error {
	query := `UPDATE serp_results SET position = $1, url = $2 WHERE id = $3;`
	tag, err := s.pool.Exec(ctx, query, position, url, resultID)
	if err != nil {
		return fmt.Errorf("correct serp result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// LatestQueryPositions maps lower-cased query strings to the most recent
// query-scoped position for the website.
func (s *Store) LatestQueryPositions(ctx context.Context, websiteID string) (map[string]*int, error) {
	query := `
		SELECT DISTINCT ON (lower(q.query)) lower(q.query), r.position
		FROM serp_results r
		JOIN search_queries q ON q.id = r.search_query_id
		WHERE q.website_id = $1
		ORDER BY lower(q.query), r.created_at DESC;
	`
	return s.positionMap(ctx, query, websiteID)
}

// LatestCompetitorPositions is the competitor-scoped counterpart.
func (s *Store) LatestCompetitorPositions(ctx context.Context, competitorID string) (map[string]*int, error) {
	query := `
		SELECT DISTINCT ON (lower(query)) lower(query), position
		FROM serp_results
		WHERE competitor_id = $1
		ORDER BY lower(query), created_at DESC;
	`
	return s.positionMap(ctx, query, competitorID)
}

func (s *Store) positionMap(ctx context.Context, query string, arg any) (map[string]*int, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query latest positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]*int)
	for rows.Next() {
		var (
			q   string
			pos *int
		)
		if err := rows.Scan(&q, &pos); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions[q] = pos
	}
	return positions, rows.Err()
}

const competitorColumns = `id, website_id, url, name, description, is_active, auto_discovered, created_at`

// CreateCompetitor inserts a competitor row. The unique (website_id, url)
// index makes concurrent discovery of the same domain fail here, which
// callers treat as already known.
func (s *Store) CreateCompetitor(ctx context.Context, c seo.Competitor) error {
	query := `
		INSERT INTO competitors (` + competitorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, query,
		c.ID,
		c.WebsiteID,
		c.URL,
		c.Name,
		c.Description,
		c.IsActive,
		c.AutoDiscovered,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

// GetCompetitor retrieves a competitor by ID.
func (s *Store) GetCompetitor(ctx context.Context, competitorID string) (seo.Competitor, error) {
	query := `SELECT ` + competitorColumns + ` FROM competitors WHERE id = $1;`
	c, err := scanCompetitor(s.pool.QueryRow(ctx, query, competitorID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.Competitor{}, seo.ErrNotFound
		}
		return seo.Competitor{}, fmt.Errorf("get competitor: %w", err)
	}
	return c, nil
}

// ListCompetitors lists a website's competitors, oldest first.
func (s *Store) ListCompetitors(ctx context.Context, websiteID string) ([]seo.Competitor, error) {
	query := `
		SELECT ` + competitorColumns + ` FROM competitors
		WHERE website_id = $1
		ORDER BY created_at ASC;
	`
	rows, err := s.pool.Query(ctx, query, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var competitors []seo.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competitor row: %w", err)
		}
		competitors = append(competitors, c)
	}
	return competitors, rows.Err()
}

func scanCompetitor(row rowScanner) (seo.Competitor, error) {
	var c seo.Competitor
	err := row.Scan(
		&c.ID,
		&c.WebsiteID,
		&c.URL,
		&c.Name,
		&c.Description,
		&c.IsActive,
		&c.AutoDiscovered,
		&c.CreatedAt,
	)
	return c, err
}

const extractionColumns = `id, website_id, competitor_id, url, status, type, title, meta_description, h1, headings, keywords, html_blob_url, extracted_at, error_text`

// CreateExtraction inserts a page extraction row.
func (s *Store) CreateExtraction(ctx context.Context, e seo.PageExtraction) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	query := `
		INSERT INTO page_extractions (` + extractionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	_, err = s.pool.Exec(ctx, query,
		e.ID,
		e.WebsiteID,
		e.CompetitorID,
		e.URL,
		e.Status,
		e.Type,
		e.Title,
		e.MetaDescription,
		e.H1,
		e.Headings,
		keywords,
		e.HTMLBlobURL,
		e.ExtractedAt,
		e.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

// GetExtraction retrieves an extraction row by ID.
func (s *Store) GetExtraction(ctx context.Context, extractionID string) (seo.PageExtraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM page_extractions WHERE id = $1;`
	e, err := scanExtraction(s.pool.QueryRow(ctx, query, extractionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.PageExtraction{}, seo.ErrNotFound
		}
		return seo.PageExtraction{}, fmt.Errorf("get extraction: %w", err)
	}
	return e, nil
}

// FindExtractionsByURL returns existing rows for the given URLs, keyed by URL.
func (s *Store) FindExtractionsByURL(ctx context.Context, scope seo.ExtractionScope, urls []string) (map[string]seo.PageExtraction, error) {
	query := `
		SELECT ` + extractionColumns + ` FROM page_extractions
		WHERE website_id = $1 AND competitor_id = $2 AND url = ANY($3);
	`
	rows, err := s.pool.Query(ctx, query, scope.WebsiteID, scope.CompetitorID, urls)
	if err != nil {
		return nil, fmt.Errorf("find extractions: %w", err)
	}
	defer rows.Close()

	found := make(map[string]seo.PageExtraction)
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extraction row: %w", err)
		}
		found[e.URL] = e
	}
	return found, rows.Err()
}

// ResetExtraction returns a stale or failed row to pending for the requested type.
func (s *Store) ResetExtraction(ctx context.Context, extractionID string, t seo.ExtractionType) error {
	query := `
		UPDATE page_extractions
		SET status = 'pending', type = $1, error_text = ''
		WHERE id = $2;
	`
	tag, err := s.pool.Exec(ctx, query, t, extractionID)
	if err != nil {
		return fmt.Errorf("reset extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// StartExtraction marks a row extracting.
func (s *Store) StartExtraction(ctx context.Context, extractionID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE page_extractions SET status = 'extracting' WHERE id = $1;`, extractionID)
	if err != nil {
		return fmt.Errorf("start extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// CompleteExtraction persists the parsed content of a finished row.
func (s *Store) CompleteExtraction(ctx context.Context, e seo.PageExtraction) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	query := `
		UPDATE page_extractions
		SET status = 'completed', title = $1, meta_description = $2, h1 = $3,
		    headings = $4, keywords = $5, html_blob_url = $6, extracted_at = $7,
		    error_text = ''
		WHERE id = $8;
	`
	tag, err := s.pool.Exec(ctx, query,
		e.Title,
		e.MetaDescription,
		e.H1,
		e.Headings,
		keywords,
		e.HTMLBlobURL,
		e.ExtractedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("complete extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// FailExtraction marks a row failed with its error text.
func (s *Store) FailExtraction(ctx context.Context, extractionID string, errText string) error {
	query := `UPDATE page_extractions SET status = 'failed', error_text = $1 WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, query, errText, extractionID)
	if err != nil {
		return fmt.Errorf("fail extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

func scanExtraction(row rowScanner) (seo.PageExtraction, error) {
	var (
		e        seo.PageExtraction
		keywords []byte
	)
	err := row.Scan(
		&e.ID,
		&e.WebsiteID,
		&e.CompetitorID,
		&e.URL,
		&e.Status,
		&e.Type,
		&e.Title,
		&e.MetaDescription,
		&e.H1,
		&e.Headings,
		&keywords,
		&e.HTMLBlobURL,
		&e.ExtractedAt,
		&e.ErrorText,
	)
	if err != nil {
		return seo.PageExtraction{}, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &e.Keywords); err != nil {
			return seo.PageExtraction{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	return e, nil
}

// CreateSitemapSnapshot inserts a snapshot with its URL rows in one
// transaction.
func (s *Store) CreateSitemapSnapshot(ctx context.Context, snap seo.SitemapSnapshot, urls []seo.SitemapURL) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO sitemap_snapshots (id, website_id, competitor_id, sitemap_url, sitemap_type, url_count, blob_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = tx.Exec(ctx, query,
		snap.ID,
		snap.WebsiteID,
		snap.CompetitorID,
		snap.SitemapURL,
		snap.SitemapType,
		snap.URLCount,
		snap.BlobURL,
		snap.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sitemap snapshot: %w", err)
	}

	urlQuery := `
		INSERT INTO sitemap_urls (snapshot_id, loc, lastmod, changefreq, priority)
		VALUES ($1, $2, $3, $4, $5);
	`
	for _, u := range urls {
		if _, err := tx.Exec(ctx, urlQuery, snap.ID, u.Loc, u.LastMod, u.ChangeFreq, u.Priority); err != nil {
			return fmt.Errorf("insert sitemap url: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// LatestSitemapSnapshot returns the most recent snapshot in the given scope.
func (s *Store) LatestSitemapSnapshot(ctx context.Context, scope seo.ExtractionScope) (seo.SitemapSnapshot, error) {
	query := `
		SELECT id, website_id, competitor_id, sitemap_url, sitemap_type, url_count, blob_url, fetched_at
		FROM sitemap_snapshots
		WHERE website_id = $1 AND competitor_id = $2
		ORDER BY fetched_at DESC
		LIMIT 1;
	`
	var snap seo.SitemapSnapshot
	err := s.pool.QueryRow(ctx, query, scope.WebsiteID, scope.CompetitorID).Scan(
		&snap.ID,
		&snap.WebsiteID,
		&snap.CompetitorID,
		&snap.SitemapURL,
		&snap.SitemapType,
		&snap.URLCount,
		&snap.BlobURL,
		&snap.FetchedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return seo.SitemapSnapshot{}, seo.ErrNotFound
		}
		return seo.SitemapSnapshot{}, fmt.Errorf("get latest sitemap snapshot: %w", err)
	}
	return snap, nil
}

// CreateReport inserts a generated report row.
func (s *Store) CreateReport(ctx context.Context, r seo.Report) error {
	query := `
		INSERT INTO reports (id, website_id, summary, suggestions, blob_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.WebsiteID,
		r.Summary,
		r.Suggestions,
		r.BlobURL,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
