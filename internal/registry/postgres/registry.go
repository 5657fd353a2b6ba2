// Package postgres provides a Postgres-backed job registry.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Expected schema:
//
//	CREATE TABLE scrape_jobs (
//		id UUID PRIMARY KEY,
//		root_url TEXT NOT NULL,
//		status TEXT NOT NULL,
//		created_at TIMESTAMPTZ NOT NULL,
//		started_at TIMESTAMPTZ,
//		finished_at TIMESTAMPTZ,
//		error_text TEXT,
//		parameters JSONB NOT NULL,
//		pages_succeeded INT NOT NULL DEFAULT 0,
//		pages_failed INT NOT NULL DEFAULT 0,
//		pages_skipped INT NOT NULL DEFAULT 0,
//		retries INT NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE scrape_pages (
//		seq BIGSERIAL PRIMARY KEY,
//		job_id UUID NOT NULL REFERENCES scrape_jobs (id),
//		url TEXT NOT NULL,
//		depth INT NOT NULL,
//		status TEXT NOT NULL,
//		error TEXT
//	);

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Registry implements scraper.JobRegistry on Postgres. State-machine
// enforcement lives in the UPDATE's WHERE clause so concurrent transitions
// cannot race past a terminal state.
type Registry struct {
	pool  pool
	clock scraper.Clock
	ids   scraper.IDGenerator
}

// New creates a Registry with its own connection pool.
func New(ctx context.Context, cfg Config, clock scraper.Clock, ids scraper.IDGenerator) (*Registry, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Registry{pool: p, clock: clock, ids: ids}, nil
}

// NewWithPool constructs a Registry from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(p pool, clock scraper.Clock, ids scraper.IDGenerator) (*Registry, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Registry{pool: p, clock: clock, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (r *Registry) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const jobColumns = `id, root_url, status, created_at, started_at, finished_at, COALESCE(error_text, ''), parameters, pages_succeeded, pages_failed, pages_skipped, retries`

// Create inserts a new pending job.
func (r *Registry) Create(ctx context.Context, params scraper.JobParameters) (scraper.Job, error) {
	rootURL, err := scraper.NormalizeURL(params.URL)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("normalize root url: %w", err)
	}
	id, err := r.ids.NewID()
	if err != nil {
		return scraper.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("marshal parameters: %w", err)
	}

	job := scraper.Job{
		ID:         id,
		RootURL:    rootURL,
		Status:     scraper.JobStatusPending,
		Created:    r.clock.Now(),
		Parameters: params,
	}
	query := `
INSERT INTO scrape_jobs (id, root_url, status, created_at, parameters)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, query, job.ID, job.RootURL, string(job.Status), job.Created, paramsJSON); err != nil {
		return scraper.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get fetches a job by ID.
func (r *Registry) Get(ctx context.Context, jobID string) (scraper.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// Transition moves the job through the state machine. The status guard in
// the WHERE clause makes each legal move execute at most once.
func (r *Registry) Transition(ctx context.Context, jobID string, status scraper.JobStatus, result *scraper.CrawlResult) error {
	now := r.clock.Now()

	var (
		tag pgconn.CommandTag
		err error
	)
	switch {
	case status == scraper.JobStatusRunning:
		query := `UPDATE scrape_jobs SET status = $2, started_at = $3 WHERE id = $1 AND status = 'pending'`
		tag, err = r.pool.Exec(ctx, query, jobID, string(status), now)
	case status.Terminal():
		var summary scraper.JobSummary
		var errText string
		if result != nil {
			summary = result.Summary
			errText = firstFailure(result)
		}
		query := `
UPDATE scrape_jobs
SET status = $2, finished_at = $3, error_text = NULLIF($4, ''),
	pages_succeeded = $5, pages_failed = $6, pages_skipped = $7, retries = $8
WHERE id = $1 AND status = 'running'`
		tag, err = r.pool.Exec(ctx, query, jobID, string(status), now, errText,
			summary.PagesSucceeded, summary.PagesFailed, summary.PagesSkipped, summary.Retries)
	default:
		return fmt.Errorf("%w: target status %s", scraper.ErrInvalidTransition, status)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.Get(ctx, jobID); errors.Is(getErr, scraper.ErrJobNotFound) {
			return scraper.ErrJobNotFound
		}
		return fmt.Errorf("%w: job %s not eligible for %s", scraper.ErrInvalidTransition, jobID, status)
	}

	if status.Terminal() && result != nil {
		for _, page := range result.Pages {
			query := `
INSERT INTO scrape_pages (job_id, url, depth, status, error)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))`
			if _, err := r.pool.Exec(ctx, query, jobID, page.URL, page.Depth, string(page.Status), page.Error); err != nil {
				return fmt.Errorf("insert page result: %w", err)
			}
		}
	}
	return nil
}

// FindActive returns the oldest non-terminal job for rootURL.
func (r *Registry) FindActive(ctx context.Context, rootURL string) (scraper.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE root_url = $1 AND status IN ('pending', 'running') ORDER BY created_at LIMIT 1`
	return r.scanJob(r.pool.QueryRow(ctx, query, rootURL))
}

// ListPages returns the per-page results recorded for a job.
func (r *Registry) ListPages(ctx context.Context, jobID string) ([]scraper.PageResult, error) {
	query := `SELECT url, depth, status, COALESCE(error, '') FROM scrape_pages WHERE job_id = $1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var pages []scraper.PageResult
	for rows.Next() {
		var (
			page   scraper.PageResult
			status string
		)
		if err := rows.Scan(&page.URL, &page.Depth, &status, &page.Error); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		page.Status = scraper.PageStatus(status)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

func (r *Registry) scanJob(row pgx.Row) (scraper.Job, error) {
	var (
		job        scraper.Job
		status     string
		paramsJSON []byte
	)
	err := row.Scan(
		&job.ID, &job.RootURL, &status, &job.Created, &job.Started, &job.Finished,
		&job.ErrorText, &paramsJSON,
		&job.Summary.PagesSucceeded, &job.Summary.PagesFailed,
		&job.Summary.PagesSkipped, &job.Summary.Retries,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.Job{}, scraper.ErrJobNotFound
	}
	if err != nil {
		return scraper.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = scraper.JobStatus(status)
	if err := json.Unmarshal(paramsJSON, &job.Parameters); err != nil {
		return scraper.Job{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return job, nil
}

// firstFailure surfaces one failed page's error as the job error text.
func firstFailure(result *scraper.CrawlResult) string {
	if result.Status == scraper.JobStatusSucceeded {
		return ""
	}
	for _, p := range result.Pages {
		if p.Failed() && p.Error != "" {
			return p.Error
		}
	}
	return ""
}
