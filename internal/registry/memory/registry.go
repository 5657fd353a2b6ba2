// Package memory provides an in-memory job registry for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Registry implements scraper.JobRegistry with mutex-guarded maps.
type Registry struct {
	clock scraper.Clock
	ids   scraper.IDGenerator

	mu    sync.RWMutex
	jobs  map[string]scraper.Job
	pages map[string][]scraper.PageResult
}

// New constructs a Registry.
func New(clock scraper.Clock, ids scraper.IDGenerator) *Registry {
	return &Registry{
		clock: clock,
		ids:   ids,
		jobs:  make(map[string]scraper.Job),
		pages: make(map[string][]scraper.PageResult),
	}
}

// Create records a new pending job. The root URL is stored in normalized
// form so FindActive comparisons are exact.
func (r *Registry) Create(ctx context.Context, params scraper.JobParameters) (scraper.Job, error) {
	rootURL, err := scraper.NormalizeURL(params.URL)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("normalize root url: %w", err)
	}
	id, err := r.ids.NewID()
	if err != nil {
		return scraper.Job{}, fmt.Errorf("generate job id: %w", err)
	}

	job := scraper.Job{
		ID:         id,
		RootURL:    rootURL,
		Status:     scraper.JobStatusPending,
		Created:    r.clock.Now(),
		Parameters: params,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return job, nil
}

// Get fetches a job by ID.
func (r *Registry) Get(_ context.Context, jobID string) (scraper.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return scraper.Job{}, scraper.ErrJobNotFound
	}
	return job, nil
}

// Transition moves the job through the pending -> running -> terminal state
// machine. Terminal transitions persist the crawl result.
func (r *Registry) Transition(_ context.Context, jobID string, status scraper.JobStatus, result *scraper.CrawlResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return scraper.ErrJobNotFound
	}
	if !validTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", scraper.ErrInvalidTransition, job.Status, status)
	}

	now := r.clock.Now()
	job.Status = status
	if status == scraper.JobStatusRunning {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
		if result != nil {
			job.Summary = result.Summary
			job.ErrorText = firstFailure(result)
			pages := make([]scraper.PageResult, len(result.Pages))
			copy(pages, result.Pages)
			r.pages[jobID] = pages
		}
	}
	r.jobs[jobID] = job
	return nil
}

// FindActive returns the non-terminal job for rootURL, if any.
func (r *Registry) FindActive(_ context.Context, rootURL string) (scraper.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.RootURL == rootURL && !job.Status.Terminal() {
			return job, nil
		}
	}
	return scraper.Job{}, scraper.ErrJobNotFound
}

// ListPages returns the per-page results recorded for a job.
func (r *Registry) ListPages(_ context.Context, jobID string) ([]scraper.PageResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.jobs[jobID]; !ok {
		return nil, scraper.ErrJobNotFound
	}
	pages := r.pages[jobID]
	out := make([]scraper.PageResult, len(pages))
	copy(out, pages)
	return out, nil
}

func validTransition(from, to scraper.JobStatus) bool {
	switch {
	case from == scraper.JobStatusPending && to == scraper.JobStatusRunning:
		return true
	case from == scraper.JobStatusRunning && to.Terminal():
		return true
	default:
		return false
	}
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

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
