package scraper

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the registry.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// JobParameters captures per-job configuration knobs requested by the caller.
type JobParameters struct {
	URL           string `json:"url"`
	MaxDepth      int    `json:"max_depth" mapstructure:"max_depth"`
	Concurrency   int    `json:"concurrency"`
	RetryAttempts int    `json:"retry_attempts" mapstructure:"retry_attempts"`
	Force         bool   `json:"force"`
}

// Job is the metadata tracked by the registry for each trigger.
type Job struct {
	ID         string        `json:"id"`
	RootURL    string        `json:"root_url"`
	Status     JobStatus     `json:"status"`
	Created    time.Time     `json:"created_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters JobParameters `json:"parameters"`
	Summary    JobSummary    `json:"summary"`
}

// JobSummary aggregates per-page outcomes for a job.
type JobSummary struct {
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
	PagesSkipped   int `json:"pages_skipped"`
	Retries        int `json:"retries"`
}

// PageStatus records how far a single page made it through the pipeline.
type PageStatus string

// Page pipeline states. A page that clears every stage ends at stored.
const (
	PageStatusFetched   PageStatus = "fetched"
	PageStatusParsed    PageStatus = "parsed"
	PageStatusConverted PageStatus = "converted"
	PageStatusStored    PageStatus = "stored"
	PageStatusFailed    PageStatus = "failed"
)

// PageResult is the per-URL outcome recorded during a crawl.
type PageResult struct {
	URL    string     `json:"url"`
	Depth  int        `json:"depth"`
	Status PageStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Failed reports whether the page did not reach the stored state.
func (r PageResult) Failed() bool {
	return r.Status == PageStatusFailed
}

// CrawlResult is the aggregate returned by one engine run.
type CrawlResult struct {
	Status  JobStatus    `json:"status"`
	Pages   []PageResult `json:"pages"`
	Summary JobSummary   `json:"summary"`
}

// FailedPages returns the subset of page results that failed.
func (r CrawlResult) FailedPages() []PageResult {
	var out []PageResult
	for _, p := range r.Pages {
		if p.Failed() {
			out = append(out, p)
		}
	}
	return out
}

// Page is the structured representation produced by the Parser.
type Page struct {
	Title       string
	Description string
	ContentHTML string
	Links       []string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
