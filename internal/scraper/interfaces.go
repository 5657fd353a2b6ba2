package scraper

import (
	"context"
	"time"
)

// Fetcher retrieves a single page over HTTP.
type Fetcher interface {
	// Fetch performs one GET of url, honoring the context deadline.
	// Failures are reported as *FetchError.
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Parser extracts structure and outgoing links from raw HTML.
type Parser interface {
	// Parse returns the structured page for html as served at baseURL.
	// Outgoing links are absolute with fragments stripped. Failures are
	// reported as *ParseError.
	Parse(html []byte, baseURL string) (Page, error)
}

// Converter turns a parsed page into Markdown.
type Converter interface {
	Convert(page Page) (string, error)
}

// Storage persists the converted output of a single page.
type Storage interface {
	Store(ctx context.Context, jobID string, pageURL string, markdown string) error
}

// JobRegistry tracks job lifecycle and outcomes.
//
// The state machine is pending -> running -> {succeeded, partial, failed}.
// Terminal states are immutable.
type JobRegistry interface {
	// Create records a new job in the pending state and returns it.
	Create(ctx context.Context, params JobParameters) (Job, error)

	// Get returns the job by ID, or ErrJobNotFound.
	Get(ctx context.Context, jobID string) (Job, error)

	// Transition moves the job to status. Terminal transitions carry the
	// crawl result; non-terminal transitions pass nil. Illegal moves
	// return ErrInvalidTransition.
	Transition(ctx context.Context, jobID string, status JobStatus, result *CrawlResult) error

	// FindActive returns the non-terminal job whose root URL matches
	// rootURL (already normalized), or ErrJobNotFound when none exists.
	FindActive(ctx context.Context, rootURL string) (Job, error)

	// ListPages returns the per-page results recorded for a finished job.
	ListPages(ctx context.Context, jobID string) ([]PageResult, error)
}

// Publisher emits job-completion events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
