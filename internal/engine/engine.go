// Package engine implements the crawl orchestration core: a depth-bounded,
// deduplicated traversal of a site graph executed by a fixed-size worker
// pool.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/metrics"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Engine runs crawl jobs. The frontier queue and visited set are owned by
// the coordinator goroutine inside Run, so check-and-add is serialized
// without holding a lock across page I/O.
type Engine struct {
	fetcher   scraper.Fetcher
	parser    scraper.Parser
	converter scraper.Converter
	storage   scraper.Storage
	retry     scraper.RetryPolicy
	logger    *zap.Logger
}

// New constructs an Engine.
func New(
	fetcher scraper.Fetcher,
	parser scraper.Parser,
	converter scraper.Converter,
	storage scraper.Storage,
	retry scraper.RetryPolicy,
	logger *zap.Logger,
) *Engine {
	metrics.Init()
	return &Engine{
		fetcher:   fetcher,
		parser:    parser,
		converter: converter,
		storage:   storage,
		retry:     retry,
		logger:    logger,
	}
}

// frontierEntry is one pending page in the traversal.
type frontierEntry struct {
	url   string
	depth int
}

// pageOutcome is what a worker reports back for one page.
type pageOutcome struct {
	url     string
	depth   int
	status  scraper.PageStatus
	err     error
	links   []string
	retries int
	dropped bool
}

// Run executes the crawl for job and returns the aggregate result. Page
// failures are isolated: a failed page is recorded and the traversal
// continues. The returned status is succeeded when no page failed, failed
// when no page succeeded, and partial otherwise.
func (e *Engine) Run(ctx context.Context, job scraper.Job) (scraper.CrawlResult, error) {
	params := job.Parameters
	if err := scraper.ValidateParameters(params); err != nil {
		return scraper.CrawlResult{}, err
	}
	root, err := scraper.NormalizeURL(params.URL)
	if err != nil {
		return scraper.CrawlResult{}, &scraper.ValidationError{Field: "url", Reason: err.Error()}
	}

	log := e.logger.With(zap.String("job_id", job.ID), zap.String("root_url", root))
	log.Info("crawl started",
		zap.Int("max_depth", params.MaxDepth),
		zap.Int("concurrency", params.Concurrency))

	workCh := make(chan frontierEntry, params.Concurrency)
	resultCh := make(chan pageOutcome)

	var wg sync.WaitGroup
	for i := 0; i < params.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range workCh {
				metrics.IncActiveWorkers()
				outcome := e.processPage(ctx, job.ID, entry, params)
				metrics.DecActiveWorkers()
				select {
				case resultCh <- outcome:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Coordinator state. Only this goroutine touches the frontier and the
	// visited/skipped sets.
	var (
		frontier = []frontierEntry{{url: root, depth: 0}}
		visited  = map[string]bool{root: true}
		skipped  = map[string]bool{}
		result   scraper.CrawlResult
		pending  int
		next     *frontierEntry
	)

	popNext := func() {
		if next == nil && len(frontier) > 0 {
			next = &frontier[0]
			frontier = frontier[1:]
		}
	}
	popNext()

	handleOutcome := func(out pageOutcome) {
		if out.dropped {
			return
		}
		result.Summary.Retries += out.retries

		errText := ""
		if out.err != nil {
			errText = out.err.Error()
			result.Summary.PagesFailed++
			log.Warn("page failed",
				zap.String("url", out.url),
				zap.Int("depth", out.depth),
				zap.Error(out.err))
		} else {
			result.Summary.PagesSucceeded++
		}
		result.Pages = append(result.Pages, scraper.PageResult{
			URL:    out.url,
			Depth:  out.depth,
			Status: out.status,
			Error:  errText,
		})
		metrics.ObservePage(out.url, string(out.status))

		for _, link := range out.links {
			if !scraper.SameHost(root, link) {
				continue
			}
			if visited[link] {
				continue
			}
			if out.depth+1 > params.MaxDepth {
				if !skipped[link] {
					skipped[link] = true
					result.Summary.PagesSkipped++
				}
				continue
			}
			visited[link] = true
			// A URL first sighted beyond the bound can be rediscovered
			// within it; once enqueued it is no longer skipped.
			if skipped[link] {
				delete(skipped, link)
				result.Summary.PagesSkipped--
			}
			frontier = append(frontier, frontierEntry{url: link, depth: out.depth + 1})
		}
	}

	for {
		if next == nil && pending == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if next != nil {
			select {
			case <-ctx.Done():
			case workCh <- *next:
				pending++
				next = nil
			case out := <-resultCh:
				pending--
				handleOutcome(out)
			}
		} else {
			select {
			case <-ctx.Done():
			case out := <-resultCh:
				pending--
				handleOutcome(out)
			}
		}
		popNext()
	}

	close(workCh)
	wg.Wait()

	result.Status = deriveStatus(result.Summary)
	log.Info("crawl finished",
		zap.String("status", string(result.Status)),
		zap.Int("pages_succeeded", result.Summary.PagesSucceeded),
		zap.Int("pages_failed", result.Summary.PagesFailed),
		zap.Int("pages_skipped", result.Summary.PagesSkipped),
		zap.Int("retries", result.Summary.Retries))

	if ctx.Err() != nil {
		return result, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	return result, nil
}

// processPage runs the fetch -> parse -> convert -> store pipeline for one
// page. The returned outcome carries discovered links whenever parsing
// succeeded, even if a later stage failed.
func (e *Engine) processPage(ctx context.Context, jobID string, entry frontierEntry, params scraper.JobParameters) pageOutcome {
	out := pageOutcome{url: entry.url, depth: entry.depth}

	// The coordinator never enqueues past the bound; drop anything that
	// slips through regardless.
	if entry.depth > params.MaxDepth {
		out.dropped = true
		return out
	}

	resp, retries, err := e.fetchWithRetry(ctx, entry.url, params.RetryAttempts)
	out.retries = retries
	if err != nil {
		out.status = scraper.PageStatusFailed
		out.err = err
		return out
	}
	out.status = scraper.PageStatusFetched
	metrics.ObserveFetchDuration(entry.url, resp.Duration)

	page, err := e.parser.Parse(resp.Body, entry.url)
	if err != nil {
		out.status = scraper.PageStatusFailed
		out.err = err
		return out
	}
	out.status = scraper.PageStatusParsed
	out.links = page.Links

	markdown, err := e.converter.Convert(page)
	if err != nil {
		out.status = scraper.PageStatusFailed
		out.err = err
		return out
	}
	out.status = scraper.PageStatusConverted

	if err := e.storage.Store(ctx, jobID, entry.url, markdown); err != nil {
		out.status = scraper.PageStatusFailed
		out.err = err
		return out
	}
	out.status = scraper.PageStatusStored
	return out
}

// fetchWithRetry fetches the URL, retrying transient failures within the
// per-URL budget. It returns how many retries were consumed.
func (e *Engine) fetchWithRetry(ctx context.Context, url string, budget int) (scraper.FetchResponse, int, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := e.fetcher.Fetch(ctx, url)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		if !e.retry.ShouldRetry(err, attempt, budget) {
			return scraper.FetchResponse{}, attempt, lastErr
		}
		metrics.ObserveFetchRetry(url)

		select {
		case <-time.After(e.retry.Backoff(attempt)):
		case <-ctx.Done():
			return scraper.FetchResponse{}, attempt, lastErr
		}
	}
}

func deriveStatus(summary scraper.JobSummary) scraper.JobStatus {
	switch {
	case summary.PagesFailed == 0 && summary.PagesSucceeded > 0:
		return scraper.JobStatusSucceeded
	case summary.PagesSucceeded == 0:
		return scraper.JobStatusFailed
	default:
		return scraper.JobStatusPartial
	}
}
