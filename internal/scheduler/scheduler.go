// Package scheduler triggers scrape jobs, on demand and on a recurring
// daily cadence, and owns the job lifecycle around each engine run.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/metrics"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Runner executes one crawl. Satisfied by *engine.Engine.
type Runner interface {
	Run(ctx context.Context, job scraper.Job) (scraper.CrawlResult, error)
}

// Config controls the recurring trigger loop and completion events.
type Config struct {
	// Enabled starts the daily loop when true.
	Enabled bool
	// Time is the daily trigger time in "HH:MM".
	Time string
	// Timezone is an IANA zone name the trigger time is interpreted in.
	Timezone string
	// Defaults are the parameters used for scheduled (non-forced) triggers.
	Defaults scraper.JobParameters
	// Topic is the completion-event topic. Empty disables publishing.
	Topic string
}

// CompletionEvent is the payload published after each finished job.
type CompletionEvent struct {
	JobID          string    `json:"job_id"`
	RootURL        string    `json:"root_url"`
	Status         string    `json:"status"`
	PagesSucceeded int       `json:"pages_succeeded"`
	PagesFailed    int       `json:"pages_failed"`
	PagesSkipped   int       `json:"pages_skipped"`
	Retries        int       `json:"retries"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Scheduler deduplicates triggers against the registry and runs accepted
// jobs asynchronously.
type Scheduler struct {
	registry  scraper.JobRegistry
	runner    Runner
	publisher scraper.Publisher
	clock     scraper.Clock
	logger    *zap.Logger
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler.
func New(
	registry scraper.JobRegistry,
	runner Runner,
	publisher scraper.Publisher,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	metrics.Init()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry:  registry,
		runner:    runner,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// TriggerNow validates the request, rejects duplicates of an active job
// unless forced, records a new pending job, and starts it asynchronously.
// The returned job is in the pending state.
func (s *Scheduler) TriggerNow(ctx context.Context, params scraper.JobParameters) (scraper.Job, error) {
	if err := scraper.ValidateParameters(params); err != nil {
		return scraper.Job{}, err
	}
	rootURL, err := scraper.NormalizeURL(params.URL)
	if err != nil {
		return scraper.Job{}, &scraper.ValidationError{Field: "url", Reason: err.Error()}
	}

	if !params.Force {
		active, err := s.registry.FindActive(ctx, rootURL)
		switch {
		case err == nil:
			return scraper.Job{}, &scraper.AlreadyRunningError{JobID: active.ID, RootURL: rootURL}
		case !errors.Is(err, scraper.ErrJobNotFound):
			return scraper.Job{}, fmt.Errorf("check active jobs: %w", err)
		}
	}

	job, err := s.registry.Create(ctx, params)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("create job: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()

	return job, nil
}

// Start launches the recurring trigger loop. It is a no-op when the
// schedule is disabled.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	hour, minute, err := parseScheduleTime(s.cfg.Time)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}

	s.wg.Add(1)
	go s.loop(hour, minute, loc)
	return nil
}

// Stop cancels in-flight jobs and the trigger loop and waits for them.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// loop fires TriggerNow at the next HH:MM occurrence in loc, every day.
// Per-tick failures, including an already-active duplicate, are logged and
// the loop keeps going.
func (s *Scheduler) loop(hour, minute int, loc *time.Location) {
	defer s.wg.Done()
	for {
		now := s.clock.Now().In(loc)
		next := nextRun(now, hour, minute, loc)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		job, err := s.TriggerNow(s.ctx, s.cfg.Defaults)
		if err != nil {
			s.logger.Warn("scheduled trigger skipped", zap.Error(err))
			continue
		}
		s.logger.Info("scheduled trigger accepted", zap.String("job_id", job.ID))
	}
}

// runJob drives one job through its lifecycle. It uses the scheduler's
// context so jobs survive the triggering HTTP request but stop on shutdown.
func (s *Scheduler) runJob(job scraper.Job) {
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("root_url", job.RootURL))

	if err := s.registry.Transition(s.ctx, job.ID, scraper.JobStatusRunning, nil); err != nil {
		log.Error("job could not start", zap.Error(err))
		return
	}

	result, runErr := s.runner.Run(s.ctx, job)
	if runErr != nil {
		log.Error("job run failed", zap.Error(runErr))
	}
	status := result.Status
	if !status.Terminal() {
		status = scraper.JobStatusFailed
		result.Status = status
	}

	// Stop cancels s.ctx while jobs are in flight; the terminal transition
	// must still land or the job stays running forever and blocks future
	// non-forced triggers for its URL.
	finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.registry.Transition(finishCtx, job.ID, status, &result); err != nil {
		log.Error("job could not finish", zap.Error(err))
		return
	}
	metrics.ObserveJob(string(status))
	s.publishCompletion(finishCtx, job, result)
}

func (s *Scheduler) publishCompletion(ctx context.Context, job scraper.Job, result scraper.CrawlResult) {
	if s.publisher == nil || s.cfg.Topic == "" {
		return
	}
	event := CompletionEvent{
		JobID:          job.ID,
		RootURL:        job.RootURL,
		Status:         string(result.Status),
		PagesSucceeded: result.Summary.PagesSucceeded,
		PagesFailed:    result.Summary.PagesFailed,
		PagesSkipped:   result.Summary.PagesSkipped,
		Retries:        result.Summary.Retries,
		FinishedAt:     s.clock.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal completion event", zap.Error(err))
		return
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, payload); err != nil {
		s.logger.Error("publish completion event",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

// parseScheduleTime parses "HH:MM" in 24-hour time.
func parseScheduleTime(value string) (hour, minute int, err error) {
	if _, err := time.Parse("15:04", value); err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q, want HH:MM: %w", value, err)
	}
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: %w", value, err)
	}
	return hour, minute, nil
}

// nextRun returns the next occurrence of hour:minute in loc strictly after
// now.
func nextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
