// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/config"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/metrics"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scheduler"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Server wires HTTP handlers to the scheduler and registry.
type Server struct {
	router    chi.Router
	registry  scraper.JobRegistry
	scheduler *scheduler.Scheduler
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	registry scraper.JobRegistry,
	sched *scheduler.Scheduler,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	metrics.Init()
	s := &Server{
		registry:  registry,
		scheduler: sched,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scrape/trigger", s.trigger)
		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/status", s.getJobStatus)
			r.Get("/result", s.getJobResult)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type triggerRequest struct {
	URL           string `json:"url"`
	MaxDepth      *int   `json:"max_depth"`
	Concurrency   *int   `json:"concurrency"`
	RetryAttempts *int   `json:"retry_attempts"`
	Force         bool   `json:"force"`
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}

	params := scraper.JobParameters{
		URL:           req.URL,
		MaxDepth:      valueOrDefault(req.MaxDepth, s.cfg.Scraper.MaxDepth),
		Concurrency:   valueOrDefault(req.Concurrency, s.cfg.Scraper.Concurrency),
		RetryAttempts: valueOrDefault(req.RetryAttempts, s.cfg.Scraper.RetryAttempts),
		Force:         req.Force,
	}
	if params.URL == "" {
		params.URL = s.cfg.Scraper.TargetURL
	}

	job, err := s.scheduler.TriggerNow(r.Context(), params)
	if err != nil {
		var (
			vErr   *scraper.ValidationError
			dupErr *scraper.AlreadyRunningError
		)
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error(), s.logger)
		case errors.As(err, &dupErr):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  dupErr.Error(),
				"job_id": dupErr.JobID,
			}, s.logger)
		default:
			writeError(w, http.StatusInternalServerError, err.Error(), s.logger)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	}, s.logger)
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.registry.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job}, s.logger)
}

// jobResult is the terminal view of a job: its metadata plus the failed
// pages, so callers can see what to retry.
type jobResult struct {
	Job         scraper.Job          `json:"job"`
	FailedPages []scraper.PageResult `json:"failed_pages"`
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.registry.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	if !job.Status.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job has not finished",
			"status": string(job.Status),
		}, s.logger)
		return
	}
	pages, err := s.registry.ListPages(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch job pages", s.logger)
		return
	}
	var failed []scraper.PageResult
	for _, p := range pages {
		if p.Failed() {
			failed = append(failed, p)
		}
	}
	writeJSON(w, http.StatusOK, jobResult{Job: job, FailedPages: failed}, s.logger)
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"}, zap.NewNop())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
