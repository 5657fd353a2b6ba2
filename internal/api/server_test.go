package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/clock/system"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/config"
	idgen "github.com/giorgikuloshvili-boop/Web-Scraper/internal/id/uuid"
	registrymemory "github.com/giorgikuloshvili-boop/Web-Scraper/internal/registry/memory"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scheduler"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// stubRunner finishes instantly with a canned result.
type stubRunner struct {
	result scraper.CrawlResult
}

func (r *stubRunner) Run(_ context.Context, _ scraper.Job) (scraper.CrawlResult, error) {
	return r.result, nil
}

// stuckRunner never finishes until the scheduler is stopped.
type stuckRunner struct{}

func (stuckRunner) Run(ctx context.Context, _ scraper.Job) (scraper.CrawlResult, error) {
	<-ctx.Done()
	return scraper.CrawlResult{Status: scraper.JobStatusFailed}, ctx.Err()
}

func testConfig() config.Config {
	cfg, _ := config.Load("")
	return cfg
}

func newTestServer(t *testing.T, runner scheduler.Runner, cfg config.Config) (*Server, *registrymemory.Registry, *scheduler.Scheduler) {
	t.Helper()
	registry := registrymemory.New(system.New(), idgen.New())
	sched := scheduler.New(registry, runner, nil, system.New(), scheduler.Config{}, zap.NewNop())
	t.Cleanup(sched.Stop)
	return NewServer(registry, sched, cfg, zap.NewNop()), registry, sched
}

func doRequest(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTrigger_CreatesJob(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{result: scraper.CrawlResult{
		Status:  scraper.JobStatusSucceeded,
		Summary: scraper.JobSummary{PagesSucceeded: 1},
	}}
	srv, registry, _ := newTestServer(t, runner, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger",
		`{"url":"https://example.com","max_depth":2}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	require.Equal(t, "pending", resp["status"])

	job, err := registry.Get(context.Background(), resp["job_id"])
	require.NoError(t, err)
	require.Equal(t, 2, job.Parameters.MaxDepth)
	require.Equal(t, 4, job.Parameters.Concurrency, "config default applied")
}

func TestTrigger_InvalidRequests(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, &stubRunner{}, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"ftp://example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com","max_depth":-1}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrigger_DuplicateConflict(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, stuckRunner{}, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var first map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://EXAMPLE.com/"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	require.Equal(t, first["job_id"], conflict["job_id"], "conflict names the active job")

	rec = doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com","force":true}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var forced map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forced))
	require.NotEqual(t, first["job_id"], forced["job_id"])
}

func TestGetJobStatus(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{result: scraper.CrawlResult{
		Status:  scraper.JobStatusSucceeded,
		Summary: scraper.JobSummary{PagesSucceeded: 1},
	}}
	srv, registry, _ := newTestServer(t, runner, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		job, err := registry.Get(context.Background(), created["job_id"])
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, srv, http.MethodGet, "/v1/jobs/"+created["job_id"]+"/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"succeeded"`)

	rec = doRequest(t, srv, http.MethodGet, "/v1/jobs/nope/status", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobResult(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{result: scraper.CrawlResult{
		Status: scraper.JobStatusPartial,
		Pages: []scraper.PageResult{
			{URL: "https://example.com", Depth: 0, Status: scraper.PageStatusStored},
			{URL: "https://example.com/bad", Depth: 1, Status: scraper.PageStatusFailed, Error: "unexpected status 404"},
		},
		Summary: scraper.JobSummary{PagesSucceeded: 1, PagesFailed: 1},
	}}
	srv, registry, _ := newTestServer(t, runner, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		job, err := registry.Get(context.Background(), created["job_id"])
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, srv, http.MethodGet, "/v1/jobs/"+created["job_id"]+"/result", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Job         scraper.Job          `json:"job"`
		FailedPages []scraper.PageResult `json:"failed_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, scraper.JobStatusPartial, result.Job.Status)
	require.Len(t, result.FailedPages, 1)
	require.Equal(t, "https://example.com/bad", result.FailedPages[0].URL)
}

func TestGetJobResult_NotFinished(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, stuckRunner{}, testConfig())

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, srv, http.MethodGet, "/v1/jobs/"+created["job_id"]+"/result", "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekrit"
	srv, _, _ := newTestServer(t, &stubRunner{}, cfg)

	rec := doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/v1/scrape/trigger", `{"url":"https://example.com"}`,
		map[string]string{"X-API-Key": "sekrit"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Health endpoints stay open.
	rec = doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, &stubRunner{}, testConfig())

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")

	rec = doRequest(t, srv, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
