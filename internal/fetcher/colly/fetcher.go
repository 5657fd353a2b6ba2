// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

// Fetcher performs single-page GETs through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Failures are returned as *scraper.FetchError
// classified as timeout, network, or http_status so the retry policy can
// distinguish transient from permanent conditions.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scraper.FetchResponse, error) {
	var (
		result    scraper.FetchResponse
		errStatus int
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = scraper.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			errStatus = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return scraper.FetchResponse{}, &scraper.FetchError{
			Kind: scraper.FetchErrNetwork,
			URL:  url,
			Err:  ctx.Err(),
		}
	case err := <-done:
		if err != nil {
			return scraper.FetchResponse{}, classify(url, errStatus, err)
		}
		return result, nil
	}
}

// classify maps a Colly visit error onto the fetch error taxonomy.
func classify(url string, status int, err error) *scraper.FetchError {
	if status >= 400 {
		return &scraper.FetchError{
			Kind:       scraper.FetchErrHTTPStatus,
			URL:        url,
			StatusCode: status,
			Err:        err,
		}
	}
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &scraper.FetchError{Kind: scraper.FetchErrTimeout, URL: url, Err: err}
	}
	return &scraper.FetchError{Kind: scraper.FetchErrNetwork, URL: url, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
