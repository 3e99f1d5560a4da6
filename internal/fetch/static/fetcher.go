// Package static implements the passive-HTTP fetch strategy using gocolly.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Config controls collector behavior shared by all fetches.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements scraper.FetchStrategy with a single GET per call. It
// never retries; classification of failures is the extent of its error
// handling.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	// Non-2xx responses still carry a body and status the caller wants.
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes one HTTP GET with the request's headers, cookies, and proxy
// under a hard timeout.
func (f *Fetcher) Fetch(ctx context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	var (
		result   scraper.FetchResponse
		fetchErr error
	)
	collector, err := f.buildCollector(req, &result, &fetchErr)
	if err != nil {
		return scraper.FetchResponse{}, scraper.NewFetchError(scraper.FetchUnreachable, req.URL, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(req.URL)
	}()

	select {
	case <-ctx.Done():
		return scraper.FetchResponse{}, fetch.Classify(req.URL, ctx.Err())
	case visitErr := <-done:
		if fetchErr != nil {
			return scraper.FetchResponse{}, fetch.Classify(req.URL, fetchErr)
		}
		if visitErr != nil {
			return scraper.FetchResponse{}, fetch.Classify(req.URL, visitErr)
		}
		return result, nil
	}
}

func (f *Fetcher) buildCollector(
	req scraper.FetchRequest,
	result *scraper.FetchResponse,
	fetchErr *error,
) (*colly.Collector, error) {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	if req.UserAgent != "" {
		collector.UserAgent = req.UserAgent
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	collector.SetRequestTimeout(timeout)

	if req.Proxy != "" {
		if err := collector.SetProxy(req.Proxy); err != nil {
			return nil, fmt.Errorf("set proxy %q: %w", req.Proxy, err)
		}
	}
	if len(req.Cookies) > 0 {
		cookies := make([]*http.Cookie, 0, len(req.Cookies))
		for name, value := range req.Cookies {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
		if err := collector.SetCookies(req.URL, cookies); err != nil {
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range req.Headers {
			r.Headers.Set(key, value)
		}
	})

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = scraper.FetchResponse{
			StatusCode:  r.StatusCode,
			ContentType: headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
			Headers:     headers,
			Duration:    time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})

	return collector, nil
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
