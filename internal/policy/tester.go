package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pageharvest/pageharvest/internal/extract"
	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// TestReport is the truncated preview returned by a policy live test.
// Nothing about the test run is persisted.
type TestReport struct {
	URL            string        `json:"url"`
	StatusCode     int           `json:"status_code"`
	Title          string        `json:"title,omitempty"`
	WordCount      int           `json:"word_count"`
	StructuredKeys []string      `json:"structured_keys,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Tester performs one live fetch+extract against a policy's base URL.
type Tester struct {
	registry       *fetch.Registry
	defaultTimeout time.Duration
}

// NewTester builds a Tester over the strategy registry.
func NewTester(registry *fetch.Registry, defaultTimeout time.Duration) *Tester {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Tester{registry: registry, defaultTimeout: defaultTimeout}
}

// Scrape performs one fetch+extract round trip without touching any store.
// The one-off scrape endpoints and Test share this path.
func (t *Tester) Scrape(ctx context.Context, method scraper.FetchMethod, req scraper.FetchRequest, selectors map[string]string) (scraper.FetchResponse, extract.Document, error) {
	strategy, err := t.registry.Strategy(method)
	if err != nil {
		return scraper.FetchResponse{}, extract.Document{}, err
	}
	if req.Timeout <= 0 {
		req.Timeout = t.defaultTimeout
	}
	resp, err := strategy.Fetch(ctx, req)
	if err != nil {
		return scraper.FetchResponse{}, extract.Document{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	doc, err := extract.Extract(string(resp.Body), req.URL, selectors)
	if err != nil {
		return scraper.FetchResponse{}, extract.Document{}, fmt.Errorf("extract %s: %w", req.URL, err)
	}
	return resp, doc, nil
}

// Test fetches the policy base URL with the policy's own defaults and returns
// a preview of what a job under this policy would extract.
func (t *Tester) Test(ctx context.Context, pol scraper.SitePolicy) (TestReport, error) {
	method := pol.DefaultMethod
	if !scraper.KnownMethod(method) {
		method = scraper.MethodStatic
	}

	timeout := pol.PageLoadTimeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	req := scraper.FetchRequest{
		URL:             pol.BaseURL,
		Headers:         pol.DefaultHeaders,
		Cookies:         pol.DefaultCookies,
		Timeout:         timeout,
		WaitForSelector: pol.WaitForSelector,
	}
	if len(pol.UserAgents) > 0 {
		req.UserAgent = pol.UserAgents[0]
	}

	resp, doc, err := t.Scrape(ctx, method, req, pol.DefaultSelectors)
	if err != nil {
		return TestReport{}, err
	}

	keys := make([]string, 0, len(doc.StructuredData))
	for key := range doc.StructuredData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return TestReport{
		URL:            pol.BaseURL,
		StatusCode:     resp.StatusCode,
		Title:          doc.Title,
		WordCount:      doc.WordCount,
		StructuredKeys: keys,
		Duration:       resp.Duration,
	}, nil
}
