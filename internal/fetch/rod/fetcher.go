// Package rod implements the second browser-rendered fetch strategy.
package rod

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Config controls defaults applied when the request leaves them unset.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements scraper.FetchStrategy using go-rod. Every Fetch launches
// its own browser and closes it unconditionally before returning.
type Fetcher struct {
	cfg Config
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	return &Fetcher{cfg: cfg}
}

// Fetch navigates with a fresh rod browser and returns the rendered DOM.
// Rod exposes no reliable HTTP status for the navigation, so the response
// always reports 200.
func (f *Fetcher) Fetch(ctx context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavigationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := launcher.New().Headless(true)
	if req.Proxy != "" {
		l = l.Proxy(req.Proxy)
	}
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("launch browser: %w", err))
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("connect browser: %w", err))
	}
	defer func() { _ = browser.Close() }()

	start := time.Now()
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("open page: %w", err))
	}

	if err := f.preparePage(page, req); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, err)
	}

	if err := page.Navigate(req.URL); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("navigate: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("wait load: %w", err))
	}

	if req.WaitForSelector != "" {
		if _, err := page.Element(req.WaitForSelector); err != nil {
			return scraper.FetchResponse{}, fetch.WaitError(req.URL, req.WaitForSelector, err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("capture dom: %w", err))
	}

	return scraper.FetchResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(html),
		Headers:     http.Header{},
		Duration:    time.Since(start),
	}, nil
}

func (f *Fetcher) preparePage(page *rod.Page, req scraper.FetchRequest) error {
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = f.cfg.UserAgent
	}
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
	}

	if kv := headerPairs(req); len(kv) > 0 {
		if _, err := page.SetExtraHeaders(kv); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// headerPairs flattens the request headers into the key, value, key, value
// form SetExtraHeaders expects. Keys are sorted so the order is stable.
func headerPairs(req scraper.FetchRequest) []string {
	keys := make([]string, 0, len(req.Headers))
	for key := range req.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var kv []string
	for _, key := range keys {
		kv = append(kv, key, req.Headers[key])
	}
	if cookie := fetch.CookieHeader(req.Cookies); cookie != "" {
		kv = append(kv, "Cookie", cookie)
	}
	return kv
}
