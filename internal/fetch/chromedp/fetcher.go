// Package chromedp implements the first browser-rendered fetch strategy.
package chromedp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Config controls defaults applied when the request leaves them unset.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements scraper.FetchStrategy using headless Chrome. Each Fetch
// launches its own allocator and browser context and tears both down before
// returning, so no session state leaks between calls.
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

// Fetch navigates with a fresh headless browser and returns the fully
// rendered DOM as the body.
func (f *Fetcher) Fetch(ctx context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavigationTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if req.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(req.Proxy))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	if err := chromedp.Run(taskCtx,
		f.networkSetupAction(req),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("chromedp navigate: %w", err))
	}

	if req.WaitForSelector != "" {
		if err := chromedp.Run(taskCtx, chromedp.WaitReady(req.WaitForSelector, chromedp.ByQuery)); err != nil {
			return scraper.FetchResponse{}, fetch.WaitError(req.URL, req.WaitForSelector, err)
		}
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return scraper.FetchResponse{}, fetch.Classify(req.URL, fmt.Errorf("chromedp capture dom: %w", err))
	}

	status, headers := meta.snapshotWithFallbacks()
	return scraper.FetchResponse{
		StatusCode:  status,
		ContentType: contentType(headers),
		Body:        []byte(html),
		Headers:     headers,
		Duration:    time.Since(start),
	}, nil
}

func (f *Fetcher) networkSetupAction(req scraper.FetchRequest) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		userAgent := req.UserAgent
		if userAgent == "" {
			userAgent = f.cfg.UserAgent
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if headers := extraHeaders(req); len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func extraHeaders(req scraper.FetchRequest) network.Headers {
	headers := network.Headers{}
	for key, value := range req.Headers {
		headers[key] = value
	}
	if cookie := fetch.CookieHeader(req.Cookies); cookie != "" {
		headers["Cookie"] = cookie
	}
	return headers
}

func contentType(headers http.Header) string {
	if ct := headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return "text/html"
}

// responseMeta records the document response observed on the CDP event bus.
type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		switch v := value.(type) {
		case string:
			for _, entry := range strings.Split(v, "\n") {
				headers.Add(key, entry)
			}
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.headers = headers
	m.mu.Unlock()
}

// snapshotWithFallbacks reports 200 when no document response was observed;
// browser transports do not always surface a real HTTP status.
func (m *responseMeta) snapshotWithFallbacks() (int, http.Header) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(http.Header, len(m.headers))
	for k, values := range m.headers {
		for _, v := range values {
			headers.Add(k, v)
		}
	}
	return status, headers
}
