package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pageharvest/pageharvest/internal/extract"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

const (
	maxExtractedLinks  = 100
	maxExtractedImages = 50
	urlProbeTimeout    = 10 * time.Second
)

type quickScrapeRequest struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Selectors       map[string]string `json:"selectors"`
	Headers         map[string]string `json:"headers"`
	Cookies         map[string]string `json:"cookies"`
	UserAgent       string            `json:"user_agent"`
	TimeoutSeconds  *int              `json:"timeout_seconds"`
	WaitForSelector string            `json:"wait_for_selector"`
}

type quickScrapeResponse struct {
	URL             string         `json:"url"`
	StatusCode      int            `json:"status_code"`
	Title           string         `json:"title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	Content         string         `json:"content,omitempty"`
	ContentLength   int            `json:"content_length"`
	WordCount       int            `json:"word_count"`
	ImageCount      int            `json:"image_count"`
	LinkCount       int            `json:"link_count"`
	StructuredData  map[string]any `json:"structured_data,omitempty"`
	DurationMS      int64          `json:"duration_ms"`
}

// quickScrape handles POST /v1/scrape/quick. One fetch+extract round trip
// with nothing persisted.
func (s *Server) quickScrape(w http.ResponseWriter, r *http.Request) {
	var req quickScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !absoluteURL(req.URL) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("url %q is not absolute", req.URL))
		return
	}
	method := scraper.MethodStatic
	if req.Method != "" {
		method = scraper.FetchMethod(req.Method)
		if !scraper.KnownMethod(method) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported fetch method %q", req.Method))
			return
		}
	}

	fetchReq := scraper.FetchRequest{
		URL:             req.URL,
		Headers:         req.Headers,
		Cookies:         req.Cookies,
		UserAgent:       req.UserAgent,
		WaitForSelector: req.WaitForSelector,
	}
	if req.TimeoutSeconds != nil {
		fetchReq.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}

	resp, doc, err := s.tester.Scrape(r.Context(), method, fetchReq, req.Selectors)
	if err != nil {
		s.writeDomainError(w, err, "scrape failed")
		return
	}
	writeJSON(w, http.StatusOK, quickScrapeResponse{
		URL:             req.URL,
		StatusCode:      resp.StatusCode,
		Title:           doc.Title,
		MetaDescription: doc.MetaDescription,
		Content:         doc.Content,
		ContentLength:   len(resp.Body),
		WordCount:       doc.WordCount,
		ImageCount:      doc.ImageCount,
		LinkCount:       doc.LinkCount,
		StructuredData:  doc.StructuredData,
		DurationMS:      resp.Duration.Milliseconds(),
	})
}

type analyzeContentRequest struct {
	HTML      string            `json:"html"`
	URL       string            `json:"url"`
	Selectors map[string]string `json:"selectors"`
}

// analyzeContent handles POST /v1/scrape/analyze. The caller supplies the
// HTML; no fetch happens.
func (s *Server) analyzeContent(w http.ResponseWriter, r *http.Request) {
	var req analyzeContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.HTML == "" {
		writeError(w, http.StatusBadRequest, "html is required")
		return
	}
	doc, err := extract.Extract(req.HTML, req.URL, req.Selectors)
	if err != nil {
		s.writeDomainError(w, err, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": doc})
}

// extractLinks handles GET /v1/scrape/links.
func (s *Server) extractLinks(w http.ResponseWriter, r *http.Request) {
	resp, pageURL, ok := s.fetchForExtraction(w, r)
	if !ok {
		return
	}
	links, err := extract.Links(string(resp.Body), pageURL, maxExtractedLinks)
	if err != nil {
		s.writeDomainError(w, err, "link extraction failed")
		return
	}
	if r.URL.Query().Get("internal_only") == "true" {
		links = internalLinks(links, pageURL)
	}
	if links == nil {
		links = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":         pageURL,
		"total_links": len(links),
		"links":       links,
	})
}

// extractImages handles GET /v1/scrape/images.
func (s *Server) extractImages(w http.ResponseWriter, r *http.Request) {
	resp, pageURL, ok := s.fetchForExtraction(w, r)
	if !ok {
		return
	}
	images, err := extract.Images(string(resp.Body), pageURL, maxExtractedImages)
	if err != nil {
		s.writeDomainError(w, err, "image extraction failed")
		return
	}
	if images == nil {
		images = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":          pageURL,
		"total_images": len(images),
		"images":       images,
	})
}

// fetchForExtraction resolves the url and method query params and fetches the
// page. A false return means the response has already been written.
func (s *Server) fetchForExtraction(w http.ResponseWriter, r *http.Request) (scraper.FetchResponse, string, bool) {
	pageURL := r.URL.Query().Get("url")
	if !absoluteURL(pageURL) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("url %q is not absolute", pageURL))
		return scraper.FetchResponse{}, "", false
	}
	method := scraper.MethodStatic
	if raw := r.URL.Query().Get("method"); raw != "" {
		method = scraper.FetchMethod(raw)
		if !scraper.KnownMethod(method) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported fetch method %q", raw))
			return scraper.FetchResponse{}, "", false
		}
	}
	resp, _, err := s.tester.Scrape(r.Context(), method, scraper.FetchRequest{URL: pageURL}, nil)
	if err != nil {
		s.writeDomainError(w, err, "fetch failed")
		return scraper.FetchResponse{}, "", false
	}
	return resp, pageURL, true
}

// urlProbeClient performs the HEAD reachability check. Redirects are followed
// so a permanently-moved page still counts as reachable.
var urlProbeClient = &http.Client{Timeout: urlProbeTimeout}

// validateURL handles GET /v1/scrape/validate. Format problems are reported
// in the body, not as an HTTP error.
func (s *Server) validateURL(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := map[string]any{
		"url":          rawURL,
		"is_valid":     false,
		"is_reachable": false,
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result["error"] = "url must be absolute http or https"
		writeJSON(w, http.StatusOK, result)
		return
	}
	result["is_valid"] = true

	ctx, cancel := context.WithTimeout(r.Context(), urlProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		result["error"] = err.Error()
		writeJSON(w, http.StatusOK, result)
		return
	}
	start := time.Now()
	resp, err := urlProbeClient.Do(req)
	if err != nil {
		result["error"] = err.Error()
		writeJSON(w, http.StatusOK, result)
		return
	}
	resp.Body.Close()

	result["is_reachable"] = resp.StatusCode < http.StatusInternalServerError
	result["status_code"] = resp.StatusCode
	result["content_type"] = resp.Header.Get("Content-Type")
	result["response_time_ms"] = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, result)
}

// supportedMethods handles GET /v1/scrape/methods.
func (s *Server) supportedMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"methods": []map[string]string{
			{
				"name":        string(scraper.MethodStatic),
				"description": "Plain HTTP fetch without JavaScript execution.",
				"best_for":    "Server-rendered pages and APIs.",
			},
			{
				"name":        string(scraper.MethodChromedp),
				"description": "Headless Chrome via the DevTools protocol.",
				"best_for":    "JavaScript-heavy pages needing full rendering.",
			},
			{
				"name":        string(scraper.MethodRod),
				"description": "Headless Chrome via the Rod driver.",
				"best_for":    "Pages needing fine-grained browser control.",
			},
		},
	})
}

// absoluteURL reports whether raw parses to a URL with scheme and host.
func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// internalLinks keeps only links on the same host as pageURL.
func internalLinks(links []string, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}
	var out []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Host, base.Host) {
			out = append(out, link)
		}
	}
	return out
}
