// Package scraper defines core types shared across subsystems.
package scraper

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a scraping job.
type JobStatus string

// Job status values persisted in the job store. Transitions are monotonic:
// pending -> running -> completed|failed. Cancelled is terminal and only ever
// set by an explicit external update, never by the orchestrator.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// FetchMethod selects which fetch strategy executes a job.
type FetchMethod string

// The closed set of fetch strategies.
const (
	MethodStatic   FetchMethod = "static"
	MethodChromedp FetchMethod = "chromedp"
	MethodRod      FetchMethod = "rod"
)

// KnownMethod reports whether m names one of the supported strategies.
func KnownMethod(m FetchMethod) bool {
	switch m {
	case MethodStatic, MethodChromedp, MethodRod:
		return true
	}
	return false
}

// Job represents one request to fetch and extract content from a single URL.
type Job struct {
	ID     uuid.UUID   `json:"id"`
	URL    string      `json:"url"`
	Method FetchMethod `json:"method"`
	Status JobStatus   `json:"status"`

	Selectors map[string]string `json:"selectors,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Cookies   map[string]string `json:"cookies,omitempty"`
	Proxy     string            `json:"proxy,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`

	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryCount int           `json:"retry_count"`
	Delay      time.Duration `json:"delay_between_requests"`

	ResultCount int    `json:"result_count"`
	ErrorText   string `json:"error_text,omitempty"`

	IsRecurring bool       `json:"is_recurring"`
	CronExpr    string     `json:"cron_expression,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`

	PolicyID *uuid.UUID `json:"policy_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Retryable reports whether a failed job is still eligible for re-execution.
func (j Job) Retryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScrapedResult is the structured output of one successful fetch+extraction,
// owned by exactly one Job.
type ScrapedResult struct {
	ID    uuid.UUID `json:"id"`
	JobID uuid.UUID `json:"job_id"`

	URL            string         `json:"url"`
	Title          string         `json:"title,omitempty"`
	Content        string         `json:"content,omitempty"`
	RawHTML        string         `json:"raw_html,omitempty"`
	StructuredData map[string]any `json:"structured_data,omitempty"`

	ContentType     string      `json:"content_type,omitempty"`
	ContentLength   int         `json:"content_length"`
	StatusCode      int         `json:"status_code"`
	ResponseHeaders http.Header `json:"response_headers,omitempty"`

	WordCount  int `json:"word_count"`
	ImageCount int `json:"image_count"`
	LinkCount  int `json:"link_count"`

	ScrapedAt time.Time `json:"scraped_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SitePolicy is a named, reusable bundle of default scraping parameters and
// anti-bot/rate-limit settings keyed by domain. Name and domain are each
// globally unique.
type SitePolicy struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Domain  string    `json:"domain"`
	BaseURL string    `json:"base_url"`

	DefaultMethod    FetchMethod       `json:"default_method"`
	DefaultSelectors map[string]string `json:"default_selectors,omitempty"`
	DefaultHeaders   map[string]string `json:"default_headers,omitempty"`
	DefaultCookies   map[string]string `json:"default_cookies,omitempty"`

	RateLimitDelay time.Duration `json:"rate_limit_delay"`
	MaxConcurrent  int           `json:"max_concurrent_requests"`
	RespectRobots  bool          `json:"respect_robots_txt"`

	RequiresJS      bool          `json:"requires_js"`
	WaitForSelector string        `json:"wait_for_element,omitempty"`
	PageLoadTimeout time.Duration `json:"page_load_timeout"`

	NeedsProxy       bool     `json:"needs_proxy"`
	RotateUserAgents bool     `json:"rotate_user_agents"`
	UserAgents       []string `json:"custom_user_agents,omitempty"`

	PaginationSelector string   `json:"pagination_selector,omitempty"`
	MaxPages           int      `json:"max_pages"`
	ContentFilters     []string `json:"content_filters,omitempty"`
	RequiredElements   []string `json:"required_elements,omitempty"`
	BlockedKeywords    []string `json:"blocked_keywords,omitempty"`

	Active        bool       `json:"is_active"`
	LastSuccessAt *time.Time `json:"last_successful_scrape,omitempty"`
	FailureCount  int        `json:"failure_count"`

	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FetchRequest captures everything a strategy needs to fetch one URL.
type FetchRequest struct {
	URL       string
	Headers   map[string]string
	Cookies   map[string]string
	Proxy     string
	UserAgent string
	Timeout   time.Duration
	// WaitForSelector is honored by browser strategies only: block until the
	// selector is present or the timeout elapses, whichever comes first.
	WaitForSelector string
}

// FetchResponse is the raw transport outcome returned by a strategy. Browser
// strategies report StatusCode 200 when the transport offers no real HTTP
// status; callers must not read it as the navigation's original code.
type FetchResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Headers     http.Header
	Duration    time.Duration
}

// JobStats aggregates job counts for the statistics endpoint.
type JobStats struct {
	TotalJobs    int            `json:"total_jobs"`
	StatusCounts map[string]int `json:"status_counts"`
	MethodCounts map[string]int `json:"method_counts"`
	RecentJobs   int            `json:"recent_jobs_24h"`
	TotalResults int            `json:"total_scraped_items"`
}

// ResultSummary aggregates per-job result statistics.
type ResultSummary struct {
	JobID            uuid.UUID  `json:"job_id"`
	TotalItems       int        `json:"total_items"`
	AvgContentLength float64    `json:"avg_content_length"`
	TotalWords       int        `json:"total_words"`
	UniqueDomains    int        `json:"unique_domains"`
	FirstScrapedAt   *time.Time `json:"first_scraped_at,omitempty"`
	LastScrapedAt    *time.Time `json:"last_scraped_at,omitempty"`
}
