package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// jobDTO is the wire shape of a job. Durations travel as whole seconds.
type jobDTO struct {
	ID             uuid.UUID         `json:"id"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Status         string            `json:"status"`
	Selectors      map[string]string `json:"selectors,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Cookies        map[string]string `json:"cookies,omitempty"`
	Proxy          string            `json:"proxy,omitempty"`
	UserAgent      string            `json:"user_agent,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	DelaySeconds   int               `json:"delay_seconds,omitempty"`
	MaxRetries     int               `json:"max_retries"`
	RetryCount     int               `json:"retry_count"`
	ResultCount    int               `json:"result_count"`
	ErrorText      string            `json:"error,omitempty"`
	IsRecurring    bool              `json:"is_recurring"`
	CronExpr       string            `json:"cron_expression,omitempty"`
	NextRunAt      *time.Time        `json:"next_run_at,omitempty"`
	PolicyID       *uuid.UUID        `json:"policy_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func toJobDTO(job scraper.Job) jobDTO {
	return jobDTO{
		ID:             job.ID,
		URL:            job.URL,
		Method:         string(job.Method),
		Status:         string(job.Status),
		Selectors:      job.Selectors,
		Headers:        job.Headers,
		Cookies:        job.Cookies,
		Proxy:          job.Proxy,
		UserAgent:      job.UserAgent,
		TimeoutSeconds: int(job.Timeout / time.Second),
		DelaySeconds:   int(job.Delay / time.Second),
		MaxRetries:     job.MaxRetries,
		RetryCount:     job.RetryCount,
		ResultCount:    job.ResultCount,
		ErrorText:      job.ErrorText,
		IsRecurring:    job.IsRecurring,
		CronExpr:       job.CronExpr,
		NextRunAt:      job.NextRunAt,
		PolicyID:       job.PolicyID,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}

func toJobDTOs(jobs []scraper.Job) []jobDTO {
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	return out
}

// resultDTO carries result metadata. Raw HTML stays behind the /content
// endpoint so listings stay small.
type resultDTO struct {
	ID              uuid.UUID      `json:"id"`
	JobID           uuid.UUID      `json:"job_id"`
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	Content         string         `json:"content,omitempty"`
	StructuredData  map[string]any `json:"structured_data,omitempty"`
	ContentType     string         `json:"content_type,omitempty"`
	ContentLength   int            `json:"content_length"`
	StatusCode      int            `json:"status_code"`
	ResponseHeaders http.Header    `json:"response_headers,omitempty"`
	WordCount       int            `json:"word_count"`
	ImageCount      int            `json:"image_count"`
	LinkCount       int            `json:"link_count"`
	ScrapedAt       time.Time      `json:"scraped_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toResultDTO(res scraper.ScrapedResult) resultDTO {
	return resultDTO{
		ID:              res.ID,
		JobID:           res.JobID,
		URL:             res.URL,
		Title:           res.Title,
		Content:         res.Content,
		StructuredData:  res.StructuredData,
		ContentType:     res.ContentType,
		ContentLength:   res.ContentLength,
		StatusCode:      res.StatusCode,
		ResponseHeaders: res.ResponseHeaders,
		WordCount:       res.WordCount,
		ImageCount:      res.ImageCount,
		LinkCount:       res.LinkCount,
		ScrapedAt:       res.ScrapedAt,
		CreatedAt:       res.CreatedAt,
	}
}

func toResultDTOs(results []scraper.ScrapedResult) []resultDTO {
	out := make([]resultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, toResultDTO(r))
	}
	return out
}

// policyDTO is the wire shape of a site policy.
type policyDTO struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	Domain             string            `json:"domain"`
	BaseURL            string            `json:"base_url"`
	DefaultMethod      string            `json:"default_method"`
	DefaultSelectors   map[string]string `json:"default_selectors,omitempty"`
	DefaultHeaders     map[string]string `json:"default_headers,omitempty"`
	DefaultCookies     map[string]string `json:"default_cookies,omitempty"`
	RateLimitSeconds   float64           `json:"rate_limit_delay_seconds,omitempty"`
	MaxConcurrent      int               `json:"max_concurrent_requests,omitempty"`
	RespectRobots      bool              `json:"respect_robots_txt"`
	RequiresJS         bool              `json:"requires_javascript"`
	WaitForSelector    string            `json:"wait_for_selector,omitempty"`
	PageLoadSeconds    int               `json:"page_load_timeout_seconds,omitempty"`
	NeedsProxy         bool              `json:"needs_proxy"`
	RotateUserAgents   bool              `json:"rotate_user_agents"`
	UserAgents         []string          `json:"user_agents,omitempty"`
	PaginationSelector string            `json:"pagination_selector,omitempty"`
	MaxPages           int               `json:"max_pages,omitempty"`
	ContentFilters     []string          `json:"content_filters,omitempty"`
	RequiredElements   []string          `json:"required_elements,omitempty"`
	BlockedKeywords    []string          `json:"blocked_keywords,omitempty"`
	Active             bool              `json:"active"`
	LastSuccessAt      *time.Time        `json:"last_successful_scrape,omitempty"`
	FailureCount       int               `json:"failure_count"`
	Description        string            `json:"description,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toPolicyDTO(pol scraper.SitePolicy) policyDTO {
	return policyDTO{
		ID:                 pol.ID,
		Name:               pol.Name,
		Domain:             pol.Domain,
		BaseURL:            pol.BaseURL,
		DefaultMethod:      string(pol.DefaultMethod),
		DefaultSelectors:   pol.DefaultSelectors,
		DefaultHeaders:     pol.DefaultHeaders,
		DefaultCookies:     pol.DefaultCookies,
		RateLimitSeconds:   pol.RateLimitDelay.Seconds(),
		MaxConcurrent:      pol.MaxConcurrent,
		RespectRobots:      pol.RespectRobots,
		RequiresJS:         pol.RequiresJS,
		WaitForSelector:    pol.WaitForSelector,
		PageLoadSeconds:    int(pol.PageLoadTimeout / time.Second),
		NeedsProxy:         pol.NeedsProxy,
		RotateUserAgents:   pol.RotateUserAgents,
		UserAgents:         pol.UserAgents,
		PaginationSelector: pol.PaginationSelector,
		MaxPages:           pol.MaxPages,
		ContentFilters:     pol.ContentFilters,
		RequiredElements:   pol.RequiredElements,
		BlockedKeywords:    pol.BlockedKeywords,
		Active:             pol.Active,
		LastSuccessAt:      pol.LastSuccessAt,
		FailureCount:       pol.FailureCount,
		Description:        pol.Description,
		Notes:              pol.Notes,
		CreatedAt:          pol.CreatedAt,
		UpdatedAt:          pol.UpdatedAt,
	}
}

func toPolicyDTOs(policies []scraper.SitePolicy) []policyDTO {
	out := make([]policyDTO, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyDTO(p))
	}
	return out
}
