// Package policy resolves site policies into effective fetch parameters and
// enforces per-domain politeness.
package policy

import (
	"time"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Resolved carries the effective parameters for one job execution after the
// linked site policy's defaults have been merged in.
type Resolved struct {
	Method    scraper.FetchMethod
	Selectors map[string]string
	Request   scraper.FetchRequest
}

// Resolve merges a site policy's defaults into a job's explicit parameters.
// The job's own values always win; for each of headers, selectors, cookies,
// and user-agent that the job leaves unset, the policy default fills in, in
// that field order. When the policy requires JavaScript and the job still
// uses the default static method, the policy's default method takes over.
// A nil policy resolves to the job's own parameters unchanged.
func Resolve(job scraper.Job, pol *scraper.SitePolicy) Resolved {
	res := Resolved{
		Method:    job.Method,
		Selectors: job.Selectors,
		Request: scraper.FetchRequest{
			URL:       job.URL,
			Headers:   job.Headers,
			Cookies:   job.Cookies,
			Proxy:     job.Proxy,
			UserAgent: job.UserAgent,
			Timeout:   job.Timeout,
		},
	}
	if pol == nil {
		return res
	}

	if len(res.Request.Headers) == 0 && len(pol.DefaultHeaders) > 0 {
		res.Request.Headers = pol.DefaultHeaders
	}
	if len(res.Selectors) == 0 && len(pol.DefaultSelectors) > 0 {
		res.Selectors = pol.DefaultSelectors
	}
	if len(res.Request.Cookies) == 0 && len(pol.DefaultCookies) > 0 {
		res.Request.Cookies = pol.DefaultCookies
	}
	if res.Request.UserAgent == "" && len(pol.UserAgents) > 0 {
		res.Request.UserAgent = pol.UserAgents[0]
	}

	if pol.RequiresJS && res.Method == scraper.MethodStatic && scraper.KnownMethod(pol.DefaultMethod) {
		res.Method = pol.DefaultMethod
	}
	if pol.WaitForSelector != "" {
		res.Request.WaitForSelector = pol.WaitForSelector
	}
	if res.Request.Timeout <= 0 && pol.PageLoadTimeout > 0 {
		res.Request.Timeout = pol.PageLoadTimeout
	}
	return res
}

// Politeness reports the advisory rate settings a policy declares.
type Politeness struct {
	Delay         time.Duration
	MaxConcurrent int
}

// PolitenessOf extracts the rate settings from an optional policy.
func PolitenessOf(pol *scraper.SitePolicy) Politeness {
	if pol == nil {
		return Politeness{}
	}
	return Politeness{Delay: pol.RateLimitDelay, MaxConcurrent: pol.MaxConcurrent}
}
