package scraper

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks a job before it is persisted.
func (j *Job) Validate() error {
	if j.URL == "" {
		return fmt.Errorf("job url is required")
	}
	u, err := url.Parse(j.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("job url %q is not absolute", j.URL)
	}
	if !KnownMethod(j.Method) {
		return fmt.Errorf("unsupported fetch method %q", j.Method)
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if j.IsRecurring {
		if j.CronExpr == "" {
			return fmt.Errorf("recurring job requires a cron expression")
		}
		if _, err := cron.ParseStandard(j.CronExpr); err != nil {
			return fmt.Errorf("parse cron expression %q: %w", j.CronExpr, err)
		}
	}
	return nil
}

// NextRun computes the next scheduled run after the given time. It returns an
// error for non-recurring jobs and unparseable expressions.
func (j *Job) NextRun(after time.Time) (time.Time, error) {
	if !j.IsRecurring || j.CronExpr == "" {
		return time.Time{}, fmt.Errorf("job %s is not recurring", j.ID)
	}
	sched, err := cron.ParseStandard(j.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", j.CronExpr, err)
	}
	return sched.Next(after), nil
}

// Validate checks a site policy before it is persisted.
func (p *SitePolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Domain == "" {
		return fmt.Errorf("policy domain is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("policy base_url is required")
	}
	if p.DefaultMethod != "" && !KnownMethod(p.DefaultMethod) {
		return fmt.Errorf("unsupported default method %q", p.DefaultMethod)
	}
	if p.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent_requests must be >= 0")
	}
	return nil
}
