package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FetchStrategy performs one fetch of a URL and returns raw transport
// metadata. Implementations never retry; retry bookkeeping belongs to the
// orchestrator.
type FetchStrategy interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status JobStatus
	Method FetchMethod
	Offset int
	Limit  int
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	JobID       *uuid.UUID
	URLContains string
	Offset      int
	Limit       int
}

// JobStore persists jobs and their execution outcomes.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, int, error)
	UpdateJob(ctx context.Context, job *Job) error
	// DeleteJob removes the job and its results in one transaction.
	DeleteJob(ctx context.Context, id uuid.UUID) error
	PendingJobs(ctx context.Context) ([]Job, error)
	// RetryableJobs returns failed jobs with retry_count < max_retries.
	RetryableJobs(ctx context.Context) ([]Job, error)
	JobStats(ctx context.Context) (JobStats, error)

	// MarkRunning transitions the job to running and stamps its start time.
	MarkRunning(ctx context.Context, job *Job) error
	// CompleteJob persists the result, marks the job completed, and stamps the
	// linked policy's success state, all in one transaction.
	CompleteJob(ctx context.Context, job *Job, result *ScrapedResult) error
	// FailJob marks the job failed, increments its retry counter, and bumps
	// the linked policy's failure counter, all in one transaction.
	FailJob(ctx context.Context, job *Job) error
}

// ResultStore reads and deletes scraped results.
type ResultStore interface {
	GetResult(ctx context.Context, id uuid.UUID) (ScrapedResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]ScrapedResult, int, error)
	DeleteResult(ctx context.Context, id uuid.UUID) error
	ResultSummary(ctx context.Context, jobID uuid.UUID) (ResultSummary, error)
	ResultsForJob(ctx context.Context, jobID uuid.UUID) ([]ScrapedResult, error)
}

// PolicyStore persists site policies. Create and Update surface a
// ConflictError when name or domain would collide.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, policy *SitePolicy) error
	GetPolicy(ctx context.Context, id uuid.UUID) (SitePolicy, error)
	GetPolicyByDomain(ctx context.Context, domain string) (SitePolicy, error)
	ListPolicies(ctx context.Context, domain string, activeOnly bool, offset, limit int) ([]SitePolicy, int, error)
	UpdatePolicy(ctx context.Context, policy *SitePolicy) error
	DeletePolicy(ctx context.Context, id uuid.UUID) error
}

// RetentionStore deletes aged rows for the periodic sweep.
type RetentionStore interface {
	DeleteResultsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCompletedJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Clock returns the current time (swappable for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces entity IDs.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
