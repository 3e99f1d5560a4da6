// Package orchestrator owns the job execution state machine.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/extract"
	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/policy"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Orchestrator executes jobs: it validates preconditions, resolves the linked
// site policy, runs the fetch strategy and extractor, and persists outcomes.
// It holds no in-process lock across executions; all shared-state mutation
// goes through the stores.
type Orchestrator struct {
	jobs     scraper.JobStore
	policies scraper.PolicyStore
	registry *fetch.Registry
	limiter  *policy.DomainLimiter
	clock    scraper.Clock
	ids      scraper.IDGenerator
	logger   *zap.Logger
}

// New constructs an Orchestrator.
func New(
	jobs scraper.JobStore,
	policies scraper.PolicyStore,
	registry *fetch.Registry,
	limiter *policy.DomainLimiter,
	clock scraper.Clock,
	ids scraper.IDGenerator,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		jobs:     jobs,
		policies: policies,
		registry: registry,
		limiter:  limiter,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// Execute runs one job through the state machine. A job may be executed only
// while pending; any other state yields an InvalidStateError with no side
// effects. On failure the job is marked failed with its retry counter bumped
// and the classified error is returned after state is persisted; the
// orchestrator never re-enqueues a retry itself.
func (o *Orchestrator) Execute(ctx context.Context, jobID uuid.UUID) (scraper.Job, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return scraper.Job{}, err
	}
	if job.Status != scraper.JobStatusPending {
		return job, &scraper.InvalidStateError{JobID: job.ID, Status: job.Status, Want: scraper.JobStatusPending}
	}

	started := o.clock.Now()
	job.Status = scraper.JobStatusRunning
	job.StartedAt = &started
	if err := o.jobs.MarkRunning(ctx, &job); err != nil {
		return job, fmt.Errorf("mark job running: %w", err)
	}
	o.logger.Info("job started",
		zap.String("job_id", job.ID.String()),
		zap.String("url", job.URL),
		zap.String("method", string(job.Method)),
	)

	pol, err := o.linkedPolicy(ctx, job)
	if err != nil {
		return o.fail(ctx, job, err)
	}
	resolved := policy.Resolve(job, pol)

	result, execErr := o.fetchAndExtract(ctx, job, pol, resolved)
	if execErr != nil {
		return o.fail(ctx, job, execErr)
	}

	completed := o.clock.Now()
	job.Status = scraper.JobStatusCompleted
	job.CompletedAt = &completed
	job.ResultCount = 1
	job.ErrorText = ""
	if job.IsRecurring {
		if next, err := job.NextRun(completed); err == nil {
			job.NextRunAt = &next
		}
	}
	if err := o.jobs.CompleteJob(ctx, &job, result); err != nil {
		return job, fmt.Errorf("persist job completion: %w", err)
	}
	metrics.ObserveJob(string(scraper.JobStatusCompleted))
	o.logger.Info("job completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("word_count", result.WordCount),
		zap.Int("status_code", result.StatusCode),
	)
	return job, nil
}

func (o *Orchestrator) linkedPolicy(ctx context.Context, job scraper.Job) (*scraper.SitePolicy, error) {
	if job.PolicyID == nil {
		return nil, nil
	}
	pol, err := o.policies.GetPolicy(ctx, *job.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("resolve site policy: %w", err)
	}
	return &pol, nil
}

func (o *Orchestrator) fetchAndExtract(
	ctx context.Context,
	job scraper.Job,
	pol *scraper.SitePolicy,
	resolved policy.Resolved,
) (*scraper.ScrapedResult, error) {
	strategy, err := o.registry.Strategy(resolved.Method)
	if err != nil {
		return nil, err
	}

	if o.limiter != nil && pol != nil {
		release, err := o.limiter.Acquire(ctx, pol.Domain, policy.PolitenessOf(pol))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	resp, err := strategy.Fetch(ctx, resolved.Request)
	metrics.ObserveFetch(string(resolved.Method), resp.StatusCode, resp.Duration)
	if err != nil {
		return nil, err
	}

	doc, err := extract.Extract(string(resp.Body), job.URL, resolved.Selectors)
	if err != nil {
		return nil, err
	}

	id, err := o.ids.NewRawID()
	if err != nil {
		return nil, fmt.Errorf("generate result id: %w", err)
	}
	now := o.clock.Now()
	return &scraper.ScrapedResult{
		ID:              id,
		JobID:           job.ID,
		URL:             job.URL,
		Title:           doc.Title,
		Content:         doc.Content,
		RawHTML:         string(resp.Body),
		StructuredData:  doc.StructuredData,
		ContentType:     resp.ContentType,
		ContentLength:   len(resp.Body),
		StatusCode:      resp.StatusCode,
		ResponseHeaders: resp.Headers,
		WordCount:       doc.WordCount,
		ImageCount:      doc.ImageCount,
		LinkCount:       doc.LinkCount,
		ScrapedAt:       now,
		CreatedAt:       now,
	}, nil
}

// fail persists the failed outcome, then surfaces the original error. A
// persistence failure while recording the outcome wins over the execution
// error because the caller must know state is now unknown.
func (o *Orchestrator) fail(ctx context.Context, job scraper.Job, execErr error) (scraper.Job, error) {
	completed := o.clock.Now()
	job.Status = scraper.JobStatusFailed
	job.CompletedAt = &completed
	job.ErrorText = execErr.Error()
	job.RetryCount++
	if err := o.jobs.FailJob(ctx, &job); err != nil {
		return job, fmt.Errorf("persist job failure (execution error: %v): %w", execErr, err)
	}
	metrics.ObserveJob(string(scraper.JobStatusFailed))
	o.logger.Warn("job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("url", job.URL),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(execErr),
	)
	return job, fmt.Errorf("job execution failed: %w", execErr)
}
