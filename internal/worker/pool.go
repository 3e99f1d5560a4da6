package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Executor runs one job through its state machine.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) (scraper.Job, error)
}

// Config controls Pool behavior.
type Config struct {
	// Size is the number of concurrent workers.
	Size int
}

// Pool fans queued tasks out to a fixed set of workers.
type Pool struct {
	queue    *Queue
	executor Executor
	jobs     scraper.JobStore
	tracker  *Tracker
	clock    scraper.Clock
	ids      scraper.IDGenerator
	cfg      Config
	logger   *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(
	queue *Queue,
	executor Executor,
	jobs scraper.JobStore,
	tracker *Tracker,
	clock scraper.Clock,
	ids scraper.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:    queue,
		executor: executor,
		jobs:     jobs,
		tracker:  tracker,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			p.logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		p.runTask(ctx, task)
	}
}

func (p *Pool) runTask(ctx context.Context, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	switch task.Kind {
	case TaskExecute:
		p.runExecute(ctx, task)
	case TaskBulk:
		p.runBulk(ctx, task)
	default:
		p.logger.Error("unknown task kind", zap.String("kind", string(task.Kind)))
	}
}

func (p *Pool) runExecute(ctx context.Context, task Task) {
	p.tracker.Set(Progress{TaskID: task.ID, Current: 0, Total: 1, Status: ProgressRunning})

	if _, err := p.executor.Execute(ctx, task.JobID); err != nil {
		p.tracker.Set(Progress{TaskID: task.ID, Current: 1, Total: 1, Status: ProgressFailed, Error: err.Error()})
		p.logger.Warn("queued job failed",
			zap.String("task_id", task.ID.String()),
			zap.String("job_id", task.JobID.String()),
			zap.Error(err),
		)
		return
	}
	p.tracker.Set(Progress{TaskID: task.ID, Current: 1, Total: 1, Status: ProgressCompleted})
}

// runBulk stamps one job per URL from the task's template and executes each
// in turn, publishing {current, total} after every URL. Per-URL failures are
// recorded on their jobs and do not stop the sweep.
func (p *Pool) runBulk(ctx context.Context, task Task) {
	total := len(task.Bulk.URLs)
	p.tracker.Set(Progress{TaskID: task.ID, Current: 0, Total: total, Status: ProgressRunning})

	var failed int
	for i, rawURL := range task.Bulk.URLs {
		if ctx.Err() != nil {
			p.tracker.Set(Progress{
				TaskID: task.ID, Current: i, Total: total,
				Status: ProgressFailed, Error: ctx.Err().Error(),
			})
			return
		}
		if err := p.runBulkURL(ctx, task.Bulk, rawURL); err != nil {
			failed++
			p.logger.Warn("bulk url failed",
				zap.String("task_id", task.ID.String()),
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}
		p.tracker.Set(Progress{TaskID: task.ID, Current: i + 1, Total: total, Status: ProgressRunning})
	}

	final := Progress{TaskID: task.ID, Current: total, Total: total, Status: ProgressCompleted}
	if failed > 0 {
		final.Error = fmt.Sprintf("%d of %d urls failed", failed, total)
	}
	p.tracker.Set(final)
}

func (p *Pool) runBulkURL(ctx context.Context, bulk *BulkRequest, rawURL string) error {
	id, err := p.ids.NewRawID()
	if err != nil {
		return fmt.Errorf("generate job id: %w", err)
	}
	now := p.clock.Now()
	job := scraper.Job{
		ID:         id,
		URL:        rawURL,
		Method:     bulk.Method,
		Status:     scraper.JobStatusPending,
		Selectors:  bulk.Selectors,
		Headers:    bulk.Headers,
		Cookies:    bulk.Cookies,
		UserAgent:  bulk.UserAgent,
		Timeout:    bulk.Timeout,
		MaxRetries: bulk.MaxRetries,
		PolicyID:   bulk.PolicyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid bulk job: %w", err)
	}
	if err := p.jobs.CreateJob(ctx, &job); err != nil {
		return fmt.Errorf("create bulk job: %w", err)
	}
	if _, err := p.executor.Execute(ctx, job.ID); err != nil {
		return err
	}
	return nil
}
