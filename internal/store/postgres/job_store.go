package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

const jobColumns = `id, url, method, status, selectors, headers, cookies, proxy, user_agent,
timeout_ms, delay_ms, max_retries, retry_count, result_count, error_text,
is_recurring, cron_expr, next_run_at, policy_id, created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new job row. Timestamps are taken from the struct.
func (s *Store) CreateJob(ctx context.Context, job *scraper.Job) error {
	selectors, err := marshalMap(job.Selectors)
	if err != nil {
		return err
	}
	headers, err := marshalMap(job.Headers)
	if err != nil {
		return err
	}
	cookies, err := marshalMap(job.Cookies)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scrape_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err = s.pool.Exec(ctx, query,
		job.ID, job.URL, string(job.Method), string(job.Status),
		selectors, headers, cookies, job.Proxy, job.UserAgent,
		millis(job.Timeout), millis(job.Delay),
		job.MaxRetries, job.RetryCount, job.ResultCount, job.ErrorText,
		job.IsRecurring, job.CronExpr, job.NextRunAt, job.PolicyID,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", translateErr(err, "job", job.ID.String()))
	}
	return nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (scraper.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return scraper.Job{}, translateErr(err, "job", id.String())
	}
	return job, nil
}

// ListJobs returns a page of jobs plus the total count matching the filter.
func (s *Store) ListJobs(ctx context.Context, filter scraper.JobFilter) ([]scraper.Job, int, error) {
	where, args := jobFilterClause(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM scrape_jobs` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT `+jobColumns+` FROM scrape_jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func jobFilterClause(filter scraper.JobFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Method != "" {
		args = append(args, string(filter.Method))
		conds = append(conds, fmt.Sprintf("method = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateJob rewrites the mutable job fields.
func (s *Store) UpdateJob(ctx context.Context, job *scraper.Job) error {
	selectors, err := marshalMap(job.Selectors)
	if err != nil {
		return err
	}
	headers, err := marshalMap(job.Headers)
	if err != nil {
		return err
	}
	cookies, err := marshalMap(job.Cookies)
	if err != nil {
		return err
	}

	query := `
		UPDATE scrape_jobs SET
			url = $2, method = $3, status = $4, selectors = $5, headers = $6,
			cookies = $7, proxy = $8, user_agent = $9, timeout_ms = $10,
			delay_ms = $11, max_retries = $12, retry_count = $13,
			result_count = $14, error_text = $15, is_recurring = $16,
			cron_expr = $17, next_run_at = $18, policy_id = $19,
			updated_at = $20, started_at = $21, completed_at = $22
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, job.URL, string(job.Method), string(job.Status),
		selectors, headers, cookies, job.Proxy, job.UserAgent,
		millis(job.Timeout), millis(job.Delay),
		job.MaxRetries, job.RetryCount, job.ResultCount, job.ErrorText,
		job.IsRecurring, job.CronExpr, job.NextRunAt, job.PolicyID,
		job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &scraper.NotFoundError{Entity: "job", ID: job.ID.String()}
	}
	return nil
}

// DeleteJob removes the job and its results in one transaction.
func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete job: %w", err)
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `DELETE FROM scraped_results WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("delete job results: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM scrape_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &scraper.NotFoundError{Entity: "job", ID: id.String()}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete job: %w", err)
	}
	return nil
}

// PendingJobs returns jobs awaiting execution, oldest first.
func (s *Store) PendingJobs(ctx context.Context) ([]scraper.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE status = 'pending' ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// RetryableJobs returns failed jobs that still have retry budget.
func (s *Store) RetryableJobs(ctx context.Context) ([]scraper.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs
		WHERE status = 'failed' AND retry_count < max_retries
		ORDER BY updated_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list retryable jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// JobStats aggregates job and result counts.
func (s *Store) JobStats(ctx context.Context) (scraper.JobStats, error) {
	stats := scraper.JobStats{
		StatusCounts: map[string]int{},
		MethodCounts: map[string]int{},
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM scrape_jobs GROUP BY status`)
	if err != nil {
		return scraper.JobStats{}, fmt.Errorf("count jobs by status: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return scraper.JobStats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.StatusCounts[status] = n
		stats.TotalJobs += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return scraper.JobStats{}, fmt.Errorf("count jobs by status: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT method, COUNT(*) FROM scrape_jobs GROUP BY method`)
	if err != nil {
		return scraper.JobStats{}, fmt.Errorf("count jobs by method: %w", err)
	}
	for rows.Next() {
		var method string
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			rows.Close()
			return scraper.JobStats{}, fmt.Errorf("scan method count: %w", err)
		}
		stats.MethodCounts[method] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return scraper.JobStats{}, fmt.Errorf("count jobs by method: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scrape_jobs WHERE created_at >= NOW() - INTERVAL '24 hours'`,
	).Scan(&stats.RecentJobs)
	if err != nil {
		return scraper.JobStats{}, fmt.Errorf("count recent jobs: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scraped_results`).Scan(&stats.TotalResults)
	if err != nil {
		return scraper.JobStats{}, fmt.Errorf("count results: %w", err)
	}

	return stats, nil
}

// MarkRunning transitions a pending job to running and stamps its start time.
func (s *Store) MarkRunning(ctx context.Context, job *scraper.Job) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := s.pool.Exec(ctx, query, job.ID, string(scraper.JobStatusRunning), job.StartedAt)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or another worker grabbed it.
		return &scraper.InvalidStateError{JobID: job.ID, Status: job.Status, Want: scraper.JobStatusPending}
	}
	return nil
}

// CompleteJob persists the result, marks the job completed, and stamps the
// linked policy's success state, all in one transaction.
func (s *Store) CompleteJob(ctx context.Context, job *scraper.Job, result *scraper.ScrapedResult) error {
	structured, err := marshalAny(result.StructuredData)
	if err != nil {
		return err
	}
	respHeaders, err := marshalHeader(result.ResponseHeaders)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete job: %w", err)
	}
	defer rollback(ctx, tx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scraped_results (
			id, job_id, url, title, content, raw_html, structured_data,
			content_type, content_length, status_code, response_headers,
			word_count, image_count, link_count, scraped_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		result.ID, result.JobID, result.URL, result.Title, result.Content,
		result.RawHTML, structured, result.ContentType, result.ContentLength,
		result.StatusCode, respHeaders, result.WordCount, result.ImageCount,
		result.LinkCount, result.ScrapedAt, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE scrape_jobs
		SET status = $2, completed_at = $3, updated_at = $3,
			result_count = $4, error_text = '', next_run_at = $5
		WHERE id = $1
	`, job.ID, string(scraper.JobStatusCompleted), job.CompletedAt, job.ResultCount, job.NextRunAt)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	if job.PolicyID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE site_policies
			SET failure_count = 0, last_success_at = $2, updated_at = $2
			WHERE id = $1
		`, *job.PolicyID, completionTime(job))
		if err != nil {
			return fmt.Errorf("stamp policy success: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit complete job: %w", err)
	}
	return nil
}

// FailJob marks the job failed and bumps the linked policy's failure counter,
// all in one transaction.
func (s *Store) FailJob(ctx context.Context, job *scraper.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fail job: %w", err)
	}
	defer rollback(ctx, tx)

	_, err = tx.Exec(ctx, `
		UPDATE scrape_jobs
		SET status = $2, completed_at = $3, updated_at = $3,
			error_text = $4, retry_count = $5
		WHERE id = $1
	`, job.ID, string(scraper.JobStatusFailed), job.CompletedAt, job.ErrorText, job.RetryCount)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}

	if job.PolicyID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE site_policies
			SET failure_count = failure_count + 1, updated_at = $2
			WHERE id = $1
		`, *job.PolicyID, completionTime(job))
		if err != nil {
			return fmt.Errorf("bump policy failure count: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fail job: %w", err)
	}
	return nil
}

func completionTime(job *scraper.Job) time.Time {
	if job.CompletedAt != nil {
		return *job.CompletedAt
	}
	return time.Now().UTC()
}

func scanJob(row rowScanner) (scraper.Job, error) {
	var (
		job                          scraper.Job
		method, status               string
		selectors, headers, cookies  []byte
		timeoutMS, delayMS           int64
	)
	err := row.Scan(
		&job.ID, &job.URL, &method, &status, &selectors, &headers, &cookies,
		&job.Proxy, &job.UserAgent, &timeoutMS, &delayMS,
		&job.MaxRetries, &job.RetryCount, &job.ResultCount, &job.ErrorText,
		&job.IsRecurring, &job.CronExpr, &job.NextRunAt, &job.PolicyID,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return scraper.Job{}, err
	}
	job.Method = scraper.FetchMethod(method)
	job.Status = scraper.JobStatus(status)
	job.Timeout = fromMillis(timeoutMS)
	job.Delay = fromMillis(delayMS)
	if job.Selectors, err = unmarshalMap(selectors); err != nil {
		return scraper.Job{}, err
	}
	if job.Headers, err = unmarshalMap(headers); err != nil {
		return scraper.Job{}, err
	}
	if job.Cookies, err = unmarshalMap(cookies); err != nil {
		return scraper.Job{}, err
	}
	return job, nil
}

func collectJobs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]scraper.Job, error) {
	var jobs []scraper.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
