package postgres

import (
	"context"
	"fmt"
	"time"
)

// DeleteResultsOlderThan removes scraped results created before the cutoff.
func (s *Store) DeleteResultsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scraped_results WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCompletedJobsOlderThan removes completed jobs whose run finished
// before the cutoff. Their results go first so the sweep never orphans rows.
func (s *Store) DeleteCompletedJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin retention sweep: %w", err)
	}
	defer rollback(ctx, tx)

	_, err = tx.Exec(ctx, `
		DELETE FROM scraped_results
		WHERE job_id IN (
			SELECT id FROM scrape_jobs
			WHERE status = 'completed' AND completed_at < $1
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged job results: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM scrape_jobs
		WHERE status = 'completed' AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit retention sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
