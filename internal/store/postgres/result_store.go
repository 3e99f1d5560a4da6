package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

const resultColumns = `id, job_id, url, title, content, raw_html, structured_data,
content_type, content_length, status_code, response_headers,
word_count, image_count, link_count, scraped_at, created_at`

// GetResult fetches one scraped result by id.
func (s *Store) GetResult(ctx context.Context, id uuid.UUID) (scraper.ScrapedResult, error) {
	query := `SELECT ` + resultColumns + ` FROM scraped_results WHERE id = $1`
	res, err := scanResult(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return scraper.ScrapedResult{}, translateErr(err, "result", id.String())
	}
	return res, nil
}

// ListResults returns a page of results plus the total count matching the filter.
func (s *Store) ListResults(ctx context.Context, filter scraper.ResultFilter) ([]scraper.ScrapedResult, int, error) {
	where, args := resultFilterClause(filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scraped_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT `+resultColumns+` FROM scraped_results%s ORDER BY scraped_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results, err := collectResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func resultFilterClause(filter scraper.ResultFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		conds = append(conds, fmt.Sprintf("job_id = $%d", len(args)))
	}
	if filter.URLContains != "" {
		args = append(args, "%"+filter.URLContains+"%")
		conds = append(conds, fmt.Sprintf("url ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// DeleteResult removes one scraped result.
func (s *Store) DeleteResult(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scraped_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &scraper.NotFoundError{Entity: "result", ID: id.String()}
	}
	return nil
}

// ResultsForJob returns every result belonging to a job, oldest first.
func (s *Store) ResultsForJob(ctx context.Context, jobID uuid.UUID) ([]scraper.ScrapedResult, error) {
	query := `SELECT ` + resultColumns + ` FROM scraped_results WHERE job_id = $1 ORDER BY scraped_at ASC`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// ResultSummary aggregates a job's results. Unique domains are counted from
// result URLs in process since hostname parsing does not belong in SQL.
func (s *Store) ResultSummary(ctx context.Context, jobID uuid.UUID) (scraper.ResultSummary, error) {
	summary := scraper.ResultSummary{JobID: jobID}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(content_length), 0), COALESCE(SUM(word_count), 0),
			MIN(scraped_at), MAX(scraped_at)
		FROM scraped_results WHERE job_id = $1
	`, jobID).Scan(
		&summary.TotalItems, &summary.AvgContentLength, &summary.TotalWords,
		&summary.FirstScrapedAt, &summary.LastScrapedAt,
	)
	if err != nil {
		return scraper.ResultSummary{}, fmt.Errorf("summarize results: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT url FROM scraped_results WHERE job_id = $1`, jobID)
	if err != nil {
		return scraper.ResultSummary{}, fmt.Errorf("list result urls: %w", err)
	}
	defer rows.Close()

	domains := map[string]struct{}{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return scraper.ResultSummary{}, fmt.Errorf("scan result url: %w", err)
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			domains[strings.ToLower(u.Hostname())] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return scraper.ResultSummary{}, fmt.Errorf("iterate result urls: %w", err)
	}
	summary.UniqueDomains = len(domains)

	return summary, nil
}

func scanResult(row rowScanner) (scraper.ScrapedResult, error) {
	var (
		res                   scraper.ScrapedResult
		structured, headersJS []byte
	)
	err := row.Scan(
		&res.ID, &res.JobID, &res.URL, &res.Title, &res.Content, &res.RawHTML,
		&structured, &res.ContentType, &res.ContentLength, &res.StatusCode,
		&headersJS, &res.WordCount, &res.ImageCount, &res.LinkCount,
		&res.ScrapedAt, &res.CreatedAt,
	)
	if err != nil {
		return scraper.ScrapedResult{}, err
	}
	if res.StructuredData, err = unmarshalAny(structured); err != nil {
		return scraper.ScrapedResult{}, err
	}
	if res.ResponseHeaders, err = unmarshalHeader(headersJS); err != nil {
		return scraper.ScrapedResult{}, err
	}
	return res, nil
}

func collectResults(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]scraper.ScrapedResult, error) {
	var results []scraper.ScrapedResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
