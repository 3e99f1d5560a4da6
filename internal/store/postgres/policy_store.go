package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

const policyColumns = `id, name, domain, base_url, default_method,
default_selectors, default_headers, default_cookies,
rate_limit_delay_ms, max_concurrent, respect_robots, requires_js,
wait_for_selector, page_load_timeout_ms, needs_proxy, rotate_user_agents,
user_agents, pagination_selector, max_pages, content_filters,
required_elements, blocked_keywords, active, last_success_at,
failure_count, description, notes, created_at, updated_at`

// CreatePolicy inserts a new site policy. Name and domain collisions surface
// as ConflictError.
func (s *Store) CreatePolicy(ctx context.Context, policy *scraper.SitePolicy) error {
	cols, err := policyArgs(policy)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO site_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	if _, err := s.pool.Exec(ctx, query, cols...); err != nil {
		return translateErr(err, "policy", policy.ID.String())
	}
	return nil
}

// GetPolicy fetches one policy by id.
func (s *Store) GetPolicy(ctx context.Context, id uuid.UUID) (scraper.SitePolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM site_policies WHERE id = $1`
	pol, err := scanPolicy(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return scraper.SitePolicy{}, translateErr(err, "policy", id.String())
	}
	return pol, nil
}

// GetPolicyByDomain fetches the policy registered for a domain.
func (s *Store) GetPolicyByDomain(ctx context.Context, domain string) (scraper.SitePolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM site_policies WHERE domain = $1`
	pol, err := scanPolicy(s.pool.QueryRow(ctx, query, domain))
	if err != nil {
		return scraper.SitePolicy{}, translateErr(err, "policy", domain)
	}
	return pol, nil
}

// ListPolicies returns a page of policies plus the total matching count.
func (s *Store) ListPolicies(ctx context.Context, domain string, activeOnly bool, offset, limit int) ([]scraper.SitePolicy, int, error) {
	var conds []string
	var args []any
	if domain != "" {
		args = append(args, "%"+domain+"%")
		conds = append(conds, fmt.Sprintf("domain ILIKE $%d", len(args)))
	}
	if activeOnly {
		conds = append(conds, "active = TRUE")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM site_policies`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT `+policyColumns+` FROM site_policies%s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []scraper.SitePolicy
	for rows.Next() {
		pol, err := scanPolicy(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, pol)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, total, nil
}

// UpdatePolicy rewrites the policy row. Collisions surface as ConflictError.
func (s *Store) UpdatePolicy(ctx context.Context, policy *scraper.SitePolicy) error {
	cols, err := policyArgs(policy)
	if err != nil {
		return err
	}
	query := `
		UPDATE site_policies SET
			name = $2, domain = $3, base_url = $4, default_method = $5,
			default_selectors = $6, default_headers = $7, default_cookies = $8,
			rate_limit_delay_ms = $9, max_concurrent = $10, respect_robots = $11,
			requires_js = $12, wait_for_selector = $13, page_load_timeout_ms = $14,
			needs_proxy = $15, rotate_user_agents = $16, user_agents = $17,
			pagination_selector = $18, max_pages = $19, content_filters = $20,
			required_elements = $21, blocked_keywords = $22, active = $23,
			last_success_at = $24, failure_count = $25, description = $26,
			notes = $27, updated_at = $28
		WHERE id = $1
	`
	// Drop created_at; it is immutable after insert.
	args := append(cols[:27:27], cols[28])
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return translateErr(err, "policy", policy.ID.String())
	}
	if tag.RowsAffected() == 0 {
		return &scraper.NotFoundError{Entity: "policy", ID: policy.ID.String()}
	}
	return nil
}

// DeletePolicy removes a policy. Jobs referencing it keep their policy_id;
// execution treats a missing policy as a failure at resolve time.
func (s *Store) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM site_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &scraper.NotFoundError{Entity: "policy", ID: id.String()}
	}
	return nil
}

// policyArgs flattens a policy into positional args matching policyColumns.
func policyArgs(p *scraper.SitePolicy) ([]any, error) {
	selectors, err := marshalMap(p.DefaultSelectors)
	if err != nil {
		return nil, err
	}
	headers, err := marshalMap(p.DefaultHeaders)
	if err != nil {
		return nil, err
	}
	cookies, err := marshalMap(p.DefaultCookies)
	if err != nil {
		return nil, err
	}
	agents, err := marshalStrings(p.UserAgents)
	if err != nil {
		return nil, err
	}
	filters, err := marshalStrings(p.ContentFilters)
	if err != nil {
		return nil, err
	}
	required, err := marshalStrings(p.RequiredElements)
	if err != nil {
		return nil, err
	}
	blocked, err := marshalStrings(p.BlockedKeywords)
	if err != nil {
		return nil, err
	}

	return []any{
		p.ID, p.Name, p.Domain, p.BaseURL, string(p.DefaultMethod),
		selectors, headers, cookies,
		millis(p.RateLimitDelay), p.MaxConcurrent, p.RespectRobots, p.RequiresJS,
		p.WaitForSelector, millis(p.PageLoadTimeout), p.NeedsProxy, p.RotateUserAgents,
		agents, p.PaginationSelector, p.MaxPages, filters,
		required, blocked, p.Active, p.LastSuccessAt,
		p.FailureCount, p.Description, p.Notes, p.CreatedAt, p.UpdatedAt,
	}, nil
}

func scanPolicy(row rowScanner) (scraper.SitePolicy, error) {
	var (
		pol                                scraper.SitePolicy
		method                             string
		selectors, headers, cookies        []byte
		agents, filters, required, blocked []byte
		delayMS, timeoutMS                 int64
	)
	err := row.Scan(
		&pol.ID, &pol.Name, &pol.Domain, &pol.BaseURL, &method,
		&selectors, &headers, &cookies,
		&delayMS, &pol.MaxConcurrent, &pol.RespectRobots, &pol.RequiresJS,
		&pol.WaitForSelector, &timeoutMS, &pol.NeedsProxy, &pol.RotateUserAgents,
		&agents, &pol.PaginationSelector, &pol.MaxPages, &filters,
		&required, &blocked, &pol.Active, &pol.LastSuccessAt,
		&pol.FailureCount, &pol.Description, &pol.Notes, &pol.CreatedAt, &pol.UpdatedAt,
	)
	if err != nil {
		return scraper.SitePolicy{}, err
	}
	pol.DefaultMethod = scraper.FetchMethod(method)
	pol.RateLimitDelay = fromMillis(delayMS)
	pol.PageLoadTimeout = fromMillis(timeoutMS)
	if pol.DefaultSelectors, err = unmarshalMap(selectors); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.DefaultHeaders, err = unmarshalMap(headers); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.DefaultCookies, err = unmarshalMap(cookies); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.UserAgents, err = unmarshalStrings(agents); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.ContentFilters, err = unmarshalStrings(filters); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.RequiredElements, err = unmarshalStrings(required); err != nil {
		return scraper.SitePolicy{}, err
	}
	if pol.BlockedKeywords, err = unmarshalStrings(blocked); err != nil {
		return scraper.SitePolicy{}, err
	}
	return pol, nil
}
