package postgres

import (
	"context"
	"fmt"
)

// schema is applied on startup. Statements are idempotent so repeated boots
// are safe without a migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS scrape_jobs (
	id UUID PRIMARY KEY,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	selectors JSONB NOT NULL DEFAULT '{}',
	headers JSONB NOT NULL DEFAULT '{}',
	cookies JSONB NOT NULL DEFAULT '{}',
	proxy TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	timeout_ms BIGINT NOT NULL DEFAULT 0,
	delay_ms BIGINT NOT NULL DEFAULT 0,
	max_retries INT NOT NULL DEFAULT 3,
	retry_count INT NOT NULL DEFAULT 0,
	result_count INT NOT NULL DEFAULT 0,
	error_text TEXT NOT NULL DEFAULT '',
	is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
	cron_expr TEXT NOT NULL DEFAULT '',
	next_run_at TIMESTAMPTZ,
	policy_id UUID,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status ON scrape_jobs (status);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_created_at ON scrape_jobs (created_at);

CREATE TABLE IF NOT EXISTS scraped_results (
	id UUID PRIMARY KEY,
	job_id UUID NOT NULL REFERENCES scrape_jobs (id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	raw_html TEXT NOT NULL DEFAULT '',
	structured_data JSONB,
	content_type TEXT NOT NULL DEFAULT '',
	content_length INT NOT NULL DEFAULT 0,
	status_code INT NOT NULL DEFAULT 0,
	response_headers JSONB NOT NULL DEFAULT '{}',
	word_count INT NOT NULL DEFAULT 0,
	image_count INT NOT NULL DEFAULT 0,
	link_count INT NOT NULL DEFAULT 0,
	scraped_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scraped_results_job_id ON scraped_results (job_id);
CREATE INDEX IF NOT EXISTS idx_scraped_results_created_at ON scraped_results (created_at);

CREATE TABLE IF NOT EXISTS site_policies (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL,
	base_url TEXT NOT NULL DEFAULT '',
	default_method TEXT NOT NULL DEFAULT 'static',
	default_selectors JSONB NOT NULL DEFAULT '{}',
	default_headers JSONB NOT NULL DEFAULT '{}',
	default_cookies JSONB NOT NULL DEFAULT '{}',
	rate_limit_delay_ms BIGINT NOT NULL DEFAULT 0,
	max_concurrent INT NOT NULL DEFAULT 0,
	respect_robots BOOLEAN NOT NULL DEFAULT TRUE,
	requires_js BOOLEAN NOT NULL DEFAULT FALSE,
	wait_for_selector TEXT NOT NULL DEFAULT '',
	page_load_timeout_ms BIGINT NOT NULL DEFAULT 0,
	needs_proxy BOOLEAN NOT NULL DEFAULT FALSE,
	rotate_user_agents BOOLEAN NOT NULL DEFAULT FALSE,
	user_agents JSONB NOT NULL DEFAULT '[]',
	pagination_selector TEXT NOT NULL DEFAULT '',
	max_pages INT NOT NULL DEFAULT 0,
	content_filters JSONB NOT NULL DEFAULT '[]',
	required_elements JSONB NOT NULL DEFAULT '[]',
	blocked_keywords JSONB NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_success_at TIMESTAMPTZ,
	failure_count INT NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_site_policies_name ON site_policies (name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_site_policies_domain ON site_policies (domain);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
