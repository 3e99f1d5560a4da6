// Package main hosts the pageharvest service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and management endpoints for jobs, site
//     policies, results, and bulk scrape tasks. Requests are validated, normalized into scraper.Job
//     values, and persisted via the JobStore before synchronous execution or enqueueing.
//   - Queue & worker pool: enqueued tasks flow through a bounded in-memory queue sized by
//     config.Worker.QueueDepth and are fanned out to a fixed worker pool sized by
//     config.Worker.Concurrency. Context cancellation stops workers cleanly on shutdown.
//   - Fetch pipeline: the orchestrator resolves the job's site policy, acquires the per-domain
//     limiter, and dispatches to the registered strategy: a Colly-based static fetcher, a Chromedp
//     headless fetcher, or a Rod headless fetcher. Extraction runs goquery over the returned HTML.
//   - Persistence: jobs, results, and site policies live in Postgres via pgx. Completion and failure
//     are transactional so job state, result rows, and policy counters never drift apart.
//   - Retention: a cron-scheduled sweeper prunes aged results and completed jobs and evicts finished
//     progress entries.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured
//     logging; Prometheus metrics are exported via the metrics middleware and /metrics handler.
package main
