// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/jobs for job CRUD, synchronous execution, and background enqueue.
//   - /v1/policies for site policy CRUD, activation toggling, and live tests.
//   - /v1/results for scraped content retrieval, analysis, and export.
//   - POST /v1/scrape/bulk for multi-URL sweeps with pollable progress.
package api
