package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/config"
	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/policy"
	"github.com/pageharvest/pageharvest/internal/scraper"
	"github.com/pageharvest/pageharvest/internal/worker"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Executor runs one job synchronously through its state machine.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) (scraper.Job, error)
}

// ReadyChecker reports downstream readiness for /readyz.
type ReadyChecker func(ctx context.Context) error

// Server wires HTTP handlers to the stores, the executor, and the worker queue.
type Server struct {
	router   chi.Router
	jobs     scraper.JobStore
	results  scraper.ResultStore
	policies scraper.PolicyStore
	executor Executor
	queue    *worker.Queue
	tracker  *worker.Tracker
	tester   *policy.Tester
	ids      scraper.IDGenerator
	clock    scraper.Clock
	cfg      config.Config
	logger   *zap.Logger
	ready    ReadyChecker
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs scraper.JobStore,
	results scraper.ResultStore,
	policies scraper.PolicyStore,
	executor Executor,
	queue *worker.Queue,
	tracker *worker.Tracker,
	tester *policy.Tester,
	ids scraper.IDGenerator,
	clock scraper.Clock,
	cfg config.Config,
	logger *zap.Logger,
	ready ReadyChecker,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:     jobs,
		results:  results,
		policies: policies,
		executor: executor,
		queue:    queue,
		tracker:  tracker,
		tester:   tester,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		ready:    ready,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.createJob)
			r.Get("/", s.listJobs)
			r.Get("/pending", s.listPendingJobs)
			r.Get("/retryable", s.listRetryableJobs)
			r.Get("/stats", s.jobStats)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Put("/", s.updateJob)
				r.Delete("/", s.deleteJob)
				r.Post("/execute", s.executeJob)
				r.Post("/enqueue", s.enqueueJob)
			})
		})
		r.Route("/policies", func(r chi.Router) {
			r.Post("/", s.createPolicy)
			r.Get("/", s.listPolicies)
			r.Get("/domain/{domain}", s.getPolicyByDomain)
			r.Route("/{policy_id}", func(r chi.Router) {
				r.Get("/", s.getPolicy)
				r.Put("/", s.updatePolicy)
				r.Delete("/", s.deletePolicy)
				r.Post("/toggle", s.togglePolicy)
				r.Post("/test", s.testPolicy)
			})
		})
		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.listResults)
			r.Get("/job/{job_id}/summary", s.resultSummary)
			r.Get("/export/job/{job_id}", s.exportResults)
			r.Route("/{result_id}", func(r chi.Router) {
				r.Get("/", s.getResult)
				r.Delete("/", s.deleteResult)
				r.Get("/content", s.resultContent)
				r.Get("/analyze", s.analyzeResult)
			})
		})
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/quick", s.quickScrape)
			r.Post("/analyze", s.analyzeContent)
			r.Get("/links", s.extractLinks)
			r.Get("/images", s.extractImages)
			r.Get("/validate", s.validateURL)
			r.Get("/methods", s.supportedMethods)
			r.Post("/bulk", s.bulkScrape)
			r.Get("/bulk/{task_id}", s.bulkProgress)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// errStatus maps domain errors onto HTTP status codes. Execution failures
// (fetch, extract) report 400: state was persisted, the target is the problem.
func errStatus(err error) int {
	switch {
	case scraper.IsNotFound(err):
		return http.StatusNotFound
	case scraper.IsConflict(err), scraper.IsInvalidState(err):
		return http.StatusConflict
	default:
	}
	var fetchErr *scraper.FetchError
	var extractErr *scraper.ExtractionError
	if errors.As(err, &fetchErr) || errors.As(err, &extractErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	status := errStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(fallback, zap.Error(err))
		msg = fallback
	}
	writeError(w, status, msg)
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parsePage reads ?page=&size= one-based pagination into offset/limit.
func parsePage(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	page := 1
	size := defaultPageSize
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", raw)
		}
	}
	if raw := q.Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			return 0, 0, fmt.Errorf("invalid size %q", raw)
		}
	}
	return (page - 1) * size, size, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
