package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/scraper"
	"github.com/pageharvest/pageharvest/internal/worker"
)

type jobRequest struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Selectors      map[string]string `json:"selectors"`
	Headers        map[string]string `json:"headers"`
	Cookies        map[string]string `json:"cookies"`
	Proxy          string            `json:"proxy"`
	UserAgent      string            `json:"user_agent"`
	TimeoutSeconds *int              `json:"timeout_seconds"`
	DelaySeconds   *int              `json:"delay_seconds"`
	MaxRetries     *int              `json:"max_retries"`
	IsRecurring    *bool             `json:"is_recurring"`
	CronExpr       string            `json:"cron_expression"`
	PolicyID       *uuid.UUID        `json:"policy_id"`
}

// createJob handles POST /v1/jobs.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, err := s.ids.NewRawID()
	if err != nil {
		s.writeDomainError(w, err, "failed to generate job id")
		return
	}
	now := s.clock.Now()
	job := scraper.Job{
		ID:         id,
		URL:        req.URL,
		Method:     scraper.MethodStatic,
		Status:     scraper.JobStatusPending,
		Selectors:  req.Selectors,
		Headers:    req.Headers,
		Cookies:    req.Cookies,
		Proxy:      req.Proxy,
		UserAgent:  req.UserAgent,
		Timeout:    s.cfg.FetchTimeout(),
		MaxRetries: 3,
		CronExpr:   req.CronExpr,
		PolicyID:   req.PolicyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Method != "" {
		job.Method = scraper.FetchMethod(req.Method)
	}
	if req.TimeoutSeconds != nil {
		job.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	if req.DelaySeconds != nil {
		job.Delay = time.Duration(*req.DelaySeconds) * time.Second
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}
	if req.IsRecurring != nil {
		job.IsRecurring = *req.IsRecurring
	}
	if job.IsRecurring {
		if next, err := job.NextRun(now); err == nil {
			job.NextRunAt = &next
		}
	}
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobs.CreateJob(r.Context(), &job); err != nil {
		s.writeDomainError(w, err, "failed to create job")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job": toJobDTO(job)})
}

// listJobs handles GET /v1/jobs?page=&size=&status=&method=.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := scraper.JobFilter{
		Status: scraper.JobStatus(r.URL.Query().Get("status")),
		Method: scraper.FetchMethod(r.URL.Query().Get("method")),
		Offset: offset,
		Limit:  limit,
	}
	jobs, total, err := s.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  toJobDTOs(jobs),
		"total": total,
	})
}

// getJob handles GET /v1/jobs/{job_id}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(job)})
}

// updateJob handles PUT /v1/jobs/{job_id}. Only pending jobs are editable.
func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load job")
		return
	}
	if job.Status != scraper.JobStatusPending {
		s.writeDomainError(w, &scraper.InvalidStateError{
			JobID: job.ID, Status: job.Status, Want: scraper.JobStatusPending,
		}, "")
		return
	}

	if req.URL != "" {
		job.URL = req.URL
	}
	if req.Method != "" {
		job.Method = scraper.FetchMethod(req.Method)
	}
	if req.Selectors != nil {
		job.Selectors = req.Selectors
	}
	if req.Headers != nil {
		job.Headers = req.Headers
	}
	if req.Cookies != nil {
		job.Cookies = req.Cookies
	}
	if req.Proxy != "" {
		job.Proxy = req.Proxy
	}
	if req.UserAgent != "" {
		job.UserAgent = req.UserAgent
	}
	if req.TimeoutSeconds != nil {
		job.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	if req.DelaySeconds != nil {
		job.Delay = time.Duration(*req.DelaySeconds) * time.Second
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}
	if req.IsRecurring != nil {
		job.IsRecurring = *req.IsRecurring
	}
	if req.CronExpr != "" {
		job.CronExpr = req.CronExpr
	}
	if req.PolicyID != nil {
		job.PolicyID = req.PolicyID
	}
	job.UpdatedAt = s.clock.Now()

	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobs.UpdateJob(r.Context(), &job); err != nil {
		s.writeDomainError(w, err, "failed to update job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(job)})
}

// deleteJob handles DELETE /v1/jobs/{job_id}. Results go with it.
func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobs.DeleteJob(r.Context(), id); err != nil {
		s.writeDomainError(w, err, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// executeJob handles POST /v1/jobs/{job_id}/execute. The job runs inline and
// the final state comes back with the response.
func (s *Server) executeJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.executor.Execute(r.Context(), id)
	if err != nil {
		status := errStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("job execution failed", zap.Error(err))
			writeError(w, status, "job execution failed")
			return
		}
		writeJSON(w, status, map[string]any{
			"error": err.Error(),
			"job":   toJobDTO(job),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(job)})
}

// enqueueJob handles POST /v1/jobs/{job_id}/enqueue. The job is queued for a
// worker; the task id lets the caller poll progress.
func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load job")
		return
	}
	if job.Status != scraper.JobStatusPending {
		s.writeDomainError(w, &scraper.InvalidStateError{
			JobID: job.ID, Status: job.Status, Want: scraper.JobStatusPending,
		}, "")
		return
	}

	taskID, err := s.ids.NewRawID()
	if err != nil {
		s.writeDomainError(w, err, "failed to generate task id")
		return
	}
	task := worker.Task{ID: taskID, Kind: worker.TaskExecute, JobID: job.ID}
	if !s.queue.TryEnqueue(task) {
		writeError(w, http.StatusServiceUnavailable, "queue is full")
		return
	}
	s.tracker.Set(worker.Progress{TaskID: taskID, Total: 1, Status: worker.ProgressQueued})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"job_id":  job.ID,
	})
}

// listPendingJobs handles GET /v1/jobs/pending.
func (s *Server) listPendingJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.PendingJobs(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to list pending jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobDTOs(jobs)})
}

// listRetryableJobs handles GET /v1/jobs/retryable.
func (s *Server) listRetryableJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.RetryableJobs(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to list retryable jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobDTOs(jobs)})
}

// jobStats handles GET /v1/jobs/stats.
func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.JobStats(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to load job stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
