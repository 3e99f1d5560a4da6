package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/internal/scraper"
	"github.com/pageharvest/pageharvest/internal/worker"
)

const maxBulkURLs = 500

type bulkRequest struct {
	URLs           []string          `json:"urls"`
	Method         string            `json:"method"`
	Selectors      map[string]string `json:"selectors"`
	Headers        map[string]string `json:"headers"`
	Cookies        map[string]string `json:"cookies"`
	UserAgent      string            `json:"user_agent"`
	TimeoutSeconds *int              `json:"timeout_seconds"`
	MaxRetries     *int              `json:"max_retries"`
	PolicyID       *uuid.UUID        `json:"policy_id"`
}

// bulkScrape handles POST /v1/scrape/bulk. One job per URL is created and
// executed by the worker pool; the task id lets callers poll progress.
func (s *Server) bulkScrape(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	if len(req.URLs) > maxBulkURLs {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many urls (max %d)", maxBulkURLs))
		return
	}
	for _, raw := range req.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("url %q is not absolute", raw))
			return
		}
	}

	bulk := &worker.BulkRequest{
		URLs:       req.URLs,
		Method:     scraper.MethodStatic,
		Selectors:  req.Selectors,
		Headers:    req.Headers,
		Cookies:    req.Cookies,
		UserAgent:  req.UserAgent,
		Timeout:    s.cfg.FetchTimeout(),
		MaxRetries: 3,
		PolicyID:   req.PolicyID,
	}
	if req.Method != "" {
		if !scraper.KnownMethod(scraper.FetchMethod(req.Method)) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported fetch method %q", req.Method))
			return
		}
		bulk.Method = scraper.FetchMethod(req.Method)
	}
	if req.TimeoutSeconds != nil {
		bulk.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	if req.MaxRetries != nil {
		bulk.MaxRetries = *req.MaxRetries
	}

	taskID, err := s.ids.NewRawID()
	if err != nil {
		s.writeDomainError(w, err, "failed to generate task id")
		return
	}
	task := worker.Task{ID: taskID, Kind: worker.TaskBulk, Bulk: bulk}
	if !s.queue.TryEnqueue(task) {
		writeError(w, http.StatusServiceUnavailable, "queue is full")
		return
	}
	s.tracker.Set(worker.Progress{TaskID: taskID, Total: len(req.URLs), Status: worker.ProgressQueued})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"total":   len(req.URLs),
	})
}

// bulkProgress handles GET /v1/scrape/bulk/{task_id}.
func (s *Server) bulkProgress(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseUUIDParam(r, "task_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	progress, ok := s.tracker.Get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
}
