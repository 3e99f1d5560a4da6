package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/extract"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

// listResults handles GET /v1/results?job_id=&url_contains=&page=&size=.
func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := scraper.ResultFilter{
		URLContains: r.URL.Query().Get("url_contains"),
		Offset:      offset,
		Limit:       limit,
	}
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		jobID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job_id %q", raw))
			return
		}
		filter.JobID = &jobID
	}
	results, total, err := s.results.ListResults(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err, "failed to list results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toResultDTOs(results),
		"total":   total,
	})
}

// getResult handles GET /v1/results/{result_id}.
func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "result_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.results.GetResult(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load result")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": toResultDTO(res)})
}

// deleteResult handles DELETE /v1/results/{result_id}.
func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "result_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.results.DeleteResult(r.Context(), id); err != nil {
		s.writeDomainError(w, err, "failed to delete result")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resultContent handles GET /v1/results/{result_id}/content, returning the
// stored raw HTML as-is.
func (s *Server) resultContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "result_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.results.GetResult(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load result")
		return
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write([]byte(res.RawHTML)); err != nil {
		s.logger.Error("write result content failed", zap.Error(err))
	}
}

// analyzeResult handles GET /v1/results/{result_id}/analyze. The extractor
// runs again over the stored HTML, optionally with selectors from the query
// string, without touching the persisted result.
func (s *Server) analyzeResult(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "result_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.results.GetResult(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load result")
		return
	}

	selectors := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			selectors[key] = values[0]
		}
	}

	doc, err := extract.Extract(res.RawHTML, res.URL, selectors)
	if err != nil {
		s.writeDomainError(w, err, "failed to analyze result")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": doc})
}

// resultSummary handles GET /v1/results/job/{job_id}/summary.
func (s *Server) resultSummary(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.results.ResultSummary(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err, "failed to summarize results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// exportResults handles GET /v1/results/export/job/{job_id}?format=json|csv.
func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseUUIDParam(r, "job_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	results, err := s.results.ResultsForJob(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err, "failed to load job results")
		return
	}

	if format == "json" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=results-%s.json", jobID))
		writeJSON(w, http.StatusOK, map[string]any{"results": toResultDTOs(results)})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=results-%s.csv", jobID))
	cw := csv.NewWriter(w)
	header := []string{"id", "url", "title", "status_code", "content_length", "word_count", "image_count", "link_count", "scraped_at"}
	if err := cw.Write(header); err != nil {
		s.logger.Error("write csv header failed", zap.Error(err))
		return
	}
	for _, res := range results {
		record := []string{
			res.ID.String(),
			res.URL,
			res.Title,
			strconv.Itoa(res.StatusCode),
			strconv.Itoa(res.ContentLength),
			strconv.Itoa(res.WordCount),
			strconv.Itoa(res.ImageCount),
			strconv.Itoa(res.LinkCount),
			res.ScrapedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := cw.Write(record); err != nil {
			s.logger.Error("write csv record failed", zap.Error(err))
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("flush csv failed", zap.Error(err))
	}
}
