package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

type policyRequest struct {
	Name               string            `json:"name"`
	Domain             string            `json:"domain"`
	BaseURL            string            `json:"base_url"`
	DefaultMethod      string            `json:"default_method"`
	DefaultSelectors   map[string]string `json:"default_selectors"`
	DefaultHeaders     map[string]string `json:"default_headers"`
	DefaultCookies     map[string]string `json:"default_cookies"`
	RateLimitSeconds   *float64          `json:"rate_limit_delay_seconds"`
	MaxConcurrent      *int              `json:"max_concurrent_requests"`
	RespectRobots      *bool             `json:"respect_robots_txt"`
	RequiresJS         *bool             `json:"requires_javascript"`
	WaitForSelector    string            `json:"wait_for_selector"`
	PageLoadSeconds    *int              `json:"page_load_timeout_seconds"`
	NeedsProxy         *bool             `json:"needs_proxy"`
	RotateUserAgents   *bool             `json:"rotate_user_agents"`
	UserAgents         []string          `json:"user_agents"`
	PaginationSelector string            `json:"pagination_selector"`
	MaxPages           *int              `json:"max_pages"`
	ContentFilters     []string          `json:"content_filters"`
	RequiredElements   []string          `json:"required_elements"`
	BlockedKeywords    []string          `json:"blocked_keywords"`
	Active             *bool             `json:"active"`
	Description        string            `json:"description"`
	Notes              string            `json:"notes"`
}

func (req policyRequest) apply(pol *scraper.SitePolicy) {
	if req.Name != "" {
		pol.Name = req.Name
	}
	if req.Domain != "" {
		pol.Domain = req.Domain
	}
	if req.BaseURL != "" {
		pol.BaseURL = req.BaseURL
	}
	if req.DefaultMethod != "" {
		pol.DefaultMethod = scraper.FetchMethod(req.DefaultMethod)
	}
	if req.DefaultSelectors != nil {
		pol.DefaultSelectors = req.DefaultSelectors
	}
	if req.DefaultHeaders != nil {
		pol.DefaultHeaders = req.DefaultHeaders
	}
	if req.DefaultCookies != nil {
		pol.DefaultCookies = req.DefaultCookies
	}
	if req.RateLimitSeconds != nil {
		pol.RateLimitDelay = time.Duration(*req.RateLimitSeconds * float64(time.Second))
	}
	if req.MaxConcurrent != nil {
		pol.MaxConcurrent = *req.MaxConcurrent
	}
	if req.RespectRobots != nil {
		pol.RespectRobots = *req.RespectRobots
	}
	if req.RequiresJS != nil {
		pol.RequiresJS = *req.RequiresJS
	}
	if req.WaitForSelector != "" {
		pol.WaitForSelector = req.WaitForSelector
	}
	if req.PageLoadSeconds != nil {
		pol.PageLoadTimeout = time.Duration(*req.PageLoadSeconds) * time.Second
	}
	if req.NeedsProxy != nil {
		pol.NeedsProxy = *req.NeedsProxy
	}
	if req.RotateUserAgents != nil {
		pol.RotateUserAgents = *req.RotateUserAgents
	}
	if req.UserAgents != nil {
		pol.UserAgents = req.UserAgents
	}
	if req.PaginationSelector != "" {
		pol.PaginationSelector = req.PaginationSelector
	}
	if req.MaxPages != nil {
		pol.MaxPages = *req.MaxPages
	}
	if req.ContentFilters != nil {
		pol.ContentFilters = req.ContentFilters
	}
	if req.RequiredElements != nil {
		pol.RequiredElements = req.RequiredElements
	}
	if req.BlockedKeywords != nil {
		pol.BlockedKeywords = req.BlockedKeywords
	}
	if req.Active != nil {
		pol.Active = *req.Active
	}
	if req.Description != "" {
		pol.Description = req.Description
	}
	if req.Notes != "" {
		pol.Notes = req.Notes
	}
}

// createPolicy handles POST /v1/policies.
func (s *Server) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id, err := s.ids.NewRawID()
	if err != nil {
		s.writeDomainError(w, err, "failed to generate policy id")
		return
	}
	now := s.clock.Now()
	pol := scraper.SitePolicy{
		ID:            id,
		DefaultMethod: scraper.MethodStatic,
		RespectRobots: true,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	req.apply(&pol)
	if err := pol.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policies.CreatePolicy(r.Context(), &pol); err != nil {
		s.writeDomainError(w, err, "failed to create policy")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"policy": toPolicyDTO(pol)})
}

// listPolicies handles GET /v1/policies?domain=&active=&page=&size=.
func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		activeOnly, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active flag")
			return
		}
	}
	policies, total, err := s.policies.ListPolicies(r.Context(), r.URL.Query().Get("domain"), activeOnly, offset, limit)
	if err != nil {
		s.writeDomainError(w, err, "failed to list policies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"policies": toPolicyDTOs(policies),
		"total":    total,
	})
}

// getPolicy handles GET /v1/policies/{policy_id}.
func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "policy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pol, err := s.policies.GetPolicy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy": toPolicyDTO(pol)})
}

// getPolicyByDomain handles GET /v1/policies/domain/{domain}.
func (s *Server) getPolicyByDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}
	pol, err := s.policies.GetPolicyByDomain(r.Context(), domain)
	if err != nil {
		s.writeDomainError(w, err, "failed to load policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy": toPolicyDTO(pol)})
}

// updatePolicy handles PUT /v1/policies/{policy_id}.
func (s *Server) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "policy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	pol, err := s.policies.GetPolicy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load policy")
		return
	}
	req.apply(&pol)
	pol.UpdatedAt = s.clock.Now()
	if err := pol.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policies.UpdatePolicy(r.Context(), &pol); err != nil {
		s.writeDomainError(w, err, "failed to update policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy": toPolicyDTO(pol)})
}

// deletePolicy handles DELETE /v1/policies/{policy_id}.
func (s *Server) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "policy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policies.DeletePolicy(r.Context(), id); err != nil {
		s.writeDomainError(w, err, "failed to delete policy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// togglePolicy handles POST /v1/policies/{policy_id}/toggle.
func (s *Server) togglePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "policy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pol, err := s.policies.GetPolicy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load policy")
		return
	}
	pol.Active = !pol.Active
	pol.UpdatedAt = s.clock.Now()
	if err := s.policies.UpdatePolicy(r.Context(), &pol); err != nil {
		s.writeDomainError(w, err, "failed to toggle policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy": toPolicyDTO(pol)})
}

// testPolicy handles POST /v1/policies/{policy_id}/test. The policy's base
// URL is fetched and extracted with its defaults; nothing is persisted.
func (s *Server) testPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "policy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pol, err := s.policies.GetPolicy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err, "failed to load policy")
		return
	}
	report, err := s.tester.Test(r.Context(), pol)
	if err != nil {
		s.writeDomainError(w, err, "policy test failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}
