package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/issuegate/internal/github"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Repository:    s.config.Repository,
		DedupeBackend: s.config.DedupeBackend,
	}
	if s.eventLog != nil {
		resp.EventsBuffered = s.eventLog.Len()
	}
	if s.config.Ledger != nil {
		n, err := s.config.Ledger.Entries(r.Context())
		if err != nil {
			s.logger.Warn("failed to count ledger entries", "error", err)
		} else {
			resp.LedgerEntries = &n
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleCreateIssue handles POST /issues.
func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req github.CreateIssueRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	issue, hdr, err := s.issues.CreateIssue(r.Context(), req)
	copyHeaders(w, hdr)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/issues/%d", issue.Number))
	respondJSON(w, http.StatusCreated, issue)
}

// handleListIssues handles GET /issues?state=&labels=&page=&per_page=.
func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := github.ListIssuesOptions{State: q.Get("state")}
	switch opts.State {
	case "":
		opts.State = "open"
	case "open", "closed", "all":
	default:
		s.writeError(w, http.StatusBadRequest, "state must be one of open, closed, all")
		return
	}

	for _, l := range strings.Split(q.Get("labels"), ",") {
		if l = strings.TrimSpace(l); l != "" {
			opts.Labels = append(opts.Labels, l)
		}
	}

	var ok bool
	if opts.Page, ok = s.queryInt(w, q.Get("page"), "page", 1, 1<<20); !ok {
		return
	}
	if opts.PerPage, ok = s.queryInt(w, q.Get("per_page"), "per_page", 1, maxPerPage); !ok {
		return
	}

	issues, hdr, err := s.issues.ListIssues(r.Context(), opts)
	copyHeaders(w, hdr)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	if issues == nil {
		issues = []*github.Issue{}
	}
	respondJSON(w, http.StatusOK, issues)
}

// handleGetIssue handles GET /issues/{number}.
func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	number, ok := s.issueNumber(w, r)
	if !ok {
		return
	}

	issue, hdr, err := s.issues.GetIssue(r.Context(), number)
	copyHeaders(w, hdr)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

// handleUpdateIssue handles PATCH /issues/{number}.
func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	number, ok := s.issueNumber(w, r)
	if !ok {
		return
	}

	var req github.UpdateIssueRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Title == nil && req.Body == nil && req.State == nil {
		s.writeError(w, http.StatusBadRequest, "at least one of title, body, state is required")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if req.State != nil && *req.State != "open" && *req.State != "closed" {
		s.writeError(w, http.StatusBadRequest, "state must be open or closed")
		return
	}

	issue, hdr, err := s.issues.UpdateIssue(r.Context(), number, req)
	copyHeaders(w, hdr)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}

// handleCreateComment handles POST /issues/{number}/comments.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	number, ok := s.issueNumber(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		s.writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	comment, hdr, err := s.issues.CreateComment(r.Context(), number, req.Body)
	copyHeaders(w, hdr)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	webhookPath := ""
	if s.webhook != nil {
		webhookPath = s.webhook.Path()
	}
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(webhookPath, s.config.APIKey != ""))
}

func (s *Server) issueNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n <= 0 {
		s.writeError(w, http.StatusBadRequest, "issue number must be a positive integer")
		return 0, false
	}
	return n, true
}

// queryInt parses an optional integer query value within [lo, hi]; 0 means absent.
func (s *Server) queryInt(w http.ResponseWriter, raw, name string, lo, hi int) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
		return 0, false
	}
	return n, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeUpstreamError relays a GitHub error with its own status and message.
// Failures that never reached GitHub become 502.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var upErr *github.UpstreamError
	if errors.As(err, &upErr) {
		copyHeaders(w, upErr.Header)
		s.logger.Warn("upstream request failed",
			"path", r.URL.Path,
			"status", upErr.Status,
			"message", upErr.Message,
		)
		s.writeError(w, upErr.Status, upErr.Message)
		return
	}

	s.logger.Error("upstream unreachable", "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusBadGateway, "upstream unavailable")
}

// copyHeaders forwards relayed upstream headers verbatim.
func copyHeaders(w http.ResponseWriter, hdr http.Header) {
	for k, vs := range hdr {
		w.Header().Del(k)
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}

// respondJSON writes data as a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
