package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// Server is the HTTP endpoint GitHub delivers webhooks to. It reads the raw
// body under a size cap and hands it to the Dispatcher unchanged.
type Server struct {
	config     Config
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// New creates a webhook endpoint. Mount it at config.Path.
func New(config Config, dispatcher *Dispatcher, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Path returns the mount path.
func (s *Server) Path() string { return s.config.Path }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.respondJSON(w, http.StatusMethodNotAllowed, Response{Status: "error", Error: "method not allowed"})
		return
	}

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, Response{Status: "error", Error: "failed to read request body"})
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.logger.Warn("webhook payload too large", "limit", s.config.MaxBodySize)
		s.respondJSON(w, http.StatusRequestEntityTooLarge, Response{Status: "error", Error: "payload too large"})
		return
	}

	dl := Delivery{
		ID:        r.Header.Get(HeaderDelivery),
		Event:     r.Header.Get(HeaderEvent),
		Signature: r.Header.Get(HeaderSignature),
		Body:      body,
	}
	out := s.dispatcher.Dispatch(r.Context(), dl)

	resp := Response{Status: string(out.State), DeliveryID: dl.ID}
	switch out.State {
	case StateRejected:
		// No detail on why verification failed.
		resp = Response{Status: string(out.State), Error: "invalid signature"}
	case StateInvalid:
		resp.Error = "missing " + HeaderDelivery + " header"
	case StateFailed:
		if out.Status == http.StatusServiceUnavailable {
			resp.Error = "delivery ledger unavailable"
		} else {
			resp.Error = "handler failed"
		}
	}
	s.respondJSON(w, out.Status, resp)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write webhook response failed", "error", err)
	}
}
