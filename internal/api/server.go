package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/issuegate/internal/events"
	"github.com/mattjoyce/issuegate/internal/github"
)

// EventLog is the read side of the recorded webhook event log.
type EventLog interface {
	Recent(limit int) []events.Record
	Len() int
}

// LedgerCounter reports how many processed deliveries the dedupe store holds.
// dedupe.Counter satisfies it.
type LedgerCounter interface {
	Entries(ctx context.Context) (int, error)
}

// WebhookHandler is the signed-delivery endpoint mounted at Path().
type WebhookHandler interface {
	http.Handler
	Path() string
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey, when set, is required as a bearer token on the issue and event routes.
	APIKey          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxBodySize caps JSON request bodies on the passthrough routes.
	MaxBodySize int64

	// Reported by /healthz. Ledger may be nil.
	Repository    string
	DedupeBackend string
	Ledger        LedgerCounter
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	issues    github.Client
	webhook   WebhookHandler
	hub       *events.Hub
	eventLog  EventLog
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. webhook, hub and eventLog may be nil,
// in which case their routes are not mounted.
func New(config Config, issues github.Client, webhook WebhookHandler, hub *events.Hub, eventLog EventLog, logger *slog.Logger) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 1 << 20
	}
	return &Server{
		config:    config,
		issues:    issues,
		webhook:   webhook,
		hub:       hub,
		eventLog:  eventLog,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting",
		"listen", s.config.Listen,
		"repository", s.config.Repository,
		"auth", s.config.APIKey != "",
	)

	// Run server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	// Webhook deliveries authenticate with their HMAC signature instead of the API key.
	if s.webhook != nil {
		r.Method(http.MethodPost, s.webhook.Path(), s.webhook)
	}

	r.Group(func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(s.authMiddleware)
		}

		r.Route("/issues", func(r chi.Router) {
			r.Use(s.limitBody)
			r.Post("/", s.handleCreateIssue)
			r.Get("/", s.handleListIssues)
			r.Get("/{number}", s.handleGetIssue)
			r.Patch("/{number}", s.handleUpdateIssue)
			r.Post("/{number}/comments", s.handleCreateComment)
		})

		if s.eventLog != nil {
			r.Get("/events", s.handleListEvents)
		}
		if s.hub != nil {
			r.Get("/events/stream", s.handleEventStream)
		}
	})

	return r
}

// loggingMiddleware logs HTTP requests (no bodies)
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
		next.ServeHTTP(w, r)
	})
}
