package api

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Repository     string `json:"repository"`
	DedupeBackend  string `json:"dedupe_backend"`
	EventsBuffered int    `json:"events_buffered"`
	LedgerEntries  *int   `json:"ledger_entries,omitempty"`
}

// CommentRequest is the JSON body for POST /issues/{number}/comments.
type CommentRequest struct {
	Body string `json:"body"`
}

// Query limits.
const (
	defaultEventsLimit = 10
	maxEventsLimit     = 256
	maxPerPage         = 100
)
