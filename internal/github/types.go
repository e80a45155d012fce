package github

import (
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/issuegate/internal/github Client

// Client is the upstream issue tracker, scoped to one repository.
// Every call returns the upstream response headers worth relaying
// (see RelayHeaders), on success and on error.
type Client interface {
	CreateIssue(ctx context.Context, req CreateIssueRequest) (*Issue, http.Header, error)
	ListIssues(ctx context.Context, opts ListIssuesOptions) ([]*Issue, http.Header, error)
	GetIssue(ctx context.Context, number int) (*Issue, http.Header, error)
	UpdateIssue(ctx context.Context, number int, req UpdateIssueRequest) (*Issue, http.Header, error)
	CreateComment(ctx context.Context, number int, body string) (*Comment, http.Header, error)
}

// Issue is the projection of a GitHub issue returned by the passthrough API.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels"`
	User      string    `json:"user,omitempty"`
	Comments  int       `json:"comments"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is the projection of an issue comment.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      string    `json:"user,omitempty"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// UpdateIssueRequest carries the fields to change; nil fields are left alone.
type UpdateIssueRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
	State *string `json:"state,omitempty"`
}

type ListIssuesOptions struct {
	State   string
	Labels  []string
	Page    int
	PerPage int
}

// RetryConfig defines the retry behavior for idempotent API calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Options configures NewClient.
type Options struct {
	Token string
	Owner string
	Repo  string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	BaseURL string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	Retry   RetryConfig
}
