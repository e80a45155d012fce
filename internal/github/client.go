package github

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// RepoClient implements Client against one owner/repo using go-github.
type RepoClient struct {
	client *github.Client
	owner  string
	repo   string
	retry  RetryConfig
}

// NewClient creates a client for opts.Owner/opts.Repo.
func NewClient(opts Options) (*RepoClient, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = 200 * time.Millisecond
	}
	if opts.Retry.MaxBackoff <= 0 {
		opts.Retry.MaxBackoff = 5 * time.Second
	}
	if opts.Retry.MaxRetries < 0 {
		opts.Retry.MaxRetries = 0
	}

	client := github.NewClient(&http.Client{Timeout: opts.Timeout})
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = u
	}

	return &RepoClient{
		client: client,
		owner:  opts.Owner,
		repo:   opts.Repo,
		retry:  opts.Retry,
	}, nil
}

// Repository returns "owner/repo".
func (c *RepoClient) Repository() string {
	return c.owner + "/" + c.repo
}

// CreateIssue is not retried: a repeated POST could open a second issue.
func (c *RepoClient) CreateIssue(ctx context.Context, req CreateIssueRequest) (*Issue, http.Header, error) {
	ir := &github.IssueRequest{Title: github.String(req.Title)}
	if req.Body != "" {
		ir.Body = github.String(req.Body)
	}
	labels := req.Labels
	if labels == nil {
		labels = []string{}
	}
	ir.Labels = &labels

	issue, resp, err := c.client.Issues.Create(ctx, c.owner, c.repo, ir)
	if err != nil {
		return nil, responseHeader(resp), translateError(err)
	}
	return convertIssue(issue), responseHeader(resp), nil
}

func (c *RepoClient) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]*Issue, http.Header, error) {
	lo := &github.IssueListByRepoOptions{
		State:  opts.State,
		Labels: opts.Labels,
		ListOptions: github.ListOptions{
			Page:    opts.Page,
			PerPage: opts.PerPage,
		},
	}

	var issues []*github.Issue
	var resp *github.Response
	err := c.executeWithRetry(ctx, func() error {
		var err error
		issues, resp, err = c.client.Issues.ListByRepo(ctx, c.owner, c.repo, lo)
		return err
	})
	if err != nil {
		return nil, responseHeader(resp), translateError(err)
	}

	out := make([]*Issue, 0, len(issues))
	for _, issue := range issues {
		if issue != nil {
			out = append(out, convertIssue(issue))
		}
	}
	return out, responseHeader(resp), nil
}

func (c *RepoClient) GetIssue(ctx context.Context, number int) (*Issue, http.Header, error) {
	var issue *github.Issue
	var resp *github.Response
	err := c.executeWithRetry(ctx, func() error {
		var err error
		issue, resp, err = c.client.Issues.Get(ctx, c.owner, c.repo, number)
		return err
	})
	if err != nil {
		return nil, responseHeader(resp), translateError(err)
	}
	return convertIssue(issue), responseHeader(resp), nil
}

// UpdateIssue sends only the set fields. Edits are idempotent and retried.
func (c *RepoClient) UpdateIssue(ctx context.Context, number int, req UpdateIssueRequest) (*Issue, http.Header, error) {
	ir := &github.IssueRequest{
		Title: req.Title,
		Body:  req.Body,
		State: req.State,
	}

	var issue *github.Issue
	var resp *github.Response
	err := c.executeWithRetry(ctx, func() error {
		var err error
		issue, resp, err = c.client.Issues.Edit(ctx, c.owner, c.repo, number, ir)
		return err
	})
	if err != nil {
		return nil, responseHeader(resp), translateError(err)
	}
	return convertIssue(issue), responseHeader(resp), nil
}

// CreateComment is not retried for the same reason as CreateIssue.
func (c *RepoClient) CreateComment(ctx context.Context, number int, body string) (*Comment, http.Header, error) {
	comment, resp, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return nil, responseHeader(resp), translateError(err)
	}
	return convertComment(comment), responseHeader(resp), nil
}

// executeWithRetry executes an operation with exponential backoff retry
func (c *RepoClient) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || !isRetryableError(lastErr) {
			return lastErr
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.calculateBackoff(attempt)):
		}
	}

	return lastErr
}

// isRetryableError reports whether err is a transient gateway failure.
// Rate limits are relayed, never waited out.
func isRetryableError(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	switch ghErr.Response.StatusCode {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// calculateBackoff returns the wait before retry attempt+1, with ±20% jitter.
func (c *RepoClient) calculateBackoff(attempt int) time.Duration {
	base := float64(c.retry.InitialBackoff) * float64(int64(1)<<uint(attempt))
	jitter := rand.Float64()*0.4 - 0.2
	backoff := time.Duration(base * (1 + jitter))
	if backoff > c.retry.MaxBackoff {
		backoff = c.retry.MaxBackoff
	}
	return backoff
}

func convertIssue(issue *github.Issue) *Issue {
	if issue == nil {
		return nil
	}

	out := &Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		Labels:    []string{},
		User:      issue.GetUser().GetLogin(),
		Comments:  issue.GetComments(),
		HTMLURL:   issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	for _, label := range issue.Labels {
		if label != nil {
			out.Labels = append(out.Labels, label.GetName())
		}
	}
	return out
}

func convertComment(comment *github.IssueComment) *Comment {
	if comment == nil {
		return nil
	}
	return &Comment{
		ID:        comment.GetID(),
		Body:      comment.GetBody(),
		User:      comment.GetUser().GetLogin(),
		HTMLURL:   comment.GetHTMLURL(),
		CreatedAt: comment.GetCreatedAt().Time,
	}
}
