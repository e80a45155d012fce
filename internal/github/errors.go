package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// RelayHeaders are copied from upstream responses to passthrough clients.
var RelayHeaders = []string{
	"Link",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"X-RateLimit-Used",
	"X-RateLimit-Resource",
	"Retry-After",
}

// UpstreamError is a non-2xx answer from GitHub. Status and Message are
// relayed to the caller unchanged.
type UpstreamError struct {
	Status  int
	Message string
	Header  http.Header
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github: %d %s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// relayHeader extracts the RelayHeaders present in h.
func relayHeader(h http.Header) http.Header {
	out := make(http.Header)
	for _, k := range RelayHeaders {
		if v := h.Values(k); len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
	return out
}

// responseHeader returns the relayable headers of resp, which may be nil.
func responseHeader(resp *github.Response) http.Header {
	if resp == nil || resp.Response == nil {
		return make(http.Header)
	}
	return relayHeader(resp.Header)
}

// translateError turns go-github failures into *UpstreamError. Transport
// failures (no HTTP response) are returned wrapped as-is.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var resp *http.Response
	var message string

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var errResp *github.ErrorResponse
	switch {
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	case errors.As(err, &errResp):
		resp, message = errResp.Response, errResp.Message
	default:
		return fmt.Errorf("github request failed: %w", err)
	}

	if resp == nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &UpstreamError{
		Status:  resp.StatusCode,
		Message: message,
		Header:  relayHeader(resp.Header),
		Err:     err,
	}
}
