// Package github is the upstream client for the GitHub Issues API, scoped to
// a single owner/repo.
//
// It wraps go-github and projects issues and comments onto small local types.
// Reads and edits retry transient gateway failures (502, 503, 504) with
// jittered exponential backoff; creates are sent once. Rate limits are never
// waited out: a limited response comes back as *UpstreamError with the
// upstream status, message and X-RateLimit-* headers so the HTTP layer can
// relay them verbatim.
package github
