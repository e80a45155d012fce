// Package dedupe records which webhook deliveries have been processed.
//
// A delivery id moves through two states. Claim atomically reserves an id
// for handling (check-and-mark in one step, so two concurrent deliveries with
// the same id cannot both proceed). Each claim carries a token; MarkProcessed
// turns the claim into a processed record that IsDuplicate reports for the
// retention window, and Release drops it after a failed handler so the
// sender's redelivery is handled in full. Both act only while the stored
// claim still carries the caller's token, so a holder whose lease ran out
// cannot touch the claim of the delivery that replaced it. Claims that are
// never completed expire after the claim lease.
//
// Three backends implement Store: Memory (single instance), SQLite (single
// instance, survives restarts) and Redis (shared across instances).
package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyID is returned when a delivery id is blank.
var ErrEmptyID = errors.New("dedupe: delivery id is empty")

// ErrClaimLost is returned by MarkProcessed when another live claim holds the id.
var ErrClaimLost = errors.New("dedupe: claim held by another delivery")

// Store is the delivery ledger used by the webhook dispatcher.
type Store interface {
	// IsDuplicate reports whether id has a processed record inside the retention window.
	IsDuplicate(ctx context.Context, id string) (bool, error)
	// MarkProcessed records id as processed. token is the value Claim
	// returned, or "" when no claim was taken. It fails with ErrClaimLost
	// while a live claim with a different token holds id. Recording an id
	// twice is a no-op.
	MarkProcessed(ctx context.Context, id, token string) error
	// Claim reserves id for handling and returns the claim token. ok is false
	// when id is already processed or claimed by an in-flight delivery.
	Claim(ctx context.Context, id string) (token string, ok bool, err error)
	// Release drops the claim identified by token without recording the id
	// as processed. A claim with another token is left alone.
	Release(ctx context.Context, id, token string) error
	// Lease is how long a claim stays live.
	Lease() time.Duration
	// Prune removes expired records and abandoned claims, returning how many went.
	Prune(ctx context.Context) (int, error)
	Close() error
}

// Counter is implemented by stores that can report how many processed
// records they hold.
type Counter interface {
	Entries(ctx context.Context) (int, error)
}

// Options tunes retention for every backend.
type Options struct {
	// Retention is how long a processed record suppresses redelivery.
	Retention time.Duration
	// ClaimLease bounds how long an unfinished claim blocks the id.
	ClaimLease time.Duration
	// MaxEntries caps processed records held by the memory backend.
	MaxEntries int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	DefaultRetention  = 24 * time.Hour
	DefaultClaimLease = 30 * time.Second
	DefaultMaxEntries = 100000
)

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.ClaimLease <= 0 {
		o.ClaimLease = DefaultClaimLease
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC()
}

func newToken() string {
	return uuid.NewString()
}

// RunPruner calls Prune every interval until ctx is done. report receives the
// outcome of each pass and may be nil.
func RunPruner(ctx context.Context, s Store, interval time.Duration, report func(removed int, err error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Prune(ctx)
			if report != nil {
				report(removed, err)
			}
		}
	}
}
