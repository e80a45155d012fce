package webhook

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/issuegate/internal/events"
)

// Appender stores event records. *events.Log satisfies it.
type Appender interface {
	Append(r events.Record)
}

// EventRecorder is the built-in handler for issues and issue_comment events.
// It parses the payload and appends one events.Record per delivery.
type EventRecorder struct {
	out Appender
	now func() time.Time
}

func NewEventRecorder(out Appender) *EventRecorder {
	return &EventRecorder{out: out, now: time.Now}
}

// Register installs the recorder for every event type it understands.
func (r *EventRecorder) Register(d *Dispatcher) {
	d.Handle(EventIssues, r)
	d.Handle(EventIssueComment, r)
}

func (r *EventRecorder) Handle(_ context.Context, dl Delivery) error {
	parsed, err := github.ParseWebHook(dl.Event, dl.Body)
	if err != nil {
		return fmt.Errorf("parse %s payload: %w", dl.Event, err)
	}

	rec := events.Record{
		ID:            uuid.NewString(),
		DeliveryID:    dl.ID,
		Event:         dl.Event,
		PayloadDigest: PayloadDigest(dl.Body),
	}

	var repo *github.Repository
	switch e := parsed.(type) {
	case *github.IssuesEvent:
		rec.Action = e.GetAction()
		rec.IssueNumber = e.GetIssue().GetNumber()
		rec.Sender = e.GetSender().GetLogin()
		repo = e.GetRepo()
	case *github.IssueCommentEvent:
		rec.Action = e.GetAction()
		rec.IssueNumber = e.GetIssue().GetNumber()
		rec.CommentID = e.GetComment().GetID()
		rec.Sender = e.GetSender().GetLogin()
		repo = e.GetRepo()
	default:
		return fmt.Errorf("no recorder for %s events", dl.Event)
	}

	rec.Repository = repo.GetFullName()
	if ts := repo.GetUpdatedAt(); !ts.IsZero() {
		rec.ReceivedAt = ts.UTC()
	} else {
		rec.ReceivedAt = r.now().UTC()
	}

	r.out.Append(rec)
	return nil
}

// PayloadDigest is the hex BLAKE3-256 digest of a raw delivery body.
func PayloadDigest(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}
