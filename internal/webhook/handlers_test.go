package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/issuegate/internal/dedupe"
	"github.com/mattjoyce/issuegate/internal/events"
)

const issuesOpenedPayload = `{
  "action": "opened",
  "issue": {"number": 42, "title": "Crash on start", "state": "open"},
  "repository": {"full_name": "octo-org/widgets", "updated_at": "2026-02-03T04:05:06Z"},
  "sender": {"login": "octocat"}
}`

const issueCommentPayload = `{
  "action": "created",
  "issue": {"number": 7},
  "comment": {"id": 9001, "body": "+1"},
  "repository": {"full_name": "octo-org/widgets"},
  "sender": {"login": "hubot"}
}`

func TestEventRecorderIssues(t *testing.T) {
	log := events.NewLog(10, nil)
	rec := NewEventRecorder(log)

	body := []byte(issuesOpenedPayload)
	require.NoError(t, rec.Handle(context.Background(), Delivery{ID: "d-1", Event: EventIssues, Body: body}))

	got := log.Recent(1)
	require.Len(t, got, 1)
	r := got[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "d-1", r.DeliveryID)
	assert.Equal(t, EventIssues, r.Event)
	assert.Equal(t, "opened", r.Action)
	assert.Equal(t, 42, r.IssueNumber)
	assert.Equal(t, "octo-org/widgets", r.Repository)
	assert.Equal(t, "octocat", r.Sender)
	assert.Equal(t, PayloadDigest(body), r.PayloadDigest)
	assert.Equal(t, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), r.ReceivedAt)
}

func TestEventRecorderIssueComment(t *testing.T) {
	log := events.NewLog(10, nil)
	rec := NewEventRecorder(log)
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	require.NoError(t, rec.Handle(context.Background(), Delivery{ID: "d-2", Event: EventIssueComment, Body: []byte(issueCommentPayload)}))

	r := log.Recent(1)[0]
	assert.Equal(t, "created", r.Action)
	assert.Equal(t, 7, r.IssueNumber)
	assert.Equal(t, int64(9001), r.CommentID)
	assert.Equal(t, "hubot", r.Sender)
	assert.Equal(t, fixed, r.ReceivedAt, "falls back to handling time without repository.updated_at")
}

func TestEventRecorderMalformedJSON(t *testing.T) {
	log := events.NewLog(10, nil)
	rec := NewEventRecorder(log)

	err := rec.Handle(context.Background(), Delivery{ID: "d-3", Event: EventIssues, Body: []byte(`{"action":`)})
	require.Error(t, err)
	assert.Zero(t, log.Len())
}

func TestEventRecorderUnsupportedEvent(t *testing.T) {
	rec := NewEventRecorder(events.NewLog(10, nil))
	err := rec.Handle(context.Background(), Delivery{ID: "d-4", Event: "push", Body: []byte(`{}`)})
	assert.Error(t, err)
}

func TestMalformedPayloadFailsDispatchAndIsRetried(t *testing.T) {
	store := dedupe.NewMemory(dedupe.Options{})
	log := events.NewLog(10, nil)
	d := newTestDispatcher(store, nil)
	NewEventRecorder(log).Register(d)

	out := d.Dispatch(context.Background(), signed(EventIssues, "m-1", []byte(`not json`)))
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 500, out.Status)

	dup, err := store.IsDuplicate(context.Background(), "m-1")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestPayloadDigestStable(t *testing.T) {
	a := PayloadDigest([]byte("abc"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, PayloadDigest([]byte("abc")))
	assert.NotEqual(t, a, PayloadDigest([]byte("abd")))
}
