package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubSnapshotSince(t *testing.T) {
	h := NewHub(3)
	for i := range 5 {
		h.Publish("tick", map[string]int{"n": i})
	}

	all := h.SnapshotSince(0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(5), all[2].ID)

	after := h.SnapshotSince(4)
	require.Len(t, after, 1)
	assert.Equal(t, int64(5), after[0].ID)
	assert.JSONEq(t, `{"n":4}`, string(after[0].Data))
}

func TestHubSubscribeReceivesAndCancelCloses(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	assert.Equal(t, 1, h.subscribers())

	h.Publish("webhook.completed", nil)

	select {
	case ev := <-ch:
		assert.Equal(t, "webhook.completed", ev.Type)
		assert.Equal(t, "{}", string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
	assert.Equal(t, 0, h.subscribers())

	// Cancelling twice is harmless.
	cancel()
}

func TestHubSnapshotSinceNewestReturnsNothing(t *testing.T) {
	h := NewHub(4)
	h.Publish("a", nil)
	h.Publish("b", nil)
	assert.Empty(t, h.SnapshotSince(2))
	assert.Empty(t, h.SnapshotSince(99))
	assert.Empty(t, NewHub(4).SnapshotSince(0))
}

func TestHubIDsStayOrderedUnderConcurrentPublish(t *testing.T) {
	const publishers, each = 8, 50
	h := NewHub(publishers * each)
	ch, cancel := h.Subscribe()

	var seen []int64
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for ev := range ch {
			seen = append(seen, ev.ID)
		}
	}()

	var wg sync.WaitGroup
	for p := range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				h.Publish("tick", map[string]int{"p": p, "i": i})
			}
		}()
	}
	wg.Wait()
	cancel()
	<-readerDone

	snap := h.SnapshotSince(0)
	require.Len(t, snap, publishers*each)
	for i, ev := range snap {
		require.Equal(t, int64(i+1), ev.ID, "buffer out of order at %d", i)
	}

	// A replay resuming from any point must not skip a later event.
	mid := snap[len(snap)/2].ID
	after := h.SnapshotSince(mid)
	require.Len(t, after, len(snap)-len(snap)/2-1)
	assert.Equal(t, mid+1, after[0].ID)

	// Slow subscribers may miss events, but never see them out of order.
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		require.Greater(t, seen[i], seen[i-1], "subscriber saw IDs out of order")
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{3, 4, 5}, r.tail(0))
	assert.Equal(t, []int{4, 5}, r.tail(2))
	assert.Equal(t, 3, r.at(0))

	empty := newRing[int](0)
	empty.push(1)
	assert.Equal(t, 0, empty.len())
}

func TestHubUnmarshalableDataFallsBackToEmptyObject(t *testing.T) {
	h := NewHub(1)
	h.Publish("bad", func() {})
	snap := h.SnapshotSince(0)
	require.Len(t, snap, 1)
	assert.Equal(t, "{}", string(snap[0].Data))
}

func TestLogRecentOldestFirst(t *testing.T) {
	l := NewLog(4, nil)
	for i := range 6 {
		l.Append(Record{ID: fmt.Sprintf("r-%d", i)})
	}

	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 4, l.Cap())

	got := l.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "r-4", got[0].ID)
	assert.Equal(t, "r-5", got[1].ID)

	all := l.Recent(0)
	require.Len(t, all, 4)
	assert.Equal(t, "r-2", all[0].ID)

	big := l.Recent(100)
	assert.Len(t, big, 4)
}

func TestLogAppendPublishesToHub(t *testing.T) {
	h := NewHub(10)
	l := NewLog(10, h)

	l.Append(Record{ID: "r-1", DeliveryID: "d-1", Event: "issues", IssueNumber: 7})

	snap := h.SnapshotSince(0)
	require.Len(t, snap, 1)
	assert.Equal(t, TypeIssueEvent, snap[0].Type)

	var rec Record
	require.NoError(t, json.Unmarshal(snap[0].Data, &rec))
	assert.Equal(t, "d-1", rec.DeliveryID)
	assert.Equal(t, 7, rec.IssueNumber)
}
