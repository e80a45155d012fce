package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/issuegate/internal/events"
)

func TestListEvents(t *testing.T) {
	env := newTestEnv(t, Config{})
	for i := range 15 {
		env.log.Append(events.Record{ID: fmt.Sprintf("r-%02d", i), Event: "issues"})
	}

	t.Run("default limit", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/events", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got []events.Record
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, defaultEventsLimit)
		assert.Equal(t, "r-05", got[0].ID)
		assert.Equal(t, "r-14", got[9].ID)
	})

	t.Run("explicit limit", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/events?limit=3", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got []events.Record
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 3)
		assert.Equal(t, "r-12", got[0].ID)
	})

	for _, bad := range []string{"0", "-1", "257", "ten"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/events?limit="+bad, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListEventsEmpty(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEventStreamReplaysAndStreams(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.hub.Publish("webhook.completed", map[string]string{"delivery_id": "old"})

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readSSEFrame(t, reader)
	assert.Contains(t, first, "id: 1")
	assert.Contains(t, first, "event: webhook.completed")
	assert.Contains(t, first, `"delivery_id":"old"`)

	env.hub.Publish("webhook.skipped", map[string]string{"delivery_id": "new"})
	second := readSSEFrame(t, reader)
	assert.Contains(t, second, "id: 2")
	assert.Contains(t, second, "event: webhook.skipped")
}

func TestEventStreamHonorsLastEventID(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.hub.Publish("a", nil)
	env.hub.Publish("b", nil)
	env.hub.Publish("c", nil)

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "2")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	frame := readSSEFrame(t, bufio.NewReader(resp.Body))
	assert.Contains(t, frame, "id: 3")
	assert.Contains(t, frame, "event: c")
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("x"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(17), parseLastEventID("17"))
}

// readSSEFrame reads lines up to the blank line that ends one SSE frame.
func readSSEFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			if b.Len() == 0 {
				continue
			}
			return b.String()
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		b.WriteString(line)
	}
}

func TestEventStreamLogsUnsupportedWriteDeadline(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(Config{}, nil, nil, events.NewHub(4), events.NewLog(4, nil), logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	// ResponseRecorder cannot move its write deadline.
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "sse stream keeps the server write deadline")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
