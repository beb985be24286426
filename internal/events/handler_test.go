package events

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, b *Broadcaster) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(b, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamDeliversNDJSONFrames(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()
	srv := newStreamServer(t, b)

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	b.Publish(context.Background(), Event{
		Type:    TypeAnalysisCompleted,
		Payload: map[string]any{"auditId": "aud-1"},
	})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(line, &frame))
	assert.Equal(t, "ai_analysis_completed", frame["type"])
	assert.Equal(t, "aud-1", frame["auditId"])
}

func TestStreamConcurrentSubscribersShareFrames(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()
	srv := newStreamServer(t, b)

	// Two live streams receive the same broadcast frame. Each handler writes
	// its newline delimiter separately, so the shared frame bytes stay intact
	// for both readers.
	first, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer first.Body.Close()
	second, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer second.Body.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 },
		time.Second, 10*time.Millisecond)

	b.Publish(context.Background(), Event{
		Type:    TypeRevocationCreated,
		Payload: map[string]any{"userId": "u1", "orgId": "org1"},
	})

	for _, resp := range []*http.Response{first, second} {
		line, err := bufio.NewReader(resp.Body).ReadBytes('\n')
		require.NoError(t, err)

		var frame map[string]any
		require.NoError(t, json.Unmarshal(line, &frame))
		assert.Equal(t, "revocation_created", frame["type"])
		assert.Equal(t, "u1", frame["userId"])
		assert.Equal(t, "org1", frame["orgId"])
	}
}

func TestStreamDisconnectUnregistersSubscriber(t *testing.T) {
	b := testBroadcaster()
	defer b.Close()
	srv := newStreamServer(t, b)

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	resp.Body.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 },
		time.Second, 10*time.Millisecond)
}
