package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iredox10/minbar/internal/logger"
	"github.com/iredox10/minbar/internal/testutil"
)

func TestEmit_PostsEventAsJSON(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var mu sync.Mutex
	var received []event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}))
	defer server.Close()

	sink := NewHTTPSink(logger.NewTestLogger(), nil, server.URL)
	sink.Emit("play.started", map[string]string{"track_id": "ep-1"})
	sink.Emit("download.completed", nil)
	require.NoError(t, sink.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "play.started", received[0].Name)
	assert.Equal(t, "ep-1", received[0].Properties["track_id"])
	assert.False(t, received[0].At.IsZero())
	assert.Equal(t, "download.completed", received[1].Name)
}

func TestEmit_NeverBlocksOnUnreachableCollector(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	sink := NewHTTPSink(logger.NewTestLogger(), nil, "http://127.0.0.1:1/events")
	for i := 0; i < queueSize*2; i++ {
		sink.Emit("noise", nil)
	}
	require.NoError(t, sink.Close())
}

func TestEmit_AfterCloseIsNoOp(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	sink := NewHTTPSink(logger.NewTestLogger(), nil, "http://127.0.0.1:1/events")
	require.NoError(t, sink.Close())

	assert.NotPanics(t, func() { sink.Emit("late", nil) })
	assert.NoError(t, sink.Close())
}
